package domain

import (
	"sort"
	"time"
)

// ByStatus returns the tasks whose status equals s, in input order.
func ByStatus(tasks []Task, s Status) []Task {
	out := []Task{}
	for _, t := range tasks {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}

// ByPriority returns the tasks whose priority equals p, in input order.
func ByPriority(tasks []Task, p Priority) []Task {
	out := []Task{}
	for _, t := range tasks {
		if t.Priority == p {
			out = append(out, t)
		}
	}
	return out
}

// Active returns tasks that are being worked on, paused ones included.
func Active(tasks []Task) []Task {
	out := []Task{}
	for _, t := range tasks {
		if t.Status == StatusInProgress || t.Status == StatusPaused {
			out = append(out, t)
		}
	}
	return out
}

// SortByDate returns a copy of tasks ordered by due date, falling back to the
// creation date, most recent first. Ties keep their input order.
func SortByDate(tasks []Task) []Task {
	out := append([]Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]).After(sortKey(out[j]))
	})
	return out
}

func sortKey(t Task) time.Time {
	if t.DueDate != nil {
		return *t.DueDate
	}
	return t.CreatedAt
}

// IsOverdue reports whether t is past its due date and still open.
func IsOverdue(t Task, now time.Time) bool {
	if t.DueDate == nil || !t.DueDate.Before(now) {
		return false
	}
	switch t.Status {
	case StatusPending, StatusInProgress, StatusPaused:
		return true
	}
	return false
}

// DueForExpiry reports whether the overdue sweeper should expire t. A task
// touched after it fell due was seen by its owner, for instance rescheduled,
// and stays as it is until it gets a new due date.
func DueForExpiry(t Task, now time.Time) bool {
	return IsOverdue(t, now) && t.UpdatedAt.Before(*t.DueDate)
}

// Summary holds the dashboard counters.
type Summary struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"inProgress"`
	Completed      int     `json:"completed"`
	Overdue        int     `json:"overdue"`
	HighPriority   int     `json:"highPriority"`
	CompletionRate float64 `json:"completionRate"`
}

// Summarize counts tasks per bucket. Overdue includes open tasks past their
// due date that have not been swept yet.
func Summarize(tasks []Task, now time.Time) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress, StatusPaused:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
		}
		if t.Status == StatusOverdue || IsOverdue(t, now) {
			s.Overdue++
		}
		if t.Priority == PriorityHigh && t.Status != StatusCompleted {
			s.HighPriority++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total) * 100
	}
	return s
}
