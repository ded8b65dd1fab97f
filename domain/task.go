package domain

import (
	"strings"
	"time"
)

// DefaultMaxTags caps the number of tags carried by a single task.
const DefaultMaxTags = 10

// Priority ranks a task for display and filtering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the lifecycle state of a task. Transitions go through NextStatus.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusOverdue    Status = "overdue"
)

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

// Task is the unit of work tracked by the scheduler.
type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Priority          Priority   `json:"priority"`
	Status            Status     `json:"status"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	Tags              []string   `json:"tags"`
	EstimatedDuration *int       `json:"estimatedDuration,omitempty"`
	ActualDuration    *int       `json:"actualDuration,omitempty"`
	AIGenerated       bool       `json:"aiGenerated,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	UserID            string     `json:"userId"`
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.EstimatedDuration != nil {
		v := *t.EstimatedDuration
		out.EstimatedDuration = &v
	}
	if t.ActualDuration != nil {
		v := *t.ActualDuration
		out.ActualDuration = &v
	}
	return out
}

// TaskCreate is the draft accepted when creating a task.
type TaskCreate struct {
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Priority          Priority   `json:"priority,omitempty"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	EstimatedDuration *int       `json:"estimatedDuration,omitempty"`
	AIGenerated       bool       `json:"aiGenerated,omitempty"`
}

// Validate checks the draft before it reaches the data boundary.
func (c TaskCreate) Validate(maxTags int) error {
	if strings.TrimSpace(c.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if c.Priority != "" && !c.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be low, medium or high"}
	}
	if err := validateTags(c.Tags, maxTags); err != nil {
		return err
	}
	return validateMinutes("estimatedDuration", c.EstimatedDuration)
}

// NewTask builds the persisted form of a draft. Status starts at pending and
// both timestamps are set to now.
func (c TaskCreate) NewTask(id, userID string, now time.Time) Task {
	priority := c.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	tags := []string{}
	if len(c.Tags) > 0 {
		tags = append(tags, c.Tags...)
	}
	t := Task{
		ID:          id,
		Title:       strings.TrimSpace(c.Title),
		Description: c.Description,
		Priority:    priority,
		Status:      StatusPending,
		Tags:        tags,
		AIGenerated: c.AIGenerated,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
	}
	if c.DueDate != nil {
		d := *c.DueDate
		t.DueDate = &d
	}
	if c.EstimatedDuration != nil {
		v := *c.EstimatedDuration
		t.EstimatedDuration = &v
	}
	return t
}

// TaskUpdate carries a partial update. Nil fields are left untouched.
type TaskUpdate struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Priority          *Priority  `json:"priority,omitempty"`
	Status            *Status    `json:"status,omitempty"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	Tags              *[]string  `json:"tags,omitempty"`
	EstimatedDuration *int       `json:"estimatedDuration,omitempty"`
	ActualDuration    *int       `json:"actualDuration,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil && u.Status == nil &&
		u.DueDate == nil && u.Tags == nil && u.EstimatedDuration == nil && u.ActualDuration == nil
}

// Validate checks the field values of the update. Status transitions are
// checked separately against the current task.
func (u TaskUpdate) Validate(maxTags int) error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be low, medium or high"}
	}
	if u.Status != nil && !u.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(*u.Status)}
	}
	if u.Tags != nil {
		if err := validateTags(*u.Tags, maxTags); err != nil {
			return err
		}
	}
	if err := validateMinutes("estimatedDuration", u.EstimatedDuration); err != nil {
		return err
	}
	return validateMinutes("actualDuration", u.ActualDuration)
}

// Apply merges the update into t and stamps UpdatedAt.
func (u TaskUpdate) Apply(t Task, now time.Time) Task {
	out := t.Clone()
	if u.Title != nil {
		out.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.DueDate != nil {
		d := *u.DueDate
		out.DueDate = &d
	}
	if u.Tags != nil {
		out.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.EstimatedDuration != nil {
		v := *u.EstimatedDuration
		out.EstimatedDuration = &v
	}
	if u.ActualDuration != nil {
		v := *u.ActualDuration
		out.ActualDuration = &v
	}
	if now.Before(out.CreatedAt) {
		now = out.CreatedAt
	}
	out.UpdatedAt = now
	return out
}

// BulkUpdateItem pairs a task id with the update to apply to it.
type BulkUpdateItem struct {
	ID      string     `json:"id"`
	Updates TaskUpdate `json:"updates"`
}

func validateTags(tags []string, maxTags int) error {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	if len(tags) > maxTags {
		return &ValidationError{Field: "tags", Reason: "too many tags"}
	}
	return nil
}

func validateMinutes(field string, v *int) error {
	if v != nil && *v < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}
