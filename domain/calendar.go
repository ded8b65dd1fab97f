package domain

import (
	"strings"
	"time"
)

// CalendarEvent is a scheduled block on the user's calendar, optionally
// linked to a task.
type CalendarEvent struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"allDay"`
	TaskID      string     `json:"taskId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// CalendarEventCreate carries the fields of a new event.
type CalendarEventCreate struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay,omitempty"`
	TaskID      string    `json:"taskId,omitempty"`
}

func (c CalendarEventCreate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	return validateSpan(c.Start, c.End)
}

// NewEvent builds the event described by c.
func (c CalendarEventCreate) NewEvent(id, userID string, now time.Time) CalendarEvent {
	return CalendarEvent{
		ID:          id,
		UserID:      userID,
		Title:       strings.TrimSpace(c.Title),
		Description: c.Description,
		Start:       c.Start.UTC(),
		End:         c.End.UTC(),
		AllDay:      c.AllDay,
		TaskID:      c.TaskID,
		CreatedAt:   now,
	}
}

// CalendarEventUpdate carries a partial update. Nil fields are left untouched.
type CalendarEventUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      *bool      `json:"allDay,omitempty"`
	TaskID      *string    `json:"taskId,omitempty"`
}

func (u CalendarEventUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Start == nil && u.End == nil && u.AllDay == nil && u.TaskID == nil
}

// Apply merges u into ev and validates the result.
func (u CalendarEventUpdate) Apply(ev CalendarEvent, now time.Time) (CalendarEvent, error) {
	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return ev, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		ev.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
	if u.Start != nil {
		ev.Start = u.Start.UTC()
	}
	if u.End != nil {
		ev.End = u.End.UTC()
	}
	if u.AllDay != nil {
		ev.AllDay = *u.AllDay
	}
	if u.TaskID != nil {
		ev.TaskID = *u.TaskID
	}
	if err := validateSpan(ev.Start, ev.End); err != nil {
		return ev, err
	}
	ev.UpdatedAt = &now
	return ev, nil
}

// Within reports whether ev lies entirely inside [from, to].
func (ev CalendarEvent) Within(from, to time.Time) bool {
	return !ev.Start.Before(from) && !ev.End.After(to)
}

func validateSpan(start, end time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "start", Reason: "is required"}
	}
	if end.IsZero() {
		return &ValidationError{Field: "end", Reason: "is required"}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end", Reason: "must not be before start"}
	}
	return nil
}
