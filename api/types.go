package api

import (
	"context"
	"time"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// TaskService is the task store as seen by handlers.
type TaskService interface {
	List() []domain.Task
	Get(id string) (domain.Task, error)
	Sorted() []domain.Task
	Active() []domain.Task
	Summary(now time.Time) domain.Summary
	Create(ctx context.Context, draft domain.TaskCreate) (domain.Task, error)
	Update(ctx context.Context, id string, partial domain.TaskUpdate) (domain.Task, error)
	Delete(ctx context.Context, id string) error
	BulkUpdate(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error)
	Transition(ctx context.Context, id string, action domain.Action) (domain.Task, error)
	ToggleComplete(ctx context.Context, id string) (domain.Task, error)
}

// Inbox serves the notification centre.
type Inbox interface {
	List(ctx context.Context, userID string, read *bool) ([]domain.Notification, error)
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Pomodoro records focus sessions.
type Pomodoro interface {
	Start(ctx context.Context, userID string, req domain.SessionStart) (domain.PomodoroSession, error)
	End(ctx context.Context, userID, id string) (domain.PomodoroSession, error)
	Sessions(ctx context.Context, userID string, day *time.Time) ([]domain.PomodoroSession, error)
	Stats(ctx context.Context, userID, period string, now time.Time) (domain.PomodoroStats, error)
}

// Calendar keeps calendar events.
type Calendar interface {
	Range(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error)
	Create(ctx context.Context, userID string, draft domain.CalendarEventCreate) (domain.CalendarEvent, error)
	Update(ctx context.Context, userID, id string, upd domain.CalendarEventUpdate) (domain.CalendarEvent, error)
	Delete(ctx context.Context, userID, id string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper remembers idempotency keys of task creations.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a key, used when the creation fails.
	Remove(ctx context.Context, userID, key string) error
	// Resolve attaches the created task id to a recorded key.
	Resolve(ctx context.Context, userID, key, taskID string) error
	// Lookup returns the task id of a resolved key, or "" while pending.
	Lookup(ctx context.Context, userID, key string) (string, error)
}

// Streamer hands out per-user event feeds.
type Streamer interface {
	Subscribe(userID string) chan []byte
	Unsubscribe(userID string, ch chan []byte)
}
