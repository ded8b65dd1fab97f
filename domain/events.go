package domain

import (
	"encoding/json"
	"time"
)

const (
	TaskCreated       = "task-created"
	TaskUpdated       = "task-updated"
	TaskStatusChanged = "task-status-changed"
	TaskDeleted       = "task-deleted"
)

const EntityTask = "task"

// Event describes a confirmed change to a task.
type Event struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entityId"`
	EntityType string          `json:"entityType"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Time       int64           `json:"time"`
	UserID     string          `json:"userId"`
}

// TaskEventData is the payload of task events: the task after the change,
// and the previous status for status changes.
type TaskEventData struct {
	Task       Task   `json:"task"`
	FromStatus Status `json:"fromStatus,omitempty"`
}

// NotificationType controls how a notification is rendered.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Valid reports whether t is one of the declared notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Notification is an inbox entry for a user.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
	UserID    string           `json:"userId"`
	TaskID    string           `json:"taskId,omitempty"`
}
