package api

import "github.com/sekyikins/AI-Scheduler-Project/domain"

const (
	requestMaxSize = 64 * 1024 // 64 KiB
	bulkMaxItems   = 500

	headerIdempotencyKey = "Idempotency-Key"
)

// GET /api/tasks, PUT /api/tasks/bulk response body
type tasksResponse struct {
	Tasks      []domain.Task    `json:"tasks"`
	Pagination *domain.PageInfo `json:"pagination,omitempty"`
}

// GET /api/notifications response body
type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Pagination    *domain.PageInfo      `json:"pagination,omitempty"`
}

// POST /api/notifications request body
type notificationCreate struct {
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Type    domain.NotificationType `json:"type,omitempty"`
	TaskID  string                  `json:"taskId,omitempty"`
}

// GET /api/pomodoro/sessions response body
type sessionsResponse struct {
	Sessions   []domain.PomodoroSession `json:"sessions"`
	Pagination *domain.PageInfo         `json:"pagination,omitempty"`
}

// GET /api/calendar/events response body
type eventsResponse struct {
	Events []domain.CalendarEvent `json:"events"`
}

// PUT /api/notifications/read-all response body
type markAllReadResponse struct {
	Updated int `json:"updated"`
}

// GET /api/tasks/:id/actions response body
type actionsResponse struct {
	Status       domain.Status `json:"status"`
	PrimaryLabel string        `json:"primaryLabel"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
