package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

var (
	errDuplicateRequest = errors.New("request with this idempotency key is already being processed")
	errTooManyItems     = errors.New("too many bulk items")
	errSystemAction     = errors.New("action is reserved for the overdue sweeper")
)

// Deps are the collaborators of the HTTP surface. Deduper, Stream,
// Pomodoro and Calendar are optional.
type Deps struct {
	Tasks   TaskService
	Inbox   Inbox
	Auth    Authenticator
	// Pomodoro and Calendar routes are registered only when set.
	Pomodoro Pomodoro
	Calendar Calendar
	Deduper  Deduper
	Stream   Streamer
	// Owner is the user whose tasks the store holds.
	Owner  string
	Logger *log.Logger
	Now    func() time.Time
}

type handlers struct {
	Deps
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = domain.Now
	}
	h := &handlers{Deps: deps}

	e.GET("/healthz", h.healthz)

	e.GET("/api/tasks", h.task("/api/tasks", h.listTasks))
	e.GET("/api/tasks/summary", h.task("/api/tasks/summary", h.summary))
	e.PUT("/api/tasks/bulk", h.task("/api/tasks/bulk", h.bulkUpdate))
	e.POST("/api/tasks", h.task("/api/tasks", h.createTask))
	e.GET("/api/tasks/:id", h.task("/api/tasks/:id", h.getTask))
	e.PATCH("/api/tasks/:id", h.task("/api/tasks/:id", h.updateTask))
	e.DELETE("/api/tasks/:id", h.task("/api/tasks/:id", h.deleteTask))
	e.GET("/api/tasks/:id/actions", h.task("/api/tasks/:id/actions", h.taskActions))
	e.POST("/api/tasks/:id/actions/:action", h.task("/api/tasks/:id/actions/:action", h.applyAction))

	e.GET("/api/notifications", h.listNotifications)
	e.POST("/api/notifications", h.createNotification)
	e.PUT("/api/notifications/read-all", h.markAllRead)
	e.PUT("/api/notifications/:id/read", h.markRead)
	e.DELETE("/api/notifications/:id", h.deleteNotification)

	if deps.Pomodoro != nil {
		e.POST("/api/pomodoro/start", h.startSession)
		e.PUT("/api/pomodoro/:id/end", h.endSession)
		e.GET("/api/pomodoro/sessions", h.listSessions)
		e.GET("/api/pomodoro/stats", h.sessionStats)
	}
	if deps.Calendar != nil {
		e.GET("/api/calendar/events", h.listEvents)
		e.POST("/api/calendar/events", h.createEvent)
		e.PUT("/api/calendar/events/:id", h.updateEvent)
		e.DELETE("/api/calendar/events/:id", h.deleteEvent)
	}
	if deps.Stream != nil {
		e.GET("/api/stream", h.stream)
	}
}

type taskHandler func(c echo.Context, m *taskRequestMetrics, userID string) error

// task wraps a task route with request metrics and owner authentication.
func (h *handlers) task(route string, next taskHandler) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, spanCtx := newTaskRequestMetrics(c.Request().Context(), h.Logger)
		m.SetRoute(route)
		c.SetRequest(c.Request().WithContext(spanCtx))
		defer func() {
			m.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := h.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		m.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			m.SetErrorStage("auth")
			return writeMessage(c, http.StatusUnauthorized, authErr)
		}
		if h.Owner != "" && userID != h.Owner {
			m.SetErrorStage("auth")
			return writeMessage(c, http.StatusForbidden, errForbidden)
		}
		return next(c, m, userID)
	}
}

func (h *handlers) fail(c echo.Context, m *taskRequestMetrics, err error) error {
	_, stage := statusFor(err)
	m.SetErrorStage(stage)
	m.SetCause(err)
	return writeError(c, h.Logger, err)
}

func (h *handlers) respond(c echo.Context, m *taskRequestMetrics, status int, body any) error {
	encodeStart := time.Now()
	err := c.JSON(status, body)
	m.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		m.SetErrorStage("encode_response")
	}
	return err
}

func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "tasks": len(h.Tasks.List())})
}

func (h *handlers) listTasks(c echo.Context, m *taskRequestMetrics, _ string) error {
	var tasks []domain.Task
	switch {
	case c.QueryParam("sort") == "date":
		tasks = h.Tasks.Sorted()
	case parseBool(c.QueryParam("active")):
		tasks = h.Tasks.Active()
	default:
		tasks = h.Tasks.List()
	}

	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return h.fail(c, m, &domain.ValidationError{Field: "status", Reason: "unknown status " + raw})
		}
		tasks = domain.ByStatus(tasks, status)
	}
	if raw := strings.TrimSpace(c.QueryParam("priority")); raw != "" {
		priority := domain.Priority(raw)
		if !priority.Valid() {
			return h.fail(c, m, &domain.ValidationError{Field: "priority", Reason: "unknown priority " + raw})
		}
		tasks = domain.ByPriority(tasks, priority)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	page, err := parsePage(c)
	if err != nil {
		return h.fail(c, m, err)
	}
	resp := tasksResponse{Tasks: tasks}
	if page != nil {
		var info domain.PageInfo
		resp.Tasks, info = domain.Paginate(tasks, *page)
		resp.Pagination = &info
	}
	m.SetTasksReturned(len(resp.Tasks))
	return h.respond(c, m, http.StatusOK, resp)
}

func (h *handlers) summary(c echo.Context, m *taskRequestMetrics, _ string) error {
	return h.respond(c, m, http.StatusOK, h.Tasks.Summary(h.Now()))
}

func (h *handlers) getTask(c echo.Context, m *taskRequestMetrics, _ string) error {
	task, err := h.Tasks.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, m, err)
	}
	m.SetTasksReturned(1)
	return h.respond(c, m, http.StatusOK, task)
}

func (h *handlers) taskActions(c echo.Context, m *taskRequestMetrics, _ string) error {
	task, err := h.Tasks.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, m, err)
	}
	return h.respond(c, m, http.StatusOK, actionsResponse{Status: task.Status, PrimaryLabel: domain.PrimaryLabel(task.Status)})
}

func (h *handlers) createTask(c echo.Context, m *taskRequestMetrics, userID string) error {
	var draft domain.TaskCreate
	if err := decodeBody(c, &draft); err != nil {
		m.SetErrorStage("decode")
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	ctx := c.Request().Context()

	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	if key != "" && h.Deduper != nil {
		added, err := h.Deduper.Add(ctx, userID, key)
		switch {
		case err != nil:
			h.Logger.WithError(err).Warn("idempotency check failed; creating without it")
			key = ""
		case !added:
			return h.replayCreate(c, m, userID, key)
		}
	} else {
		key = ""
	}

	storeStart := time.Now()
	task, err := h.Tasks.Create(ctx, draft)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		if key != "" {
			if rerr := h.Deduper.Remove(context.WithoutCancel(ctx), userID, key); rerr != nil {
				h.Logger.Errorf("dedupe rollback failed, err : %v, key: %s, user: %s", rerr, key, userID)
			}
		}
		return h.fail(c, m, err)
	}
	if key != "" {
		if rerr := h.Deduper.Resolve(context.WithoutCancel(ctx), userID, key, task.ID); rerr != nil {
			h.Logger.Errorf("dedupe resolve failed, err : %v, key: %s, user: %s", rerr, key, userID)
		}
	}
	m.SetTasksReturned(1)
	return h.respond(c, m, http.StatusCreated, task)
}

// replayCreate answers a repeated POST with the task created by the first one.
func (h *handlers) replayCreate(c echo.Context, m *taskRequestMetrics, userID, key string) error {
	id, err := h.Deduper.Lookup(c.Request().Context(), userID, key)
	if err == nil && id != "" {
		if task, gerr := h.Tasks.Get(id); gerr == nil {
			m.SetTasksReturned(1)
			return h.respond(c, m, http.StatusOK, task)
		}
	}
	m.SetErrorStage("duplicate")
	return writeMessage(c, http.StatusConflict, errDuplicateRequest)
}

func (h *handlers) updateTask(c echo.Context, m *taskRequestMetrics, _ string) error {
	var partial domain.TaskUpdate
	if err := decodeBody(c, &partial); err != nil {
		m.SetErrorStage("decode")
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	storeStart := time.Now()
	task, err := h.Tasks.Update(c.Request().Context(), c.Param("id"), partial)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, err)
	}
	m.SetTasksReturned(1)
	return h.respond(c, m, http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context, m *taskRequestMetrics, _ string) error {
	storeStart := time.Now()
	err := h.Tasks.Delete(c.Request().Context(), c.Param("id"))
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) bulkUpdate(c echo.Context, m *taskRequestMetrics, _ string) error {
	items := make([]domain.BulkUpdateItem, 0, 8)
	if err := decodeBody(c, &items); err != nil {
		m.SetErrorStage("decode")
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	if len(items) > bulkMaxItems {
		m.SetErrorStage("decode")
		return writeMessage(c, http.StatusBadRequest, errTooManyItems)
	}
	storeStart := time.Now()
	tasks, err := h.Tasks.BulkUpdate(c.Request().Context(), items)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	m.SetTasksReturned(len(tasks))
	return h.respond(c, m, http.StatusOK, tasksResponse{Tasks: tasks})
}

// applyAction runs a lifecycle action. "toggle" flips the completion
// checkbox; the sweeper-only expire action is refused.
func (h *handlers) applyAction(c echo.Context, m *taskRequestMetrics, _ string) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	raw := c.Param("action")

	var (
		task domain.Task
		err  error
	)
	storeStart := time.Now()
	if raw == "toggle" {
		task, err = h.Tasks.ToggleComplete(ctx, id)
	} else {
		action, ok := domain.ParseAction(raw)
		switch {
		case !ok:
			return h.fail(c, m, &domain.ValidationError{Field: "action", Reason: "unknown action " + raw})
		case action == domain.ActionExpire:
			return h.fail(c, m, &domain.ValidationError{Field: "action", Reason: errSystemAction.Error()})
		}
		task, err = h.Tasks.Transition(ctx, id, action)
	}
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, err)
	}
	m.SetTasksReturned(1)
	return h.respond(c, m, http.StatusOK, task)
}

func (h *handlers) user(c echo.Context) (string, error) {
	return h.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

func (h *handlers) listNotifications(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var read *bool
	if raw := c.QueryParam("read"); raw != "" {
		v, perr := strconv.ParseBool(raw)
		if perr != nil {
			return writeError(c, h.Logger, &domain.ValidationError{Field: "read", Reason: "must be a boolean"})
		}
		read = &v
	}
	page, err := parsePage(c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx := c.Request().Context()
	list, err := h.Inbox.List(ctx, userID, read)
	if err != nil {
		return writeError(c, h.Logger, &domain.TransportError{Op: "list notifications", Err: err})
	}
	unread, err := h.Inbox.UnreadCount(ctx, userID)
	if err != nil {
		return writeError(c, h.Logger, &domain.TransportError{Op: "count notifications", Err: err})
	}
	if list == nil {
		list = []domain.Notification{}
	}
	resp := notificationsResponse{Notifications: list, UnreadCount: unread}
	if page != nil {
		var info domain.PageInfo
		resp.Notifications, info = domain.Paginate(list, *page)
		resp.Pagination = &info
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) createNotification(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var body notificationCreate
	if err := decodeBody(c, &body); err != nil {
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	n, err := h.Inbox.Create(c.Request().Context(), domain.Notification{
		Title:   body.Title,
		Message: body.Message,
		Type:    body.Type,
		TaskID:  body.TaskID,
		UserID:  userID,
	})
	if err != nil {
		return writeError(c, h.Logger, repositoryError("create notification", err))
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *handlers) markRead(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	n, err := h.Inbox.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, repositoryError("mark notification read", err))
	}
	return c.JSON(http.StatusOK, n)
}

func (h *handlers) markAllRead(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	changed, err := h.Inbox.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("mark notifications read", err))
	}
	return c.JSON(http.StatusOK, markAllReadResponse{Updated: changed})
}

func (h *handlers) deleteNotification(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	if err := h.Inbox.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return writeError(c, h.Logger, repositoryError("delete notification", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// repositoryError keeps domain errors and reports repository failures as
// transport errors.
func repositoryError(op string, err error) error {
	if domain.IsNotFound(err) || domain.IsValidation(err) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parsePage reads skip and limit. It returns nil when neither is given so
// listings stay whole for clients that do not page.
func parsePage(c echo.Context) (*domain.PageRequest, error) {
	rawSkip, rawLimit := c.QueryParam("skip"), c.QueryParam("limit")
	if rawSkip == "" && rawLimit == "" {
		return nil, nil
	}
	p := domain.PageRequest{Limit: domain.DefaultPageLimit}
	if rawSkip != "" {
		v, err := strconv.Atoi(rawSkip)
		if err != nil {
			return nil, &domain.ValidationError{Field: "skip", Reason: "must be an integer"}
		}
		p.Skip = v
	}
	if rawLimit != "" {
		v, err := strconv.Atoi(rawLimit)
		if err != nil {
			return nil, &domain.ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		p.Limit = v
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
