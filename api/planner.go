package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

const dayLayout = "2006-01-02"

func (h *handlers) startSession(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var req domain.SessionStart
	if err := decodeBody(c, &req); err != nil {
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	s, err := h.Pomodoro.Start(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("start session", err))
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *handlers) endSession(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	s, err := h.Pomodoro.End(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, repositoryError("end session", err))
	}
	return c.JSON(http.StatusOK, s)
}

// listSessions answers GET /api/pomodoro/sessions. date=YYYY-MM-DD narrows
// the listing to one UTC day.
func (h *handlers) listSessions(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var day *time.Time
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, perr := time.Parse(dayLayout, raw)
		if perr != nil {
			return writeError(c, h.Logger, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"})
		}
		day = &d
	}
	page, err := parsePage(c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	list, err := h.Pomodoro.Sessions(c.Request().Context(), userID, day)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("list sessions", err))
	}
	resp := sessionsResponse{Sessions: list}
	if page != nil {
		var info domain.PageInfo
		resp.Sessions, info = domain.Paginate(list, *page)
		resp.Pagination = &info
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) sessionStats(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	period := c.QueryParam("period")
	switch period {
	case "":
		period = "week"
	case "week", "month", "year":
	default:
		return writeError(c, h.Logger, &domain.ValidationError{Field: "period", Reason: "must be week, month or year"})
	}
	stats, err := h.Pomodoro.Stats(c.Request().Context(), userID, period, h.Now())
	if err != nil {
		return writeError(c, h.Logger, repositoryError("session stats", err))
	}
	return c.JSON(http.StatusOK, stats)
}

// listEvents answers GET /api/calendar/events?start=&end= with RFC 3339
// bounds.
func (h *handlers) listEvents(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	from, err := parseInstant(c, "start")
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	to, err := parseInstant(c, "end")
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	events, err := h.Calendar.Range(c.Request().Context(), userID, from, to)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("list events", err))
	}
	return c.JSON(http.StatusOK, eventsResponse{Events: events})
}

func (h *handlers) createEvent(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var draft domain.CalendarEventCreate
	if err := decodeBody(c, &draft); err != nil {
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	ev, err := h.Calendar.Create(c.Request().Context(), userID, draft)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("create event", err))
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *handlers) updateEvent(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	var upd domain.CalendarEventUpdate
	if err := decodeBody(c, &upd); err != nil {
		return writeMessage(c, http.StatusBadRequest, errInvalidBody)
	}
	ev, err := h.Calendar.Update(c.Request().Context(), userID, c.Param("id"), upd)
	if err != nil {
		return writeError(c, h.Logger, repositoryError("update event", err))
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *handlers) deleteEvent(c echo.Context) error {
	userID, err := h.user(c)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}
	if err := h.Calendar.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return writeError(c, h.Logger, repositoryError("delete event", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func parseInstant(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, &domain.ValidationError{Field: name, Reason: "is required"}
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: name, Reason: "must be an RFC 3339 timestamp"}
	}
	return v, nil
}
