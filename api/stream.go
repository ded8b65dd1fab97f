package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const streamHeartbeat = 15 * time.Second

// stream forwards the caller's task events as server-sent events. Browsers
// cannot set headers on EventSource, so a token query parameter is accepted
// in place of the Authorization header.
func (h *handlers) stream(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); auth == "" && token != "" {
		auth = "Bearer " + token
	}
	userID, err := h.Auth.UserIDFromAuthHeader(auth)
	if err != nil {
		return writeMessage(c, http.StatusUnauthorized, err)
	}

	res := c.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.Stream.Subscribe(userID)
	defer h.Stream.Unsubscribe(userID, events)
	h.Logger.WithField("user", userID).Debug("stream client connected")

	ctx := c.Request().Context()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-events:
			if err := writeEvent(res, data); err != nil {
				return nil
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := res.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
