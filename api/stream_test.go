package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/notify"
)

type tokenAuth struct{}

func (tokenAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h != "Bearer a.b.c" {
		return "", errBadAuthorization
	}
	return testUser, nil
}

func TestStreamForwardsEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	broker := notify.NewBroker()
	h := &handlers{Deps: Deps{Auth: tokenAuth{}, Stream: broker, Logger: logger}}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream?token=a.b.c", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	done := make(chan error, 1)
	go func() { done <- h.stream(c) }()

	deadline := time.Now().Add(time.Second)
	for broker.Subscribers(testUser) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := broker.Handle(context.Background(), domain.Event{ID: "e1", Type: domain.TaskCreated, UserID: testUser}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stream returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	if got := rec.Header().Get(echo.HeaderContentType); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.Contains(body, `"id":"e1"`) {
		t.Fatalf("unexpected stream body %q", body)
	}
	if broker.Subscribers(testUser) != 0 {
		t.Fatalf("stream must unsubscribe on exit")
	}
}

func TestStreamRequiresAuth(t *testing.T) {
	h := &handlers{Deps: Deps{Auth: tokenAuth{}, Stream: notify.NewBroker()}}
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.stream(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
