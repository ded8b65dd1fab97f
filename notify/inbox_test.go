package notify

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"redis":  NewRedisRepository(client),
	}
}

func TestInboxLifecycle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			inbox := NewInbox(repo, logger)
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

			var ids []string
			for i, title := range []string{"first", "second", "third"} {
				n, err := inbox.Create(ctx, domain.Notification{UserID: "u", Title: title, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				if n.Read || n.Type != domain.NotificationInfo || n.ID == "" {
					t.Fatalf("unexpected notification defaults: %#v", n)
				}
				ids = append(ids, n.ID)
			}

			list, err := inbox.List(ctx, "u", nil)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 3 || list[0].Title != "third" || list[2].Title != "first" {
				t.Fatalf("expected newest first, got %#v", list)
			}

			if _, err := inbox.MarkRead(ctx, "u", ids[0]); err != nil {
				t.Fatalf("mark read: %v", err)
			}
			if count, _ := inbox.UnreadCount(ctx, "u"); count != 2 {
				t.Fatalf("expected 2 unread, got %d", count)
			}
			read := true
			onlyRead, _ := inbox.List(ctx, "u", &read)
			if len(onlyRead) != 1 || onlyRead[0].ID != ids[0] {
				t.Fatalf("read filter: %#v", onlyRead)
			}

			changed, err := inbox.MarkAllRead(ctx, "u")
			if err != nil || changed != 2 {
				t.Fatalf("mark all read: %d %v", changed, err)
			}
			if count, _ := inbox.UnreadCount(ctx, "u"); count != 0 {
				t.Fatalf("expected 0 unread, got %d", count)
			}

			if err := inbox.Delete(ctx, "u", ids[1]); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := inbox.Delete(ctx, "u", ids[1]); !domain.IsNotFound(err) {
				t.Fatalf("expected NotFound on second delete, got %v", err)
			}
			if _, err := inbox.MarkRead(ctx, "u", "missing"); !domain.IsNotFound(err) {
				t.Fatalf("expected NotFound on mark read, got %v", err)
			}
			if other, _ := inbox.List(ctx, "someone-else", nil); len(other) != 0 {
				t.Fatalf("inboxes must be per user")
			}
		})
	}
}

func TestInboxCreateRequiresTitle(t *testing.T) {
	inbox := NewInbox(NewMemoryRepository(), nil)
	if _, err := inbox.Create(context.Background(), domain.Notification{UserID: "u"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInboxHandleCreatesFromEvents(t *testing.T) {
	inbox := NewInbox(NewMemoryRepository(), nil)
	ctx := context.Background()

	task := domain.Task{ID: "t1", Title: "Draft report", Status: domain.StatusCompleted, UserID: "u"}
	if err := inbox.Handle(ctx, taskEvent(t, domain.TaskStatusChanged, task, domain.StatusInProgress)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := inbox.Handle(ctx, taskEvent(t, domain.TaskUpdated, task, "")); err != nil {
		t.Fatalf("handle update: %v", err)
	}

	list, _ := inbox.List(ctx, "u", nil)
	if len(list) != 1 || list[0].Type != domain.NotificationSuccess || list[0].TaskID != "t1" {
		t.Fatalf("unexpected inbox: %#v", list)
	}
}

func TestInboxCreateRejectsUnknownType(t *testing.T) {
	inbox := NewInbox(NewMemoryRepository(), nil)
	_, err := inbox.Create(context.Background(), domain.Notification{UserID: "u", Title: "t", Type: "shout"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
