package notify

import (
	"testing"

	"github.com/bytedance/sonic"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

func taskEvent(t *testing.T, typ string, task domain.Task, from domain.Status) domain.Event {
	t.Helper()
	data, err := sonic.Marshal(domain.TaskEventData{Task: task, FromStatus: from})
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return domain.Event{
		ID:         "ev-" + typ,
		EntityID:   task.ID,
		EntityType: domain.EntityTask,
		Type:       typ,
		Data:       data,
		Time:       domain.Now().UnixNano(),
		UserID:     task.UserID,
	}
}

func TestFromEvent(t *testing.T) {
	task := domain.Task{ID: "t1", Title: "Draft report", UserID: "u"}
	completed, overdue, paused := task, task, task
	completed.Status = domain.StatusCompleted
	overdue.Status = domain.StatusOverdue
	paused.Status = domain.StatusPaused

	tests := []struct {
		name   string
		ev     domain.Event
		wantOK bool
		want   domain.NotificationType
	}{
		{"created", taskEvent(t, domain.TaskCreated, task, ""), true, domain.NotificationInfo},
		{"completed", taskEvent(t, domain.TaskStatusChanged, completed, domain.StatusInProgress), true, domain.NotificationSuccess},
		{"overdue", taskEvent(t, domain.TaskStatusChanged, overdue, domain.StatusPending), true, domain.NotificationWarning},
		{"paused", taskEvent(t, domain.TaskStatusChanged, paused, domain.StatusInProgress), false, ""},
		{"updated", taskEvent(t, domain.TaskUpdated, task, ""), false, ""},
		{"deleted", taskEvent(t, domain.TaskDeleted, task, ""), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, err := FromEvent(tt.ev)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if n.Type != tt.want || n.UserID != "u" || n.TaskID != "t1" || n.Title == "" {
				t.Fatalf("unexpected notification: %#v", n)
			}
		})
	}
}

func TestFromEventRejectsBadPayload(t *testing.T) {
	ev := domain.Event{EntityType: domain.EntityTask, Type: domain.TaskCreated, Data: []byte("{bad")}
	if _, _, err := FromEvent(ev); err == nil {
		t.Fatalf("expected decode error")
	}
}
