package notify

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// FromEvent derives the inbox entry for a task event. Events that do not
// warrant a notification return ok == false.
//
//	task-created                 -> info    "Task created"
//	status changed to completed  -> success "Task completed"
//	status changed to overdue    -> warning "Task overdue"
func FromEvent(ev domain.Event) (n domain.Notification, ok bool, err error) {
	if ev.EntityType != domain.EntityTask {
		return domain.Notification{}, false, nil
	}
	var data domain.TaskEventData
	if len(ev.Data) > 0 {
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return domain.Notification{}, false, fmt.Errorf("decode %s event: %w", ev.Type, err)
		}
	}
	n = domain.Notification{UserID: ev.UserID, TaskID: ev.EntityID}
	if ev.Time > 0 {
		n.CreatedAt = time.Unix(0, ev.Time).UTC()
	}
	switch ev.Type {
	case domain.TaskCreated:
		n.Type = domain.NotificationInfo
		n.Title = "Task created"
		n.Message = fmt.Sprintf("%q was added to your list.", data.Task.Title)
	case domain.TaskStatusChanged:
		switch data.Task.Status {
		case domain.StatusCompleted:
			n.Type = domain.NotificationSuccess
			n.Title = "Task completed"
			n.Message = fmt.Sprintf("Great job! You completed %q.", data.Task.Title)
		case domain.StatusOverdue:
			n.Type = domain.NotificationWarning
			n.Title = "Task overdue"
			n.Message = fmt.Sprintf("%q is past its due date.", data.Task.Title)
		default:
			return domain.Notification{}, false, nil
		}
	default:
		return domain.Notification{}, false, nil
	}
	return n, true, nil
}
