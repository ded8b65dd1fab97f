package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// Repository persists notifications per user.
type Repository interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	// Get returns nil when the notification does not exist.
	Get(ctx context.Context, userID, id string) (*domain.Notification, error)
	Save(ctx context.Context, n domain.Notification) error
	// Delete reports whether a notification was removed.
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// Inbox is the notification centre of a user.
type Inbox struct {
	repo Repository
	log  *log.Logger
}

func NewInbox(repo Repository, logger *log.Logger) *Inbox {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Inbox{repo: repo, log: logger}
}

// List returns notifications newest first. A non-nil read keeps only
// notifications with that read state.
func (i *Inbox) List(ctx context.Context, userID string, read *bool) ([]domain.Notification, error) {
	all, err := i.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []domain.Notification{}
	for _, n := range all {
		if read != nil && n.Read != *read {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// Create adds an unread notification.
func (i *Inbox) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if strings.TrimSpace(n.Title) == "" {
		return domain.Notification{}, &domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	if !n.Type.Valid() {
		return domain.Notification{}, &domain.ValidationError{Field: "type", Reason: "unknown notification type " + string(n.Type)}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = domain.Now()
	}
	n.Read = false
	if err := i.repo.Save(ctx, n); err != nil {
		return domain.Notification{}, err
	}
	i.log.WithFields(log.Fields{"user": n.UserID, "notification": n.ID, "type": n.Type}).Debug("notification created")
	return n, nil
}

func (i *Inbox) MarkRead(ctx context.Context, userID, id string) (domain.Notification, error) {
	n, err := i.repo.Get(ctx, userID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n == nil {
		return domain.Notification{}, &domain.NotFoundError{Kind: "notification", ID: id}
	}
	if n.Read {
		return *n, nil
	}
	n.Read = true
	if err := i.repo.Save(ctx, *n); err != nil {
		return domain.Notification{}, err
	}
	return *n, nil
}

// MarkAllRead marks every unread notification and returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int, error) {
	all, err := i.repo.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, n := range all {
		if n.Read {
			continue
		}
		n.Read = true
		if err := i.repo.Save(ctx, n); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (i *Inbox) Delete(ctx context.Context, userID, id string) error {
	removed, err := i.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !removed {
		return &domain.NotFoundError{Kind: "notification", ID: id}
	}
	return nil
}

func (i *Inbox) UnreadCount(ctx context.Context, userID string) (int, error) {
	all, err := i.repo.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// Handle turns task events into notifications. It lets the inbox sit behind
// a Dispatcher.
func (i *Inbox) Handle(ctx context.Context, ev domain.Event) error {
	n, ok, err := FromEvent(ev)
	if err != nil || !ok {
		return err
	}
	_, err = i.Create(ctx, n)
	return err
}
