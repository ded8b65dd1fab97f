// Package calendar keeps the calendar events of a user.
package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/storage"
)

// RedisPrefix names the per-user event hash, "calendar:<user>".
const RedisPrefix = "calendar"

// TaskLookup resolves the task an event is linked to.
type TaskLookup interface {
	Get(id string) (domain.Task, error)
}

type Planner struct {
	repo  storage.Records[domain.CalendarEvent]
	tasks TaskLookup
	log   *log.Logger
	now   func() time.Time
}

// NewPlanner returns a Planner over repo. tasks may be nil, in which case
// task links are not checked.
func NewPlanner(repo storage.Records[domain.CalendarEvent], tasks TaskLookup, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Planner{repo: repo, tasks: tasks, log: logger, now: domain.Now}
}

// Range returns the events lying entirely inside [from, to], earliest first.
func (p *Planner) Range(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	if from.IsZero() || to.IsZero() {
		return nil, &domain.ValidationError{Field: "range", Reason: "start and end are required"}
	}
	if to.Before(from) {
		return nil, &domain.ValidationError{Field: "end", Reason: "must not be before start"}
	}
	all, err := p.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []domain.CalendarEvent{}
	for _, ev := range all {
		if ev.Within(from, to) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start) })
	return out, nil
}

func (p *Planner) Create(ctx context.Context, userID string, draft domain.CalendarEventCreate) (domain.CalendarEvent, error) {
	if err := draft.Validate(); err != nil {
		return domain.CalendarEvent{}, err
	}
	if err := p.checkTask(draft.TaskID); err != nil {
		return domain.CalendarEvent{}, err
	}
	ev := draft.NewEvent(uuid.NewString(), userID, p.now())
	if err := p.repo.Save(ctx, userID, ev.ID, ev); err != nil {
		return domain.CalendarEvent{}, err
	}
	p.log.WithFields(log.Fields{"user": userID, "event": ev.ID}).Debug("calendar event created")
	return ev, nil
}

func (p *Planner) Update(ctx context.Context, userID, id string, upd domain.CalendarEventUpdate) (domain.CalendarEvent, error) {
	if upd.IsEmpty() {
		return domain.CalendarEvent{}, &domain.ValidationError{Reason: "no fields to update"}
	}
	if upd.TaskID != nil {
		if err := p.checkTask(*upd.TaskID); err != nil {
			return domain.CalendarEvent{}, err
		}
	}
	current, err := p.repo.Get(ctx, userID, id)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	if current == nil {
		return domain.CalendarEvent{}, &domain.NotFoundError{Kind: "event", ID: id}
	}
	ev, err := upd.Apply(*current, p.now())
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	if err := p.repo.Save(ctx, userID, ev.ID, ev); err != nil {
		return domain.CalendarEvent{}, err
	}
	return ev, nil
}

func (p *Planner) Delete(ctx context.Context, userID, id string) error {
	removed, err := p.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !removed {
		return &domain.NotFoundError{Kind: "event", ID: id}
	}
	return nil
}

func (p *Planner) checkTask(id string) error {
	if id == "" || p.tasks == nil {
		return nil
	}
	if _, err := p.tasks.Get(id); err != nil {
		return &domain.ValidationError{Field: "taskId", Reason: "unknown task " + id}
	}
	return nil
}
