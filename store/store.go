package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// Options configure a Store.
type Options struct {
	UserID    string
	MaxTags   int
	Logger    *log.Logger
	Publisher Publisher
}

// Store owns the in-memory task collection. Every mutation goes through the
// DataAccess first and is applied locally only once the boundary confirmed it.
type Store struct {
	access    DataAccess
	userID    string
	maxTags   int
	log       *log.Logger
	publisher Publisher

	// mu guards tasks. It is never held across a DataAccess call.
	mu    sync.RWMutex
	tasks []domain.Task
}

// New creates an empty Store. Call Refresh to load the persisted tasks.
func New(access DataAccess, opts Options) *Store {
	if opts.MaxTags <= 0 {
		opts.MaxTags = domain.DefaultMaxTags
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Store{
		access:    access,
		userID:    opts.UserID,
		maxTags:   opts.MaxTags,
		log:       opts.Logger,
		publisher: opts.Publisher,
		tasks:     []domain.Task{},
	}
}

// List returns a copy of the collection in stored order.
func (s *Store) List() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return s.tasks[i].Clone(), nil
}

func (s *Store) ByStatus(status domain.Status) []domain.Task {
	return domain.ByStatus(s.List(), status)
}

func (s *Store) ByPriority(p domain.Priority) []domain.Task {
	return domain.ByPriority(s.List(), p)
}

// Sorted returns the collection ordered by due date or creation date, newest first.
func (s *Store) Sorted() []domain.Task {
	return domain.SortByDate(s.List())
}

func (s *Store) Active() []domain.Task {
	return domain.Active(s.List())
}

func (s *Store) Summary(now time.Time) domain.Summary {
	return domain.Summarize(s.List(), now)
}

// Refresh replaces the collection with what the boundary holds. On failure
// the collection is left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	tasks, err := s.access.ListTasks(ctx, Filter{})
	if err != nil {
		err = boundaryError("list tasks", err)
		s.log.WithError(err).Error("task refresh failed")
		return err
	}
	seen := make(map[string]struct{}, len(tasks))
	loaded := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			s.log.WithField("task", t.ID).Warn("duplicate task id in listing")
			continue
		}
		seen[t.ID] = struct{}{}
		loaded = append(loaded, t.Clone())
	}
	s.mu.Lock()
	s.tasks = loaded
	s.mu.Unlock()
	s.log.WithField("count", len(loaded)).Debug("tasks refreshed")
	return nil
}

// Create validates the draft, persists it and appends the result.
func (s *Store) Create(ctx context.Context, draft domain.TaskCreate) (domain.Task, error) {
	if err := draft.Validate(s.maxTags); err != nil {
		return domain.Task{}, err
	}
	task, err := s.access.CreateTask(ctx, s.userID, draft)
	if err != nil {
		err = boundaryError("create task", err)
		s.log.WithError(err).Error("task create failed")
		return domain.Task{}, err
	}

	s.mu.Lock()
	if task.ID == "" || s.indexLocked(task.ID) >= 0 {
		s.mu.Unlock()
		err := &domain.TransportError{Op: "create task", Err: fmt.Errorf("boundary returned unusable id %q", task.ID)}
		s.log.WithError(err).Error("task create failed")
		return domain.Task{}, err
	}
	s.tasks = append(s.tasks, task.Clone())
	s.mu.Unlock()

	s.publish(ctx, domain.TaskCreated, task, "")
	return task, nil
}

// Update merges partial into the task with the given id. Unknown ids fail
// without reaching the boundary. A status write must follow the lifecycle.
func (s *Store) Update(ctx context.Context, id string, partial domain.TaskUpdate) (domain.Task, error) {
	if partial.IsEmpty() {
		return domain.Task{}, &domain.ValidationError{Reason: "no fields to update"}
	}
	if err := partial.Validate(s.maxTags); err != nil {
		return domain.Task{}, err
	}
	current, err := s.Get(id)
	if err != nil {
		return domain.Task{}, err
	}
	if partial.Status != nil && !domain.CanTransition(current.Status, *partial.Status) {
		return domain.Task{}, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot move from %s to %s", current.Status, *partial.Status),
		}
	}

	updated, err := s.access.UpdateTask(ctx, id, partial)
	if err != nil {
		err = boundaryError("update task", err)
		s.log.WithFields(log.Fields{"task": id}).WithError(err).Error("task update failed")
		return domain.Task{}, err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks[i] = updated.Clone()
	}
	s.mu.Unlock()

	s.publishChange(ctx, current, updated)
	return updated, nil
}

// Delete removes the task once the boundary has confirmed the deletion.
func (s *Store) Delete(ctx context.Context, id string) error {
	current, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.access.DeleteTask(ctx, id); err != nil {
		err = boundaryError("delete task", err)
		s.log.WithFields(log.Fields{"task": id}).WithError(err).Error("task delete failed")
		return err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	s.mu.Unlock()

	s.publish(ctx, domain.TaskDeleted, current, "")
	return nil
}

// BulkUpdate applies several partial updates in one boundary call. Every item
// is validated first and one invalid item rejects the batch. Ids the
// boundary does not know are skipped. Only tasks the boundary returns are
// applied; a transport failure applies nothing.
// An id may appear only once per batch.
func (s *Store) BulkUpdate(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	return s.bulkUpdate(ctx, items, domain.CanTransition)
}

// bulkUpdate checks every status write of items with allowed before the
// batch reaches the boundary.
func (s *Store) bulkUpdate(ctx context.Context, items []domain.BulkUpdateItem, allowed func(from, to domain.Status) bool) ([]domain.Task, error) {
	if len(items) == 0 {
		return []domain.Task{}, nil
	}
	before := make(map[string]domain.Task, len(items))
	seen := make(map[string]struct{}, len(items))
	s.mu.RLock()
	for _, it := range items {
		if it.ID == "" {
			s.mu.RUnlock()
			return nil, &domain.ValidationError{Field: "id", Reason: "is required"}
		}
		if _, dup := seen[it.ID]; dup {
			s.mu.RUnlock()
			return nil, &domain.ValidationError{Field: "id", Reason: "task " + it.ID + " appears more than once"}
		}
		seen[it.ID] = struct{}{}
		if err := it.Updates.Validate(s.maxTags); err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		i := s.indexLocked(it.ID)
		if i < 0 {
			continue
		}
		cur := s.tasks[i]
		if it.Updates.Status != nil && !allowed(cur.Status, *it.Updates.Status) {
			s.mu.RUnlock()
			return nil, &domain.ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("task %s cannot move from %s to %s", it.ID, cur.Status, *it.Updates.Status),
			}
		}
		before[it.ID] = cur.Clone()
	}
	s.mu.RUnlock()

	updated, err := s.access.BulkUpdateTasks(ctx, items)
	if err != nil {
		err = boundaryError("bulk update tasks", err)
		s.log.WithFields(log.Fields{"items": len(items)}).WithError(err).Error("bulk update failed")
		return nil, err
	}

	applied := make([]domain.Task, 0, len(updated))
	s.mu.Lock()
	for _, t := range updated {
		i := s.indexLocked(t.ID)
		if i < 0 {
			continue
		}
		s.tasks[i] = t.Clone()
		applied = append(applied, t)
	}
	s.mu.Unlock()

	if skipped := len(items) - len(applied); skipped > 0 {
		s.log.WithFields(log.Fields{"items": len(items), "skipped": skipped}).Debug("bulk update skipped unknown ids")
	}
	for _, t := range applied {
		prev, ok := before[t.ID]
		if !ok {
			prev = t
		}
		s.publishChange(ctx, prev, t)
	}
	return applied, nil
}

// Transition applies a lifecycle action to a task.
func (s *Store) Transition(ctx context.Context, id string, action domain.Action) (domain.Task, error) {
	current, err := s.Get(id)
	if err != nil {
		return domain.Task{}, err
	}
	next, err := domain.NextStatus(current.Status, action)
	if err != nil {
		return domain.Task{}, err
	}
	return s.Update(ctx, id, domain.TaskUpdate{Status: &next})
}

// PrimaryAction presses the state-dependent start/pause/resume button.
func (s *Store) PrimaryAction(ctx context.Context, id string) (domain.Task, error) {
	return s.Transition(ctx, id, domain.ActionPrimary)
}

// ToggleComplete flips the completion checkbox.
func (s *Store) ToggleComplete(ctx context.Context, id string) (domain.Task, error) {
	current, err := s.Get(id)
	if err != nil {
		return domain.Task{}, err
	}
	return s.Transition(ctx, id, domain.ToggleAction(current.Status))
}

func (s *Store) Cancel(ctx context.Context, id string) (domain.Task, error) {
	return s.Transition(ctx, id, domain.ActionCancel)
}

// SweepOverdue moves every open task whose due date has passed to overdue in
// a single bulk update. Tasks updated since they fell due are left alone.
func (s *Store) SweepOverdue(ctx context.Context, now time.Time) ([]domain.Task, error) {
	var items []domain.BulkUpdateItem
	s.mu.RLock()
	for _, t := range s.tasks {
		if !domain.DueForExpiry(t, now) {
			continue
		}
		next, err := domain.NextStatus(t.Status, domain.ActionExpire)
		if err != nil {
			continue
		}
		items = append(items, domain.BulkUpdateItem{ID: t.ID, Updates: domain.TaskUpdate{Status: &next}})
	}
	s.mu.RUnlock()
	if len(items) == 0 {
		return []domain.Task{}, nil
	}
	expired, err := s.bulkUpdate(ctx, items, domain.CanExpire)
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(expired)).Info("overdue tasks swept")
	return expired, nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) publishChange(ctx context.Context, prev, next domain.Task) {
	if prev.Status != next.Status {
		s.publish(ctx, domain.TaskStatusChanged, next, prev.Status)
		return
	}
	s.publish(ctx, domain.TaskUpdated, next, "")
}

func (s *Store) publish(ctx context.Context, typ string, t domain.Task, from domain.Status) {
	if s.publisher == nil {
		return
	}
	data, err := sonic.Marshal(domain.TaskEventData{Task: t, FromStatus: from})
	if err != nil {
		s.log.WithFields(log.Fields{"task": t.ID, "type": typ}).WithError(err).Error("encode event")
		return
	}
	ev := domain.Event{
		ID:         uuid.NewString(),
		EntityID:   t.ID,
		EntityType: domain.EntityTask,
		Type:       typ,
		Data:       data,
		Time:       domain.Now().UnixNano(),
		UserID:     t.UserID,
	}
	// The change is already confirmed; a cancelled request must not drop its event.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.WithFields(log.Fields{"task": t.ID, "type": typ}).WithError(err).Warn("event publish failed")
	}
}

// boundaryError keeps NotFound and Validation errors from the boundary and
// wraps everything else as a TransportError.
func boundaryError(op string, err error) error {
	if domain.IsNotFound(err) || domain.IsValidation(err) {
		return err
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}
