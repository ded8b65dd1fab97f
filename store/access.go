package store

import (
	"context"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// Filter narrows ListTasks. Nil fields match everything.
type Filter struct {
	Status   *domain.Status
	Priority *domain.Priority
}

// Match reports whether t passes the filter.
func (f Filter) Match(t domain.Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	return true
}

// DataAccess is the boundary the Store persists through. Implementations
// return *domain.NotFoundError for unknown ids; any other error is treated as
// a transport failure.
type DataAccess interface {
	ListTasks(ctx context.Context, f Filter) ([]domain.Task, error)
	CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	// BulkUpdateTasks applies every item whose id is known and returns the
	// updated tasks. Unknown ids are skipped.
	BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error)
}

// Publisher receives events for confirmed changes.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}
