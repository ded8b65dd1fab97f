package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

// Delays is the artificial latency the in-memory backend adds per operation.
type Delays struct {
	List   time.Duration
	Create time.Duration
	Update time.Duration
	Delete time.Duration
	Bulk   time.Duration
}

// MockAPIDelays reproduces the latency profile of the simulated web backend.
var MockAPIDelays = Delays{
	List:   800 * time.Millisecond,
	Create: time.Second,
	Update: 800 * time.Millisecond,
	Delete: 500 * time.Millisecond,
	Bulk:   time.Second,
}

// UniformDelays applies d to every operation.
func UniformDelays(d time.Duration) Delays {
	return Delays{List: d, Create: d, Update: d, Delete: d, Bulk: d}
}

// MemoryAccess keeps tasks in process memory behind an artificial delay.
// The delay honours context cancellation, so a cancelled call changes nothing.
type MemoryAccess struct {
	delays Delays

	mu    sync.Mutex
	tasks []domain.Task
}

// NewMemory returns an empty in-memory backend.
func NewMemory(delays Delays, seed ...domain.Task) *MemoryAccess {
	m := &MemoryAccess{delays: delays}
	for _, t := range seed {
		m.tasks = append(m.tasks, t.Clone())
	}
	return m
}

func (m *MemoryAccess) ListTasks(ctx context.Context, f store.Filter) ([]domain.Task, error) {
	if err := wait(ctx, m.delays.List); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, t := range m.tasks {
		if f.Match(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *MemoryAccess) CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error) {
	if err := wait(ctx, m.delays.Create); err != nil {
		return domain.Task{}, err
	}
	t := draft.NewTask(uuid.NewString(), userID, domain.Now())
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return t.Clone(), nil
}

func (m *MemoryAccess) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	if err := wait(ctx, m.delays.Update); err != nil {
		return domain.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	m.tasks[i] = upd.Apply(m.tasks[i], domain.Now())
	return m.tasks[i].Clone(), nil
}

func (m *MemoryAccess) DeleteTask(ctx context.Context, id string) error {
	if err := wait(ctx, m.delays.Delete); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return &domain.NotFoundError{ID: id}
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return nil
}

// BulkUpdateTasks skips ids it does not know.
func (m *MemoryAccess) BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	if err := wait(ctx, m.delays.Bulk); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, it := range items {
		i := m.index(it.ID)
		if i < 0 {
			continue
		}
		m.tasks[i] = it.Updates.Apply(m.tasks[i], domain.Now())
		out = append(out, m.tasks[i].Clone())
	}
	return out, nil
}

func (m *MemoryAccess) index(id string) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
