package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

var errBoom = errors.New("boom")

type fakeAccess struct {
	mu     sync.Mutex
	tasks  []domain.Task
	nextID int
	err    error
	calls  map[string]int
}

func newFakeAccess(seed ...domain.Task) *fakeAccess {
	return &fakeAccess{tasks: append([]domain.Task(nil), seed...), calls: map[string]int{}}
}

func (f *fakeAccess) record(op string) error {
	f.calls[op]++
	return f.err
}

func (f *fakeAccess) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAccess) index(id string) int {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeAccess) ListTasks(ctx context.Context, flt Filter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for _, t := range f.tasks {
		if flt.Match(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (f *fakeAccess) CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create"); err != nil {
		return domain.Task{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	f.nextID++
	t := draft.NewTask(fmt.Sprintf("task-%d", f.nextID), userID, domain.Now())
	f.tasks = append(f.tasks, t)
	return t.Clone(), nil
}

func (f *fakeAccess) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return domain.Task{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	i := f.index(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	f.tasks[i] = upd.Apply(f.tasks[i], domain.Now())
	return f.tasks[i].Clone(), nil
}

func (f *fakeAccess) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	i := f.index(id)
	if i < 0 {
		return &domain.NotFoundError{ID: id}
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

func (f *fakeAccess) BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("bulk"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for _, it := range items {
		i := f.index(it.ID)
		if i < 0 {
			continue
		}
		f.tasks[i] = it.Updates.Apply(f.tasks[i], domain.Now())
		out = append(out, f.tasks[i].Clone())
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
