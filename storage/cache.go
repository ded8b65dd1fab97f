package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

// Cache wraps a DataAccess with a Redis read-through cache of the full task
// list. Filtered listings are served from the cached list. Every successful
// write evicts the entry.
type Cache struct {
	base   store.DataAccess
	redis  *redis.Client
	ttl    time.Duration
	userID string
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base store.DataAccess, client *redis.Client, userID string, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base access is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, userID: userID}
}

func (c *Cache) ListTasks(ctx context.Context, f store.Filter) ([]domain.Task, error) {
	tasks, ok := c.loadTasksFromCache(ctx)
	if !ok {
		var err error
		tasks, err = c.base.ListTasks(ctx, store.Filter{})
		if err != nil {
			return nil, err
		}
		c.storeTasks(ctx, tasks)
	}
	out := []domain.Task{}
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Cache) CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, userID, draft)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, id, upd)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	tasks, err := c.base.BulkUpdateTasks(ctx, items)
	// Evicted on failure too: the backend may have written part of the batch.
	c.evict(ctx)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(c.userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(c.userID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(c.userID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(c.userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(context.WithoutCancel(ctx), tasksCacheKey(c.userID)).Err()
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}
