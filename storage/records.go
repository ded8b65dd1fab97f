package storage

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Records persists JSON records per user, keyed by id.
type Records[T any] interface {
	List(ctx context.Context, userID string) ([]T, error)
	// Get returns nil when the record does not exist.
	Get(ctx context.Context, userID, id string) (*T, error)
	Save(ctx context.Context, userID, id string, v T) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// MemoryRecords keeps records in process memory.
type MemoryRecords[T any] struct {
	mu    sync.Mutex
	items map[string]map[string]T
}

func NewMemoryRecords[T any]() *MemoryRecords[T] {
	return &MemoryRecords[T]{items: map[string]map[string]T{}}
}

func (m *MemoryRecords[T]) List(_ context.Context, userID string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, len(m.items[userID]))
	for _, v := range m.items[userID] {
		out = append(out, v)
	}
	return out, nil
}

func (m *MemoryRecords[T]) Get(_ context.Context, userID, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[userID][id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryRecords[T]) Save(_ context.Context, userID, id string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = map[string]T{}
	}
	m.items[userID][id] = v
	return nil
}

func (m *MemoryRecords[T]) Delete(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[userID][id]; !ok {
		return false, nil
	}
	delete(m.items[userID], id)
	return true, nil
}

// RedisRecords stores each user's records in one hash, "<prefix>:<user>".
type RedisRecords[T any] struct {
	client *redis.Client
	prefix string
}

func NewRedisRecords[T any](client *redis.Client, prefix string) *RedisRecords[T] {
	return &RedisRecords[T]{client: client, prefix: prefix}
}

func (r *RedisRecords[T]) key(userID string) string {
	return r.prefix + ":" + userID
}

func (r *RedisRecords[T]) List(ctx context.Context, userID string) ([]T, error) {
	vals, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vals))
	for _, raw := range vals {
		var v T
		if err := sonic.UnmarshalString(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *RedisRecords[T]) Get(ctx context.Context, userID, id string) (*T, error) {
	raw, err := r.client.HGet(ctx, r.key(userID), id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := sonic.UnmarshalString(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *RedisRecords[T]) Save(ctx context.Context, userID, id string, v T) error {
	data, err := sonic.MarshalString(v)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(userID), id, data).Err()
}

func (r *RedisRecords[T]) Delete(ctx context.Context, userID, id string) (bool, error) {
	removed, err := r.client.HDel(ctx, r.key(userID), id).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}
