package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix = "create"
	pendingMarker   = "-"
)

// RedisDeduper stores idempotency keys of task creations in Redis so a
// retried POST returns the task created by the first attempt.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("%s:%s:%s", userID, dedupeKeyPrefix, key)
}

// Add records the key as pending. It returns true when the key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), pendingMarker, r.ttl).Result()
}

// Remove forgets a key so the caller may retry after a failed creation.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}

// Resolve stores the id of the created task, keeping the expiry set by Add.
func (r *RedisDeduper) Resolve(ctx context.Context, userID, key, taskID string) error {
	return r.client.SetArgs(ctx, r.key(userID, key), taskID, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
}

// Lookup returns the task id recorded for key. It returns "" while the first
// request is still in flight or when the key is unknown.
func (r *RedisDeduper) Lookup(ctx context.Context, userID, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if val == pendingMarker {
		return "", nil
	}
	return val, nil
}
