package notify

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/storage"
)

// notificationsPrefix names the per-user Redis hash, "notifications:<user>".
const notificationsPrefix = "notifications"

// RecordRepository keeps notifications in a per-user record store.
type RecordRepository struct {
	records storage.Records[domain.Notification]
}

func NewMemoryRepository() *RecordRepository {
	return &RecordRepository{records: storage.NewMemoryRecords[domain.Notification]()}
}

// NewRedisRepository stores each user's notifications in one hash keyed by id.
func NewRedisRepository(client *redis.Client) *RecordRepository {
	return &RecordRepository{records: storage.NewRedisRecords[domain.Notification](client, notificationsPrefix)}
}

func (r *RecordRepository) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.records.List(ctx, userID)
}

func (r *RecordRepository) Get(ctx context.Context, userID, id string) (*domain.Notification, error) {
	return r.records.Get(ctx, userID, id)
}

func (r *RecordRepository) Save(ctx context.Context, n domain.Notification) error {
	return r.records.Save(ctx, n.UserID, n.ID, n)
}

func (r *RecordRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	return r.records.Delete(ctx, userID, id)
}
