package notify

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// DefaultChannel is the Redis pub/sub channel carrying task events.
const DefaultChannel = "task-events"

// RedisPublisher publishes events on a Redis channel so every instance can
// forward them to its stream clients.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Handle(ctx context.Context, ev domain.Event) error {
	payload, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// QueueRetryOptions is the retry policy used for Azure Queue Storage calls.
var QueueRetryOptions = policy.RetryOptions{
	MaxRetries:    5,
	TryTimeout:    time.Minute * 5,
	RetryDelay:    time.Second * 1,
	MaxRetryDelay: time.Second * 60,
	StatusCodes:   []int{408, 429, 500, 502, 503, 504},
}

// QueuePublisher enqueues events on an Azure storage queue for downstream
// consumers.
type QueuePublisher struct {
	queue *azqueue.QueueClient
}

func NewQueuePublisher(connStr, queueName string) (*QueuePublisher, error) {
	opts := azqueue.ClientOptions{ClientOptions: azcore.ClientOptions{Retry: QueueRetryOptions}}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueuePublisher{queue: q}, nil
}

func (p *QueuePublisher) Handle(ctx context.Context, ev domain.Event) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueMessage(ctx, data, nil)
	return err
}
