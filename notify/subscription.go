package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Subscribe listens on channel and hands each event payload to broadcast,
// keyed by the owning user. It reconnects when the subscription drops and
// returns once ctx is done.
func Subscribe(
	ctx context.Context,
	logger *log.Logger,
	rc *redis.Client,
	channel string,
	broadcast func(userID string, data []byte),
) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev struct {
					UserID string `json:"userId"`
				}
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					logger.WithError(err).Error("unable to parse task event")
					continue
				}
				broadcast(ev.UserID, []byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
