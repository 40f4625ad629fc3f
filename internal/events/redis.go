package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
)

// RedisPublisher forwards every event as JSON on a Redis pub/sub channel for consumers
// outside this process.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisPublisher(rdb redis.Cmdable, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Handle(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logger.ExternalServiceCall("redis", "PUBLISH", "channel", p.channel, "eventID", e.ID)
	err = p.rdb.Publish(ctx, p.channel, payload).Err()
	logger.ExternalServiceResult("redis", "PUBLISH", err, "channel", p.channel, "eventID", e.ID)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
