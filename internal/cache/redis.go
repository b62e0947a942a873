package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

type RedisConfig struct {
	Addr string
	DB   int
}

// RedisCache keeps a capped list of recent ledger events and fans every
// event out to the pub/sub channels.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, logger), nil
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisCache{client: client, logger: logger}
}

// Publish stores the event in the recent list and publishes it. Both happen
// in one pipeline round trip.
func (r *RedisCache) Publish(ctx context.Context, ev *models.LedgerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentEvents, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentEvents, 0, constants.MaxRecentEvents-1)
	for _, channel := range Channels(ev) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %d: %w", ev.Seq, err)
	}
	return nil
}

// Channels lists the pub/sub channels an event goes to.
func Channels(ev *models.LedgerEvent) []string {
	channels := []string{
		constants.PubSubChannelEvents,                        // All events
		fmt.Sprintf(constants.PubSubChannelTypeFmt, ev.Type), // Type-specific
	}
	if ev.PoolID != "" {
		channels = append(channels, fmt.Sprintf(constants.PubSubChannelPoolFmt, ev.PoolID)) // Pool-specific
	}
	if ev.PositionID != 0 {
		channels = append(channels, constants.PubSubChannelPositions)
	}
	return channels
}

func (r *RedisCache) GetRecentEvents(ctx context.Context, limit int64) ([]*models.LedgerEvent, error) {
	if limit <= 0 {
		limit = constants.MaxRecentEvents
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentEvents, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}

	out := make([]*models.LedgerEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.LedgerEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			r.logger.WithError(err).Warn("skipping malformed cached event")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
