package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/domain"
)

const scanBatchSize = 100

// ReplayCache keeps TTL-bound notification copies in Redis so reconnecting
// users can be made whole without hitting the durable store. It implements
// contract.ReplayCache. The cache is not a source of truth: a flush costs
// replays, never notifications.
type ReplayCache struct {
	client *redis.Client
	log    *slog.Logger
}

func NewReplayCache(client *redis.Client, log *slog.Logger) ReplayCache {
	return ReplayCache{client: client, log: log}
}

func (c ReplayCache) Set(ctx context.Context, key string, n domain.Notification, ttl time.Duration) error {
	bytes, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, bytes, ttl).Err()
}

// ListByPrefix walks every key under the prefix and returns the decoded
// notifications, oldest first. Entries that expire between SCAN and MGET
// simply drop out of the result.
func (c ReplayCache) ListByPrefix(ctx context.Context, prefix string) ([]domain.Notification, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Notification, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Expired between SCAN and MGET.
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			c.log.Warn("Dropping undecodable replay entry", "key", keys[i], "error", err)
			continue
		}
		out = append(out, n)
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}
