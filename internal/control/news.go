package control

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const newsPauseKey = "quantsail:news_pause_active"

// NewsCache tracks a shared negative-news pause flag, set by an external
// news-ingestion process and read by internal/breakers.Manager (which
// declares its own NewsCache interface locally; this type satisfies it
// structurally). Grounded on spec.md §4.8's news-pause breaker.
type NewsCache struct {
	client *redis.Client
}

func NewNewsCache(client *redis.Client) *NewsCache {
	return &NewsCache{client: client}
}

func (n *NewsCache) IsNegativeNewsActive(ctx context.Context) bool {
	v, err := n.client.Get(ctx, newsPauseKey).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		return false
	}
	return v == "1"
}

// SetNegativeNewsActive is called by the news-ingestion side (outside this
// engine's scope per spec.md Non-goals) to raise or clear the pause flag for
// the given duration.
func (n *NewsCache) SetNegativeNewsActive(ctx context.Context, active bool, ttl time.Duration) error {
	if !active {
		return n.client.Del(ctx, newsPauseKey).Err()
	}
	return n.client.Set(ctx, newsPauseKey, "1", ttl).Err()
}
