package control

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	botStateKey    = "quantsail:control:bot_state"
	armedAtKey     = "quantsail:control:armed_at"
	armingTokenKey = "quantsail:control:arming_token"
	heartbeatKey   = "quantsail:control:heartbeat"
)

// consumeTokenScript atomically compares the supplied token against the
// single outstanding one and deletes it on match, in one round trip — the
// only way to make "check, then act" non-racy against a plain Redis client,
// and exactly what spec.md §5 requires of the arming protocol (DESIGN.md
// Open Question #4). Returns 1 on consume, 0 on mismatch, -1 when no token
// is outstanding.
var consumeTokenScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return -1
end
if v == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// RedisControlPlane is the production ControlPlane, backed by a shared
// Redis instance so multiple engine processes (or an API/dashboard
// process) observe the same bot state.
type RedisControlPlane struct {
	client *redis.Client
}

func NewRedisControlPlane(client *redis.Client) *RedisControlPlane {
	return &RedisControlPlane{client: client}
}

// GetBotState degrades to STOPPED when the key is absent or the store is
// unreachable — the read path never fails upward (spec.md §4.1), so a Redis
// outage parks the bot instead of crashing the tick loop.
func (c *RedisControlPlane) GetBotState(ctx context.Context) (BotState, error) {
	v, err := c.client.Get(ctx, botStateKey).Result()
	if err != nil {
		return BotStateStopped, nil
	}
	switch s := BotState(v); s {
	case BotStateStopped, BotStateArmed, BotStateRunning, BotStatePausedEntries:
		return s, nil
	default:
		return BotStateStopped, nil
	}
}

func (c *RedisControlPlane) SetBotState(ctx context.Context, state BotState) error {
	if err := c.client.Set(ctx, botStateKey, string(state), 0).Err(); err != nil {
		return fmt.Errorf("control: failed to write bot state: %w", err)
	}
	if state == BotStateArmed {
		_ = c.client.Set(ctx, armedAtKey, time.Now().UTC().Format(time.RFC3339), 0).Err()
	}
	return nil
}

func (c *RedisControlPlane) GenerateArmingToken(ctx context.Context, ttl time.Duration) (string, error) {
	token, err := newArmingToken()
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, armingTokenKey, token, ttl).Err(); err != nil {
		return "", fmt.Errorf("control: failed to store arming token: %w", err)
	}
	return token, nil
}

func (c *RedisControlPlane) ConsumeArmingToken(ctx context.Context, token string) (TokenStatus, error) {
	n, err := consumeTokenScript.Run(ctx, c.client, []string{armingTokenKey}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return TokenAbsent, err
	}
	switch n {
	case 1:
		return TokenConsumed, nil
	case 0:
		return TokenMismatch, nil
	default:
		return TokenAbsent, nil
	}
}

// Heartbeat stamps the liveness key with a short TTL so a wedged or dead
// engine shows up as a stale/absent heartbeat rather than a frozen value.
func (c *RedisControlPlane) Heartbeat(ctx context.Context, at time.Time) error {
	return c.client.Set(ctx, heartbeatKey, at.UTC().Format(time.RFC3339), 2*time.Minute).Err()
}

// newArmingToken returns 128 bits of crypto randomness, hex-encoded
// (spec.md §4.1).
func newArmingToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("control: failed to generate arming token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
