package control

import (
	"context"
	"sync"
	"time"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
)

// InMemoryControlPlane is a single-process ControlPlane for dry-run/backtest
// mode and unit tests, where a shared Redis instance would be overkill.
type InMemoryControlPlane struct {
	clock clock.Clock

	mu            sync.Mutex
	state         BotState
	token         string
	tokenExpiry   time.Time
	lastHeartbeat time.Time
}

func NewInMemoryControlPlane(clk clock.Clock) *InMemoryControlPlane {
	return &InMemoryControlPlane{clock: clk, state: BotStateStopped}
}

func (c *InMemoryControlPlane) GetBotState(ctx context.Context) (BotState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, nil
}

func (c *InMemoryControlPlane) SetBotState(ctx context.Context, state BotState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	return nil
}

func (c *InMemoryControlPlane) GenerateArmingToken(ctx context.Context, ttl time.Duration) (string, error) {
	token, err := newArmingToken()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = token
	c.tokenExpiry = c.clock.Now().Add(ttl)
	c.mu.Unlock()
	return token, nil
}

func (c *InMemoryControlPlane) ConsumeArmingToken(ctx context.Context, token string) (TokenStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.clock.Now().Before(c.tokenExpiry) {
		c.token = ""
		return TokenAbsent, nil
	}
	if c.token != token {
		return TokenMismatch, nil
	}
	c.token = ""
	return TokenConsumed, nil
}

func (c *InMemoryControlPlane) Heartbeat(ctx context.Context, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHeartbeat = at
	return nil
}

// LastHeartbeat reports the most recent heartbeat stamp, for tests and the
// health endpoint.
func (c *InMemoryControlPlane) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}
