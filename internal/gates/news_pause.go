package gates

import "context"

// BreakerReader is the subset of breakers.Manager the news/active-breaker
// gates need. Declared locally so gates does not import internal/breakers
// directly, keeping each package's dependency surface to what it uses.
type BreakerReader interface {
	IsNewsPauseActive(ctx context.Context) bool
	ActiveBreakerReason(ctx context.Context) (string, bool)
}

// NewsPauseGate is entry-gate step 1 (spec.md §4.4): rejects while a
// negative-news pause is in effect.
type NewsPauseGate struct {
	breakers BreakerReader
}

func NewNewsPauseGate(breakers BreakerReader) *NewsPauseGate {
	return &NewsPauseGate{breakers: breakers}
}

func (g *NewsPauseGate) Name() string { return "news_pause" }

func (g *NewsPauseGate) Evaluate(ctx context.Context, symbol string) Result {
	if g.breakers.IsNewsPauseActive(ctx) {
		return Reject("negative news pause active", nil)
	}
	return Allow()
}

// ActiveBreakerGate is entry-gate step 2: rejects while any circuit breaker
// is currently tripped.
type ActiveBreakerGate struct {
	breakers BreakerReader
}

func NewActiveBreakerGate(breakers BreakerReader) *ActiveBreakerGate {
	return &ActiveBreakerGate{breakers: breakers}
}

func (g *ActiveBreakerGate) Name() string { return "active_breaker" }

func (g *ActiveBreakerGate) Evaluate(ctx context.Context, symbol string) Result {
	if reason, active := g.breakers.ActiveBreakerReason(ctx); active {
		return Reject(reason, nil)
	}
	return Allow()
}
