package breakers

import (
	"context"
	"sync"
	"time"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/metrics"
)

// EventAppender is the minimal repository surface breakers needs to record
// breaker.triggered/breaker.expired events. Declared locally to avoid a
// breakers -> persistence import cycle (persistence does not depend on
// breakers).
type EventAppender interface {
	AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error
}

// NewsCache reports whether a shared negative-news pause flag is active.
// Grounded on original_source/cache/news.py's Protocol.
type NewsCache interface {
	IsNegativeNewsActive(ctx context.Context) bool
}

// Manager coordinates active breakers and gates entries/exits. Entries are
// blocked while any breaker is active or while news pause is active (and
// enabled); exits are never blocked. Grounded on
// original_source/breakers/manager.py.
type Manager struct {
	cfg    config.BreakerConfig
	events EventAppender
	news   NewsCache
	clock  clock.Clock

	mu             sync.Mutex
	activeBreakers map[string]ActiveBreaker
}

func NewManager(cfg config.BreakerConfig, events EventAppender, news NewsCache, clk clock.Clock) *Manager {
	return &Manager{
		cfg:            cfg,
		events:         events,
		news:           news,
		clock:          clk,
		activeBreakers: make(map[string]ActiveBreaker),
	}
}

// EntriesAllowed reports whether entries may proceed: no expired breakers
// remain active, no enabled news pause is set, and no breaker is currently
// tripped.
func (m *Manager) EntriesAllowed(ctx context.Context) (bool, string) {
	m.expireBreakers(ctx)

	if m.cfg.News.Enabled && m.news != nil && m.news.IsNegativeNewsActive(ctx) {
		return false, "negative news pause active"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.activeBreakers {
		return false, b.BreakerType + " breaker active: " + b.Reason
	}
	return true, ""
}

// ExitsAllowed is always true: exits must never be blocked by breakers
// (spec.md §4.8).
func (m *Manager) ExitsAllowed() (bool, string) { return true, "" }

// IsNewsPauseActive exposes the news-pause sub-check so the entry-gate
// stack's dedicated "news pause" gate (spec.md §4.4 step 1) can reject
// distinctly from "active breaker" (step 2).
func (m *Manager) IsNewsPauseActive(ctx context.Context) bool {
	if !m.cfg.News.Enabled || m.news == nil {
		return false
	}
	return m.news.IsNegativeNewsActive(ctx)
}

// ActiveBreakerReason exposes the breaker-active sub-check for the entry
// gate stack's dedicated "active breaker" gate.
func (m *Manager) ActiveBreakerReason(ctx context.Context) (string, bool) {
	m.expireBreakers(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.activeBreakers {
		return b.BreakerType + " breaker active: " + b.Reason, true
	}
	return "", false
}

// Trigger records a newly-tripped breaker and emits breaker.triggered.
func (m *Manager) Trigger(ctx context.Context, breakerType, reason string, pauseMinutes int, breakerContext map[string]float64) {
	now := m.clock.Now()
	expiresAt := now.Add(time.Duration(pauseMinutes) * time.Minute)

	m.mu.Lock()
	m.activeBreakers[breakerType] = ActiveBreaker{
		BreakerType: breakerType,
		TriggeredAt: now,
		ExpiresAt:   expiresAt,
		Reason:      reason,
		Context:     breakerContext,
	}
	m.mu.Unlock()

	if m.events == nil {
		return
	}
	payload := map[string]any{
		"breaker_type":  breakerType,
		"reason":        reason,
		"triggered_at":  now,
		"expires_at":    expiresAt,
		"pause_minutes": pauseMinutes,
	}
	for k, v := range breakerContext {
		payload[k] = v
	}
	_ = m.events.AppendEvent(ctx, "breaker.triggered", "WARN", nil, payload, true)
}

// RunChecks evaluates the volatility, spread/slippage, and consecutive
// losses triggers (spec.md §4.8) against a symbol's latest candles and
// orderbook, calling Trigger for any that fire. It also expires any
// breaker whose pause window has elapsed. Called once per symbol per tick
// from the trading loop, ahead of the entry-gate pipeline.
func (m *Manager) RunChecks(ctx context.Context, candles []market.Candle, ob market.Orderbook, history TradeHistoryProvider) {
	m.expireBreakers(ctx)

	if len(candles) > 0 {
		atrPeriod := 14
		if len(candles) > atrPeriod+5 {
			atrValues := indicators.ATR(candles, atrPeriod)
			if fired, breakerCtx := CheckVolatilitySpike(m.cfg.Volatility, candles, atrValues); fired {
				metrics.BreakerTriggersTotal.WithLabelValues("volatility").Inc()
				m.Trigger(ctx, "volatility", "candle range exceeded ATR multiple", m.cfg.Volatility.PauseMinutes, breakerCtx)
			}
		}
	}

	if fired, breakerCtx := CheckSpreadSlippageSpike(m.cfg.SpreadSlippage, ob); fired {
		metrics.BreakerTriggersTotal.WithLabelValues("spread_slippage").Inc()
		m.Trigger(ctx, "spread_slippage", "spread exceeded max bps", m.cfg.SpreadSlippage.PauseMinutes, breakerCtx)
	}

	if history != nil {
		if fired, breakerCtx, err := CheckConsecutiveLosses(ctx, m.cfg.ConsecutiveLosses, history); err == nil && fired {
			metrics.BreakerTriggersTotal.WithLabelValues("consecutive_losses").Inc()
			floatCtx := make(map[string]float64, len(breakerCtx))
			for k, v := range breakerCtx {
				if f, ok := v.(float64); ok {
					floatCtx[k] = f
				} else if n, ok := v.(int); ok {
					floatCtx[k] = float64(n)
				}
			}
			m.Trigger(ctx, "consecutive_losses", "consecutive closed-trade losses reached limit", m.cfg.ConsecutiveLosses.PauseMinutes, floatCtx)
		}
	}
}

func (m *Manager) expireBreakers(ctx context.Context) {
	now := m.clock.Now()

	m.mu.Lock()
	var expired []ActiveBreaker
	for breakerType, b := range m.activeBreakers {
		if !now.Before(b.ExpiresAt) {
			expired = append(expired, b)
			delete(m.activeBreakers, breakerType)
		}
	}
	m.mu.Unlock()

	if m.events == nil {
		return
	}
	for _, b := range expired {
		activeForMinutes := now.Sub(b.TriggeredAt).Minutes()
		_ = m.events.AppendEvent(ctx, "breaker.expired", "INFO", nil, map[string]any{
			"breaker_type":          b.BreakerType,
			"expired_at":            now,
			"was_active_for_minutes": roundTo2(activeForMinutes),
		}, true)
	}
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
