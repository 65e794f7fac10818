// Package risk implements the trailing-stop manager and the daily lock —
// stateful components the trading loop consults outside the static gate
// stack — and the stateless dynamic position sizer the position-sizer gate
// calls.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

type trailState struct {
	highestPrice decimal.Decimal
	currentStop  decimal.Decimal
	entryPrice   decimal.Decimal
}

// TrailingStopManager tracks the per-trade highest price and ratcheting
// stop level. Grounded on original_source/risk/trailing_stop.py.
type TrailingStopManager struct {
	cfg config.TrailingStopConfig

	mu    sync.Mutex
	state map[string]trailState
}

func NewTrailingStopManager(cfg config.TrailingStopConfig) *TrailingStopManager {
	return &TrailingStopManager{cfg: cfg, state: make(map[string]trailState)}
}

// InitPosition seeds trailing-stop tracking for a newly opened trade.
func (m *TrailingStopManager) InitPosition(tradeID string, entryPrice, initialStop decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[tradeID] = trailState{highestPrice: entryPrice, currentStop: initialStop, entryPrice: entryPrice}
	return initialStop
}

// Update recomputes the trailing stop from the current mark price (and ATR,
// for atr/chandelier methods). The stop only ever ratchets up.
func (m *TrailingStopManager) Update(tradeID string, currentPrice decimal.Decimal, atrValue decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[tradeID]
	if !m.cfg.Enabled || !ok {
		return st.currentStop
	}

	if currentPrice.GreaterThan(st.highestPrice) {
		st.highestPrice = currentPrice
	}

	if st.entryPrice.IsPositive() {
		profitPct := st.highestPrice.Sub(st.entryPrice).Div(st.entryPrice).Mul(decimal.NewFromInt(100))
		if profitPct.LessThan(m.cfg.ActivationPct) {
			m.state[tradeID] = st
			return st.currentStop
		}
	}

	var newStop decimal.Decimal
	switch m.cfg.Method {
	case config.TrailingStopPct:
		factor := decimal.NewFromInt(1).Sub(m.cfg.TrailPct.Div(decimal.NewFromInt(100)))
		newStop = st.highestPrice.Mul(factor)
	case config.TrailingStopATR, config.TrailingStopChandelier:
		if atrValue.IsPositive() {
			newStop = st.highestPrice.Sub(atrValue.Mul(m.cfg.ATRMultiplier))
		} else {
			newStop = st.currentStop
		}
	default:
		newStop = st.currentStop
	}

	finalStop := decimal.Max(newStop, st.currentStop)
	st.currentStop = finalStop
	m.state[tradeID] = st
	return finalStop
}

// ShouldExit reports whether the mark price has fallen to or through the
// trailing stop level, after refreshing it.
func (m *TrailingStopManager) ShouldExit(tradeID string, currentPrice, atrValue decimal.Decimal) bool {
	if !m.cfg.Enabled {
		return false
	}
	stop := m.Update(tradeID, currentPrice, atrValue)
	return !currentPrice.GreaterThan(stop)
}

// RemovePosition clears trailing-stop tracking for a closed trade.
func (m *TrailingStopManager) RemovePosition(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, tradeID)
}

// GetStopLevel returns the current stop for a tracked trade, if any.
func (m *TrailingStopManager) GetStopLevel(tradeID string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[tradeID]
	return st.currentStop, ok
}
