package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SignalType is one of the three trading signal states (spec.md §3).
type SignalType string

const (
	SignalHold      SignalType = "HOLD"
	SignalEnterLong SignalType = "ENTER_LONG"
	SignalExit      SignalType = "EXIT"
)

// StrategyOutput is the standard return value of every strategy's
// Analyze() call: a signal, a confidence in [0,1], the strategy's name, and
// a free-form rationale for observability/debugging.
type StrategyOutput struct {
	Signal       SignalType
	Confidence   float64
	StrategyName string
	Rationale    map[string]any
}

// Signal is the ensemble's consensus output: the combined signal type,
// confidence, and the per-strategy outputs that produced it.
type Signal struct {
	Type            SignalType
	Symbol          string
	Confidence      float64
	StrategyOutputs []StrategyOutput
}

// NewSignal validates confidence is within [0, 1], matching Signal.__post_init__.
func NewSignal(t SignalType, symbol string, confidence float64, outputs []StrategyOutput) (Signal, error) {
	if confidence < 0.0 || confidence > 1.0 {
		return Signal{}, fmt.Errorf("signal: confidence %f must be within [0, 1]", confidence)
	}
	return Signal{Type: t, Symbol: symbol, Confidence: confidence, StrategyOutputs: outputs}, nil
}

// Side is the trade direction. Only BUY is supported (spec.md Non-goals
// exclude short selling).
type Side string

const SideBuy Side = "BUY"

// TradePlan is the pre-execution proposal built once every entry gate has
// passed (spec.md §3). Invariant for BUY: stop-loss < entry < take-profit;
// quantity > 0; all prices > 0.
type TradePlan struct {
	TradeID         string
	Symbol          string
	Side            Side
	EntryPrice      decimal.Decimal
	Quantity        decimal.Decimal
	StopLoss        decimal.Decimal
	TakeProfit      decimal.Decimal
	EstFeeUSD       decimal.Decimal
	EstSlippageUSD  decimal.Decimal
	EstSpreadCostUSD decimal.Decimal
}

// Validate enforces spec.md §3's BUY-side ordering invariant.
func (p TradePlan) Validate() error {
	if p.Side != SideBuy {
		return fmt.Errorf("trade plan: only BUY side is supported")
	}
	if !p.StopLoss.LessThan(p.EntryPrice) {
		return fmt.Errorf("trade plan: stop-loss (%s) must be < entry (%s)", p.StopLoss, p.EntryPrice)
	}
	if !p.EntryPrice.LessThan(p.TakeProfit) {
		return fmt.Errorf("trade plan: entry (%s) must be < take-profit (%s)", p.EntryPrice, p.TakeProfit)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("trade plan: quantity (%s) must be > 0", p.Quantity)
	}
	for name, price := range map[string]decimal.Decimal{
		"entry": p.EntryPrice, "stop_loss": p.StopLoss, "take_profit": p.TakeProfit,
	} {
		if !price.IsPositive() {
			return fmt.Errorf("trade plan: %s price (%s) must be > 0", name, price)
		}
	}
	return nil
}
