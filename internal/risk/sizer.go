package risk

import (
	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// SizingInputs carries everything a sizing method may need. Not every
// method uses every field.
type SizingInputs struct {
	EquityUSD        decimal.Decimal
	EntryPrice       decimal.Decimal
	ATRValue         decimal.Decimal
	StopLossDistance decimal.Decimal // zero means "unknown"
	WinRate          decimal.Decimal // zero means "unknown", clamps to 0.5
	AvgWinLossRatio  decimal.Decimal // zero means "unknown", clamps to 1.5
}

// Sizer computes a trade's quantity via one of three configurable methods.
// Grounded on original_source/risk/dynamic_sizer.py, with one intentional
// deviation from that source for the risk_pct zero-distance case — see
// DESIGN.md Open Question #2.
type Sizer struct {
	cfg config.PositionSizingConfig
}

func NewSizer(cfg config.PositionSizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Calculate returns the position quantity in base-currency units, capped at
// max_position_pct of equity and floored at zero.
func (s *Sizer) Calculate(in SizingInputs) decimal.Decimal {
	if !in.EntryPrice.IsPositive() {
		return decimal.Zero
	}

	var quantity decimal.Decimal
	switch s.cfg.Method {
	case config.SizingFixed:
		quantity = s.cfg.FixedQuantity
	case config.SizingRiskPct:
		quantity = s.riskPctSize(in)
	case config.SizingKelly:
		quantity = s.kellySize(in)
	default:
		quantity = s.cfg.FixedQuantity
	}

	maxPositionUSD := in.EquityUSD.Mul(s.cfg.MaxPositionPct.Div(decimal.NewFromInt(100)))
	maxQuantity := maxPositionUSD.Div(in.EntryPrice)
	quantity = decimal.Min(quantity, maxQuantity)

	if quantity.IsNegative() {
		return decimal.Zero
	}
	return quantity
}

// riskPctSize sizes to risk_pct of equity divided by the stop distance,
// defaulting the distance to 2x ATR when not supplied. Unlike
// original_source's fallback to fixed_quantity, a stop distance that rounds
// to zero here returns a zero quantity so the position-sizer gate rejects
// the entry outright — spec.md §8's testable boundary property.
func (s *Sizer) riskPctSize(in SizingInputs) decimal.Decimal {
	riskUSD := in.EquityUSD.Mul(s.cfg.RiskPct.Div(decimal.NewFromInt(100)))

	stopDistance := in.StopLossDistance
	if !stopDistance.IsPositive() {
		stopDistance = in.ATRValue.Mul(decimal.NewFromInt(2))
	}
	if !stopDistance.IsPositive() {
		return decimal.Zero
	}
	return riskUSD.Div(stopDistance)
}

// kellySize applies fractional Kelly: f* = (p*b - q) / b, position =
// equity * f* * kelly_fraction.
func (s *Sizer) kellySize(in SizingInputs) decimal.Decimal {
	p := in.WinRate
	if !p.IsPositive() || p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		p = decimal.NewFromFloat(0.5)
	}
	b := in.AvgWinLossRatio
	if !b.IsPositive() {
		b = decimal.NewFromFloat(1.5)
	}

	q := decimal.NewFromInt(1).Sub(p)
	kellyF := p.Mul(b).Sub(q).Div(b)

	if !kellyF.IsPositive() {
		return s.cfg.FixedQuantity
	}

	positionUSD := in.EquityUSD.Mul(kellyF).Mul(s.cfg.KellyFraction)
	return positionUSD.Div(in.EntryPrice)
}
