// Package config defines the nested BotConfig document described in
// spec.md §6 and loads it from environment variables, generalizing the
// teacher's flat Config struct (config.go) and getEnv* helpers (env.go) to
// the engine's full configuration surface.
package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BotConfig is the root configuration document. Every nested section maps
// 1:1 to a component package (strategies.ensemble -> internal/ensemble,
// breakers -> internal/breakers, ...).
type BotConfig struct {
	Execution      ExecutionConfig
	Risk           RiskConfig
	Symbols        SymbolsConfig
	Portfolio      PortfolioConfig
	Strategies     StrategiesConfig
	StopLoss       StopLossConfig
	TakeProfit     TakeProfitConfig
	TrailingStop   TrailingStopConfig
	PositionSizing PositionSizingConfig
	Breakers       BreakerConfig
	Cooldown       CooldownConfig
	DailySymbol    DailySymbolLimitConfig
	StreakSizer    StreakSizerConfig
	Daily          DailyLockConfig
}

type ExecutionMode string

const (
	ExecutionModeDryRun ExecutionMode = "DRY_RUN"
	ExecutionModeLive   ExecutionMode = "LIVE"
)

type ExecutionConfig struct {
	Mode          ExecutionMode
	MinProfitUSD  decimal.Decimal
	TakerFeeBps   decimal.Decimal
}

type RiskConfig struct {
	StartingCashUSD      decimal.Decimal
	MaxRiskPerTradePct   decimal.Decimal
}

type SymbolsConfig struct {
	Enabled                []string
	MaxConcurrentPositions int
}

type PortfolioConfig struct {
	MaxCorrelatedPositions  int
	MaxDailyTrades          int
	MaxDailyLossUSD         decimal.Decimal
	MaxPortfolioExposurePct decimal.Decimal
}

// EnsembleOverride holds per-symbol weight/threshold replacements; nil
// fields fall back to the global StrategiesConfig.Ensemble value.
type EnsembleOverride struct {
	WeightTrend          *decimal.Decimal
	WeightMeanReversion  *decimal.Decimal
	WeightBreakout       *decimal.Decimal
	WeightVWAP           *decimal.Decimal
	MinAgreement         *int
	ConfidenceThreshold  *decimal.Decimal
	WeightedThreshold    *decimal.Decimal
}

type EnsembleMode string

const (
	EnsembleModeAgreement EnsembleMode = "agreement"
	EnsembleModeWeighted  EnsembleMode = "weighted"
)

type EnsembleConfig struct {
	Mode                EnsembleMode
	MinAgreement        int
	ConfidenceThreshold decimal.Decimal
	WeightedThreshold   decimal.Decimal
	WeightTrend         decimal.Decimal
	WeightMeanReversion decimal.Decimal
	WeightBreakout      decimal.Decimal
	WeightVWAP          decimal.Decimal
	PerCoinOverrides    map[string]EnsembleOverride
}

type TrendConfig struct {
	EMAFast      int
	EMASlow      int
	ADXThreshold decimal.Decimal
}

type MeanReversionConfig struct {
	BBPeriod    int
	BBStdDev    decimal.Decimal
	RSIPeriod   int
	RSIOversold decimal.Decimal
}

type BreakoutConfig struct {
	DonchianPeriod int
	ATRPeriod      int
	ATRFilterMult  decimal.Decimal
}

type VWAPReversionConfig struct {
	Enabled           bool
	RSIPeriod         int
	RSIOversold       decimal.Decimal
	DeviationEntryPct decimal.Decimal
	OBVConfirmation   bool
}

type RegimeConfig struct {
	Enabled         bool
	ADXPeriod       int
	ADXThreshold    decimal.Decimal
	ATRPctThreshold decimal.Decimal
	// StrategyFamily selects which allowed-regime set (see internal/gates
	// regime.go) the filter checks the classified regime against.
	StrategyFamily    string
	PerSymbolOverride map[string]RegimeConfig
}

type StrategiesConfig struct {
	Trend         TrendConfig
	MeanReversion MeanReversionConfig
	Breakout      BreakoutConfig
	VWAPReversion VWAPReversionConfig
	Ensemble      EnsembleConfig
	Regime        RegimeConfig
}

type StopLossMethod string

const (
	StopLossFixedPct StopLossMethod = "fixed_pct"
	StopLossATR      StopLossMethod = "atr"
)

type StopLossConfig struct {
	Method       StopLossMethod
	FixedPct     decimal.Decimal
	ATRPeriod    int
	ATRMultiplier decimal.Decimal
}

type TakeProfitMethod string

const (
	TakeProfitFixedPct        TakeProfitMethod = "fixed_pct"
	TakeProfitRiskRewardRatio TakeProfitMethod = "risk_reward_ratio"
)

type TakeProfitConfig struct {
	Method          TakeProfitMethod
	FixedPct        decimal.Decimal
	RiskRewardRatio decimal.Decimal
}

type TrailingStopMethod string

const (
	TrailingStopPct        TrailingStopMethod = "pct"
	TrailingStopATR        TrailingStopMethod = "atr"
	TrailingStopChandelier TrailingStopMethod = "chandelier"
)

type TrailingStopConfig struct {
	Enabled       bool
	Method        TrailingStopMethod
	ActivationPct decimal.Decimal
	TrailPct      decimal.Decimal
	ATRPeriod     int
	ATRMultiplier decimal.Decimal
}

type PositionSizingMethod string

const (
	SizingFixed   PositionSizingMethod = "fixed"
	SizingRiskPct PositionSizingMethod = "risk_pct"
	SizingKelly   PositionSizingMethod = "kelly"
)

type PositionSizingConfig struct {
	Method         PositionSizingMethod
	FixedQuantity  decimal.Decimal
	RiskPct        decimal.Decimal
	MaxPositionPct decimal.Decimal
	KellyFraction  decimal.Decimal
}

type VolatilityBreakerConfig struct {
	Enabled         bool
	ATRMultiplePause decimal.Decimal
	PauseMinutes    int
}

type SpreadSlippageBreakerConfig struct {
	Enabled      bool
	MaxSpreadBps decimal.Decimal
	PauseMinutes int
}

type ConsecutiveLossesBreakerConfig struct {
	Enabled      bool
	MaxLosses    int
	PauseMinutes int
}

type ExchangeInstabilityBreakerConfig struct {
	Enabled bool
}

type NewsBreakerConfig struct {
	Enabled bool
}

type BreakerConfig struct {
	Volatility         VolatilityBreakerConfig
	SpreadSlippage      SpreadSlippageBreakerConfig
	ConsecutiveLosses   ConsecutiveLossesBreakerConfig
	ExchangeInstability ExchangeInstabilityBreakerConfig
	News                NewsBreakerConfig
}

type CooldownConfig struct {
	Enabled         bool
	CooldownMinutes int
}

type DailySymbolLimitConfig struct {
	Enabled              bool
	MaxConsecutiveLosses int
}

type StreakSizerConfig struct {
	Enabled              bool
	MinConsecutiveLosses int
	ReductionFactor      decimal.Decimal
}

type DailyLockMode string

const (
	DailyLockStop      DailyLockMode = "STOP"
	DailyLockOverdrive DailyLockMode = "OVERDRIVE"
)

type DailyLockConfig struct {
	Enabled                bool
	Mode                   DailyLockMode
	TargetUSD              decimal.Decimal
	OverdriveTrailingBuffer decimal.Decimal
	Timezone               string
}

// Validate enforces the cross-field rules spec.md §6 names explicitly.
func (c *BotConfig) Validate() error {
	if c.Strategies.Trend.EMAFast >= c.Strategies.Trend.EMASlow {
		return fmt.Errorf("strategies.trend: ema_fast (%d) must be < ema_slow (%d)",
			c.Strategies.Trend.EMAFast, c.Strategies.Trend.EMASlow)
	}
	if c.Risk.MaxRiskPerTradePct.GreaterThan(c.Portfolio.MaxPortfolioExposurePct) {
		return fmt.Errorf("risk.max_risk_per_trade_pct (%s) must be <= portfolio.max_portfolio_exposure_pct (%s)",
			c.Risk.MaxRiskPerTradePct, c.Portfolio.MaxPortfolioExposurePct)
	}
	twiceTarget := c.Daily.TargetUSD.Mul(decimal.NewFromInt(2))
	if c.Daily.Enabled && c.Portfolio.MaxDailyLossUSD.GreaterThan(twiceTarget) {
		return fmt.Errorf("portfolio.max_daily_loss_usd (%s) must be <= 2x daily.target_usd (%s)",
			c.Portfolio.MaxDailyLossUSD, twiceTarget)
	}
	return nil
}
