package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadDotEnv loads a .env file from the working directory (or ../.env as a
// fallback, matching the teacher's loadBotEnv() search order) into the
// process environment. Missing files are not an error — in production the
// environment is usually injected by the orchestrator, not a dotfile.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	_ = godotenv.Load("../.env")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvCSV(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// d is a small decimal.Decimal literal constructor for default values below.
func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic("config: invalid decimal literal " + s)
	}
	return v
}

// DefaultConfig returns the engine's baseline configuration, overridden by
// QUANTSAIL_* environment variables where present. This mirrors the
// teacher's loadConfigFromEnv(), generalized to BotConfig's nested shape.
func DefaultConfig() BotConfig {
	cfg := BotConfig{
		Execution: ExecutionConfig{
			Mode:         ExecutionMode(getEnv("QUANTSAIL_EXECUTION_MODE", string(ExecutionModeDryRun))),
			MinProfitUSD: getEnvDecimal("QUANTSAIL_MIN_PROFIT_USD", d("0.01")),
			TakerFeeBps:  getEnvDecimal("QUANTSAIL_TAKER_FEE_BPS", d("10")),
		},
		Risk: RiskConfig{
			StartingCashUSD:    getEnvDecimal("QUANTSAIL_STARTING_CASH_USD", d("10000")),
			MaxRiskPerTradePct: getEnvDecimal("QUANTSAIL_MAX_RISK_PER_TRADE_PCT", d("1.0")),
		},
		Symbols: SymbolsConfig{
			Enabled:                getEnvCSV("QUANTSAIL_SYMBOLS", []string{"BTC/USDT", "ETH/USDT"}),
			MaxConcurrentPositions: getEnvInt("QUANTSAIL_MAX_CONCURRENT_POSITIONS", 3),
		},
		Portfolio: PortfolioConfig{
			MaxCorrelatedPositions:  getEnvInt("QUANTSAIL_MAX_CORRELATED_POSITIONS", 2),
			MaxDailyTrades:          getEnvInt("QUANTSAIL_MAX_DAILY_TRADES", 20),
			MaxDailyLossUSD:         getEnvDecimal("QUANTSAIL_MAX_DAILY_LOSS_USD", d("200")),
			MaxPortfolioExposurePct: getEnvDecimal("QUANTSAIL_MAX_PORTFOLIO_EXPOSURE_PCT", d("50")),
		},
		Strategies: StrategiesConfig{
			Trend: TrendConfig{
				EMAFast:      getEnvInt("QUANTSAIL_TREND_EMA_FAST", 12),
				EMASlow:      getEnvInt("QUANTSAIL_TREND_EMA_SLOW", 26),
				ADXThreshold: getEnvDecimal("QUANTSAIL_TREND_ADX_THRESHOLD", d("25")),
			},
			MeanReversion: MeanReversionConfig{
				BBPeriod:    getEnvInt("QUANTSAIL_MR_BB_PERIOD", 20),
				BBStdDev:    getEnvDecimal("QUANTSAIL_MR_BB_STDDEV", d("2")),
				RSIPeriod:   getEnvInt("QUANTSAIL_MR_RSI_PERIOD", 14),
				RSIOversold: getEnvDecimal("QUANTSAIL_MR_RSI_OVERSOLD", d("30")),
			},
			Breakout: BreakoutConfig{
				DonchianPeriod: getEnvInt("QUANTSAIL_BO_DONCHIAN_PERIOD", 20),
				ATRPeriod:      getEnvInt("QUANTSAIL_BO_ATR_PERIOD", 14),
				ATRFilterMult:  getEnvDecimal("QUANTSAIL_BO_ATR_FILTER_MULT", d("0.5")),
			},
			VWAPReversion: VWAPReversionConfig{
				Enabled:           getEnvBool("QUANTSAIL_VWAP_ENABLED", true),
				RSIPeriod:         getEnvInt("QUANTSAIL_VWAP_RSI_PERIOD", 14),
				RSIOversold:       getEnvDecimal("QUANTSAIL_VWAP_RSI_OVERSOLD", d("35")),
				DeviationEntryPct: getEnvDecimal("QUANTSAIL_VWAP_DEVIATION_ENTRY_PCT", d("1.0")),
				OBVConfirmation:   getEnvBool("QUANTSAIL_VWAP_OBV_CONFIRMATION", true),
			},
			Ensemble: EnsembleConfig{
				Mode:                EnsembleMode(getEnv("QUANTSAIL_ENSEMBLE_MODE", string(EnsembleModeAgreement))),
				MinAgreement:        getEnvInt("QUANTSAIL_ENSEMBLE_MIN_AGREEMENT", 2),
				ConfidenceThreshold: getEnvDecimal("QUANTSAIL_ENSEMBLE_CONFIDENCE_THRESHOLD", d("0.5")),
				WeightedThreshold:   getEnvDecimal("QUANTSAIL_ENSEMBLE_WEIGHTED_THRESHOLD", d("0.25")),
				WeightTrend:         getEnvDecimal("QUANTSAIL_ENSEMBLE_WEIGHT_TREND", d("1.0")),
				WeightMeanReversion: getEnvDecimal("QUANTSAIL_ENSEMBLE_WEIGHT_MEAN_REVERSION", d("0.5")),
				WeightBreakout:      getEnvDecimal("QUANTSAIL_ENSEMBLE_WEIGHT_BREAKOUT", d("0.5")),
				WeightVWAP:          getEnvDecimal("QUANTSAIL_ENSEMBLE_WEIGHT_VWAP", d("0.5")),
				PerCoinOverrides:    map[string]EnsembleOverride{},
			},
			Regime: RegimeConfig{
				Enabled:         getEnvBool("QUANTSAIL_REGIME_ENABLED", true),
				ADXPeriod:       getEnvInt("QUANTSAIL_REGIME_ADX_PERIOD", 14),
				ADXThreshold:    getEnvDecimal("QUANTSAIL_REGIME_ADX_THRESHOLD", d("20")),
				ATRPctThreshold: getEnvDecimal("QUANTSAIL_REGIME_ATR_PCT_THRESHOLD", d("1.5")),
			},
		},
		StopLoss: StopLossConfig{
			Method:        StopLossMethod(getEnv("QUANTSAIL_SL_METHOD", string(StopLossFixedPct))),
			FixedPct:      getEnvDecimal("QUANTSAIL_SL_FIXED_PCT", d("2.0")),
			ATRPeriod:     getEnvInt("QUANTSAIL_SL_ATR_PERIOD", 14),
			ATRMultiplier: getEnvDecimal("QUANTSAIL_SL_ATR_MULTIPLIER", d("2.0")),
		},
		TakeProfit: TakeProfitConfig{
			Method:          TakeProfitMethod(getEnv("QUANTSAIL_TP_METHOD", string(TakeProfitRiskRewardRatio))),
			FixedPct:        getEnvDecimal("QUANTSAIL_TP_FIXED_PCT", d("4.0")),
			RiskRewardRatio: getEnvDecimal("QUANTSAIL_TP_RISK_REWARD_RATIO", d("2.0")),
		},
		TrailingStop: TrailingStopConfig{
			Enabled:       getEnvBool("QUANTSAIL_TS_ENABLED", true),
			Method:        TrailingStopMethod(getEnv("QUANTSAIL_TS_METHOD", string(TrailingStopPct))),
			ActivationPct: getEnvDecimal("QUANTSAIL_TS_ACTIVATION_PCT", d("1.0")),
			TrailPct:      getEnvDecimal("QUANTSAIL_TS_TRAIL_PCT", d("1.5")),
			ATRPeriod:     getEnvInt("QUANTSAIL_TS_ATR_PERIOD", 14),
			ATRMultiplier: getEnvDecimal("QUANTSAIL_TS_ATR_MULTIPLIER", d("3.0")),
		},
		PositionSizing: PositionSizingConfig{
			Method:         PositionSizingMethod(getEnv("QUANTSAIL_SIZING_METHOD", string(SizingRiskPct))),
			FixedQuantity:  getEnvDecimal("QUANTSAIL_SIZING_FIXED_QUANTITY", d("0.001")),
			RiskPct:        getEnvDecimal("QUANTSAIL_SIZING_RISK_PCT", d("0.5")),
			MaxPositionPct: getEnvDecimal("QUANTSAIL_SIZING_MAX_POSITION_PCT", d("10")),
			KellyFraction:  getEnvDecimal("QUANTSAIL_SIZING_KELLY_FRACTION", d("0.25")),
		},
		Breakers: BreakerConfig{
			Volatility: VolatilityBreakerConfig{
				Enabled:          getEnvBool("QUANTSAIL_BREAKER_VOL_ENABLED", true),
				ATRMultiplePause: getEnvDecimal("QUANTSAIL_BREAKER_VOL_ATR_MULTIPLE", d("4.0")),
				PauseMinutes:     getEnvInt("QUANTSAIL_BREAKER_VOL_PAUSE_MINUTES", 30),
			},
			SpreadSlippage: SpreadSlippageBreakerConfig{
				Enabled:      getEnvBool("QUANTSAIL_BREAKER_SPREAD_ENABLED", true),
				MaxSpreadBps: getEnvDecimal("QUANTSAIL_BREAKER_SPREAD_MAX_BPS", d("50")),
				PauseMinutes: getEnvInt("QUANTSAIL_BREAKER_SPREAD_PAUSE_MINUTES", 15),
			},
			ConsecutiveLosses: ConsecutiveLossesBreakerConfig{
				Enabled:      getEnvBool("QUANTSAIL_BREAKER_LOSSES_ENABLED", true),
				MaxLosses:    getEnvInt("QUANTSAIL_BREAKER_LOSSES_MAX", 4),
				PauseMinutes: getEnvInt("QUANTSAIL_BREAKER_LOSSES_PAUSE_MINUTES", 60),
			},
			ExchangeInstability: ExchangeInstabilityBreakerConfig{
				Enabled: getEnvBool("QUANTSAIL_BREAKER_EXCHANGE_ENABLED", false),
			},
			News: NewsBreakerConfig{
				Enabled: getEnvBool("QUANTSAIL_BREAKER_NEWS_ENABLED", true),
			},
		},
		Cooldown: CooldownConfig{
			Enabled:         getEnvBool("QUANTSAIL_COOLDOWN_ENABLED", true),
			CooldownMinutes: getEnvInt("QUANTSAIL_COOLDOWN_MINUTES", 30),
		},
		DailySymbol: DailySymbolLimitConfig{
			Enabled:              getEnvBool("QUANTSAIL_DAILY_SYMBOL_LIMIT_ENABLED", true),
			MaxConsecutiveLosses: getEnvInt("QUANTSAIL_DAILY_SYMBOL_LIMIT_MAX_LOSSES", 3),
		},
		StreakSizer: StreakSizerConfig{
			Enabled:              getEnvBool("QUANTSAIL_STREAK_SIZER_ENABLED", true),
			MinConsecutiveLosses: getEnvInt("QUANTSAIL_STREAK_SIZER_MIN_LOSSES", 2),
			ReductionFactor:      getEnvDecimal("QUANTSAIL_STREAK_SIZER_REDUCTION_FACTOR", d("0.5")),
		},
		Daily: DailyLockConfig{
			Enabled:                 getEnvBool("QUANTSAIL_DAILY_LOCK_ENABLED", true),
			Mode:                    DailyLockMode(getEnv("QUANTSAIL_DAILY_LOCK_MODE", string(DailyLockOverdrive))),
			TargetUSD:               getEnvDecimal("QUANTSAIL_DAILY_LOCK_TARGET_USD", d("100")),
			OverdriveTrailingBuffer: getEnvDecimal("QUANTSAIL_DAILY_LOCK_OVERDRIVE_BUFFER_USD", d("10")),
			Timezone:                getEnv("QUANTSAIL_DAILY_LOCK_TIMEZONE", "UTC"),
		},
	}
	return cfg
}
