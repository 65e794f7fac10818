package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() BotConfig {
	cfg := DefaultConfig()
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := validTestConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedEMAs(t *testing.T) {
	cfg := validTestConfig()
	cfg.Strategies.Trend.EMAFast = 50
	cfg.Strategies.Trend.EMASlow = 20
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ema_fast")
}

func TestValidateRejectsRiskAboveExposure(t *testing.T) {
	cfg := validTestConfig()
	cfg.Risk.MaxRiskPerTradePct = decimal.NewFromInt(90)
	cfg.Portfolio.MaxPortfolioExposurePct = decimal.NewFromInt(50)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_risk_per_trade_pct")
}

func TestValidateRejectsDailyLossBeyondTwiceTarget(t *testing.T) {
	cfg := validTestConfig()
	cfg.Daily.Enabled = true
	cfg.Daily.TargetUSD = decimal.NewFromInt(100)
	cfg.Portfolio.MaxDailyLossUSD = decimal.NewFromInt(250)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_daily_loss_usd")
}

func TestDailyLossRuleIgnoredWhenLockDisabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.Daily.Enabled = false
	cfg.Daily.TargetUSD = decimal.NewFromInt(100)
	cfg.Portfolio.MaxDailyLossUSD = decimal.NewFromInt(250)
	assert.NoError(t, cfg.Validate())
}
