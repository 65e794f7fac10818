package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

func out(name string, sig market.SignalType, conf float64) market.StrategyOutput {
	return market.StrategyOutput{StrategyName: name, Signal: sig, Confidence: conf}
}

func TestAgreementConsensusRequiresMinAgreement(t *testing.T) {
	outputs := []market.StrategyOutput{
		out("trend", market.SignalEnterLong, 0.8),
		out("mean_reversion", market.SignalEnterLong, 0.7),
		out("breakout", market.SignalHold, 0),
		out("vwap_reversion", market.SignalHold, 0),
	}

	below, err := agreementConsensus("BTC-USD", outputs, resolvedParams{minAgreement: 3, confidenceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, market.SignalHold, below.Type)

	met, err := agreementConsensus("BTC-USD", outputs, resolvedParams{minAgreement: 2, confidenceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, market.SignalEnterLong, met.Type)
	assert.InDelta(t, 0.75, met.Confidence, 1e-9)
}

func TestAgreementConsensusIgnoresVotesBelowConfidenceThreshold(t *testing.T) {
	outputs := []market.StrategyOutput{
		out("trend", market.SignalEnterLong, 0.4),
		out("mean_reversion", market.SignalEnterLong, 0.9),
	}
	signal, err := agreementConsensus("ETH-USD", outputs, resolvedParams{minAgreement: 2, confidenceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, market.SignalHold, signal.Type)
}

func TestWeightedConsensusAboveThresholdEntersLong(t *testing.T) {
	outputs := []market.StrategyOutput{
		out("trend", market.SignalEnterLong, 0.9),
		out("mean_reversion", market.SignalHold, 0),
		out("breakout", market.SignalEnterLong, 0.8),
		out("vwap_reversion", market.SignalHold, 0),
	}
	params := resolvedParams{
		weightTrend: 1, weightMeanReversion: 1, weightBreakout: 1, weightVWAP: 1,
		weightedThreshold: 0.3,
	}
	signal, err := weightedConsensus("SOL-USD", outputs, params)
	require.NoError(t, err)
	assert.Equal(t, market.SignalEnterLong, signal.Type)
}

func TestWeightedConsensusBelowThresholdHolds(t *testing.T) {
	outputs := []market.StrategyOutput{
		out("trend", market.SignalEnterLong, 0.4),
		out("mean_reversion", market.SignalHold, 0),
		out("breakout", market.SignalHold, 0),
		out("vwap_reversion", market.SignalHold, 0),
	}
	params := resolvedParams{
		weightTrend: 1, weightMeanReversion: 1, weightBreakout: 1, weightVWAP: 1,
		weightedThreshold: 0.5,
	}
	signal, err := weightedConsensus("SOL-USD", outputs, params)
	require.NoError(t, err)
	assert.Equal(t, market.SignalHold, signal.Type)
}

func TestWeightedConsensusZeroWeightIsSafe(t *testing.T) {
	outputs := []market.StrategyOutput{out("trend", market.SignalEnterLong, 0.9)}
	signal, err := weightedConsensus("SOL-USD", outputs, resolvedParams{weightedThreshold: 0.1})
	require.NoError(t, err)
	assert.Equal(t, market.SignalHold, signal.Type)
	assert.Equal(t, 0.0, signal.Confidence)
}
