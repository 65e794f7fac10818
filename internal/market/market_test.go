package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestNewCandleValidatesRange(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewCandle(ts, d(100), d(105), d(98), d(103), d(10))
	require.NoError(t, err)

	_, err = NewCandle(ts, d(100), d(102), d(98), d(103), d(10))
	assert.Error(t, err, "high below close must be rejected")

	_, err = NewCandle(ts, d(100), d(105), d(101), d(103), d(10))
	assert.Error(t, err, "low above open must be rejected")

	_, err = NewCandle(ts, d(100), d(105), d(98), d(103), d(-1))
	assert.Error(t, err, "negative volume must be rejected")
}

func TestNewCandleNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	c, err := NewCandle(time.Date(2026, 3, 1, 12, 0, 0, 0, loc), d(1), d(2), d(1), d(2), d(0))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Timestamp.Location())
	assert.Equal(t, 10, c.Timestamp.Hour())
}

func TestNewOrderbookValidatesOrdering(t *testing.T) {
	_, err := NewOrderbook(
		[]Level{{Price: d(99), Quantity: d(1)}, {Price: d(98), Quantity: d(1)}},
		[]Level{{Price: d(100), Quantity: d(1)}, {Price: d(101), Quantity: d(1)}},
	)
	require.NoError(t, err)

	_, err = NewOrderbook(nil, []Level{{Price: d(100), Quantity: d(1)}})
	assert.Error(t, err, "empty bids must be rejected")

	_, err = NewOrderbook(
		[]Level{{Price: d(98), Quantity: d(1)}, {Price: d(99), Quantity: d(1)}},
		[]Level{{Price: d(100), Quantity: d(1)}},
	)
	assert.Error(t, err, "ascending bids must be rejected")

	_, err = NewOrderbook(
		[]Level{{Price: d(99), Quantity: d(1)}},
		[]Level{{Price: d(101), Quantity: d(1)}, {Price: d(100), Quantity: d(1)}},
	)
	assert.Error(t, err, "descending asks must be rejected")
}

func TestOrderbookDerivedValues(t *testing.T) {
	ob, err := NewOrderbook(
		[]Level{{Price: d(99), Quantity: d(1)}},
		[]Level{{Price: d(101), Quantity: d(1)}},
	)
	require.NoError(t, err)

	assert.True(t, ob.BestBid().Equal(d(99)))
	assert.True(t, ob.BestAsk().Equal(d(101)))
	assert.True(t, ob.Spread().Equal(d(2)))
	assert.True(t, ob.Mid().Equal(d(100)))
}

func TestTradePlanValidate(t *testing.T) {
	valid := TradePlan{
		TradeID: "t1", Symbol: "BTC/USDT", Side: SideBuy,
		EntryPrice: d(100), Quantity: d(1), StopLoss: d(95), TakeProfit: d(110),
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.StopLoss = d(100)
	assert.Error(t, bad.Validate(), "stop at entry must be rejected")

	bad = valid
	bad.TakeProfit = d(100)
	assert.Error(t, bad.Validate(), "take-profit at entry must be rejected")

	bad = valid
	bad.Quantity = decimal.Zero
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Side = Side("SELL")
	assert.Error(t, bad.Validate(), "only BUY plans are supported")
}

func TestNewSignalValidatesConfidence(t *testing.T) {
	_, err := NewSignal(SignalEnterLong, "BTC/USDT", 0.5, nil)
	require.NoError(t, err)

	_, err = NewSignal(SignalEnterLong, "BTC/USDT", 1.01, nil)
	assert.Error(t, err)

	_, err = NewSignal(SignalHold, "BTC/USDT", -0.01, nil)
	assert.Error(t, err)
}
