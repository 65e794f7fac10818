package gates

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// CalculateFee returns notional * (rateBps / 10000). Grounded on
// original_source/gates/estimators.py:calculate_fee.
func CalculateFee(notionalUSD, rateBps decimal.Decimal) decimal.Decimal {
	return notionalUSD.Mul(rateBps).Div(decimal.NewFromInt(10000))
}

// CalculateSlippage walks the orderbook (asks for BUY, bids for SELL)
// level by level to find the volume-weighted average fill price for the
// requested quantity, returning that price and the slippage cost relative
// to the best price. Grounded on
// original_source/gates/estimators.py:calculate_slippage.
func CalculateSlippage(side market.Side, quantity decimal.Decimal, ob market.Orderbook) (avgFillPrice, slippageCost decimal.Decimal, err error) {
	levels := ob.Asks
	bestPrice := ob.BestAsk()
	if side != market.SideBuy {
		levels = ob.Bids
		bestPrice = ob.BestBid()
	}

	remaining := quantity
	var totalCost decimal.Decimal
	var totalFilled decimal.Decimal
	for _, lvl := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		fillQty := decimal.Min(remaining, lvl.Quantity)
		totalCost = totalCost.Add(fillQty.Mul(lvl.Price))
		totalFilled = totalFilled.Add(fillQty)
		remaining = remaining.Sub(fillQty)
	}
	if remaining.GreaterThan(decimal.Zero) {
		return decimal.Zero, decimal.Zero, errors.New("gates: insufficient orderbook liquidity to fill requested quantity")
	}

	avgFillPrice = totalCost.Div(totalFilled)

	if side == market.SideBuy {
		slippageCost = avgFillPrice.Sub(bestPrice).Mul(quantity)
	} else {
		slippageCost = bestPrice.Sub(avgFillPrice).Mul(quantity)
	}
	return avgFillPrice, slippageCost, nil
}

// CalculateSpreadCost estimates the cost of crossing the spread from mid
// price: for BUY, (bestAsk - mid) * quantity; for SELL, (mid - bestBid) *
// quantity. Grounded on
// original_source/gates/estimators.py:calculate_spread_cost.
func CalculateSpreadCost(side market.Side, quantity decimal.Decimal, ob market.Orderbook) decimal.Decimal {
	mid := ob.Mid()
	if side == market.SideBuy {
		return ob.BestAsk().Sub(mid).Mul(quantity)
	}
	return mid.Sub(ob.BestBid()).Mul(quantity)
}
