package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// BinanceAdapter talks to Binance Spot directly over signed REST (HMAC-SHA256),
// no sidecar. Grounded on chidi150c-coinbase/binance_broker.go's BinanceBroker:
// same symbol mapping, exchangeInfo-derived LOT_SIZE/PRICE_FILTER steps, and
// signed GET/POST helpers, generalized from quote-denominated orders to the
// base-quantity orders execution.ExchangeAdapter places.
type BinanceAdapter struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow int64
	hc         *http.Client

	filters map[string]*binanceSymbolFilter
}

type binanceSymbolFilter struct {
	symbol         string
	baseAsset      string
	quoteAsset     string
	baseStep       float64
	tickSize       float64
	quoteStep      float64
	priceDigits    int
	quantityDigits int
}

func NewBinanceAdapter(apiBase, apiKey, apiSecret string, recvWindowMS int64) *BinanceAdapter {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.binance.com"
	}
	if recvWindowMS <= 0 {
		recvWindowMS = 5000
	}
	return &BinanceAdapter{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    strings.TrimRight(apiBase, "/"),
		recvWindow: recvWindowMS,
		hc:         &http.Client{Timeout: 10 * time.Second},
		filters:    map[string]*binanceSymbolFilter{},
	}
}

func (bb *BinanceAdapter) Name() string { return "binance" }

// mapBinanceSymbol converts "BTC-USD" style symbols into Binance's concatenated
// form, treating USD as USDT per binance_broker.go's mapProductToSymbol.
func mapBinanceSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "-USD") {
		return strings.ReplaceAll(s[:len(s)-4], "-", "") + "USDT"
	}
	return strings.ReplaceAll(s, "-", "")
}

func (bb *BinanceAdapter) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(bb.apiSecret))
	_, _ = io.WriteString(mac, q.Encode())
	return hex.EncodeToString(mac.Sum(nil))
}

func (bb *BinanceAdapter) get(ctx context.Context, path string, q url.Values, signed bool) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		q.Set("recvWindow", strconv.FormatInt(bb.recvWindow, 10))
		q.Set("signature", bb.sign(q))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bb.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if bb.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", bb.apiKey)
	}
	res, err := bb.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	bs, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("exchange: binance GET %s: %s", path, string(bs))
	}
	return bs, nil
}

func (bb *BinanceAdapter) post(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("recvWindow", strconv.FormatInt(bb.recvWindow, 10))
	q.Set("signature", bb.sign(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bb.baseURL+path, strings.NewReader(q.Encode()))
	if err != nil {
		return nil, err
	}
	if bb.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", bb.apiKey)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := bb.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	bs, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("exchange: binance POST %s: %s", path, string(bs))
	}
	return bs, nil
}

func (bb *BinanceAdapter) ensureSymbol(ctx context.Context, symbol string) (*binanceSymbolFilter, error) {
	if s, ok := bb.filters[symbol]; ok {
		return s, nil
	}
	q := url.Values{"symbol": []string{symbol}}
	bs, err := bb.get(ctx, "/api/v3/exchangeInfo", q, false)
	if err != nil {
		return nil, err
	}
	var ex struct {
		Symbols []struct {
			Symbol              string `json:"symbol"`
			BaseAsset           string `json:"baseAsset"`
			QuoteAsset          string `json:"quoteAsset"`
			QuoteAssetPrecision int    `json:"quoteAssetPrecision"`
			Filters             []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				TickSize   string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(bs, &ex); err != nil {
		return nil, err
	}
	if len(ex.Symbols) == 0 {
		return nil, fmt.Errorf("exchange: binance exchangeInfo has no entry for %s", symbol)
	}
	e := ex.Symbols[0]
	sf := &binanceSymbolFilter{
		symbol:     e.Symbol,
		baseAsset:  e.BaseAsset,
		quoteAsset: e.QuoteAsset,
		quoteStep:  math.Pow10(-e.QuoteAssetPrecision),
	}
	for _, f := range e.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			if f.StepSize != "" {
				sf.baseStep, _ = strconv.ParseFloat(f.StepSize, 64)
			}
		case "PRICE_FILTER":
			if f.TickSize != "" {
				sf.tickSize, _ = strconv.ParseFloat(f.TickSize, 64)
			}
		}
	}
	if sf.baseStep <= 0 {
		sf.baseStep = 0.000001
	}
	if sf.quoteStep <= 0 {
		sf.quoteStep = 0.01
	}
	sf.priceDigits = digitsFromStep(sf.tickSize, 2)
	sf.quantityDigits = digitsFromStep(sf.baseStep, 6)
	bb.filters[symbol] = sf
	return sf, nil
}

func digitsFromStep(step float64, def int) int {
	if step <= 0 {
		return def
	}
	s := fmt.Sprintf("%.12f", step)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		n := len(strings.TrimRight(s[i+1:], "0"))
		if n > 10 {
			n = 10
		}
		return n
	}
	return def
}

func (bb *BinanceAdapter) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{"symbol": []string{mapBinanceSymbol(symbol)}}
	bs, err := bb.get(ctx, "/api/v3/ticker/price", q, false)
	if err != nil {
		return decimal.Zero, err
	}
	var p struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(bs, &p); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(p.Price)
}

func (bb *BinanceAdapter) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	q := url.Values{"symbol": []string{mapBinanceSymbol(symbol)}, "limit": []string{"5"}}
	bs, err := bb.get(ctx, "/api/v3/depth", q, false)
	if err != nil {
		return market.Orderbook{}, err
	}
	var d struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(bs, &d); err != nil {
		return market.Orderbook{}, err
	}
	toLevels := func(rows [][2]string) []market.Level {
		out := make([]market.Level, 0, len(rows))
		for _, r := range rows {
			price, err1 := decimal.NewFromString(r[0])
			qty, err2 := decimal.NewFromString(r[1])
			if err1 != nil || err2 != nil {
				continue
			}
			out = append(out, market.Level{Price: price, Quantity: qty})
		}
		return out
	}
	return market.NewOrderbook(toLevels(d.Bids), toLevels(d.Asks))
}

func (bb *BinanceAdapter) GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	q := url.Values{
		"symbol":   []string{mapBinanceSymbol(symbol)},
		"interval": []string{"5m"},
		"limit":    []string{strconv.Itoa(limit)},
	}
	bs, err := bb.get(ctx, "/api/v3/klines", q, false)
	if err != nil {
		return nil, err
	}
	var raw [][]any
	if err := json.Unmarshal(bs, &raw); err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		openMs, ok := row[0].(float64)
		if !ok {
			continue
		}
		open, err1 := decimal.NewFromString(binanceStr(row[1]))
		high, err2 := decimal.NewFromString(binanceStr(row[2]))
		low, err3 := decimal.NewFromString(binanceStr(row[3]))
		close, err4 := decimal.NewFromString(binanceStr(row[4]))
		vol, err5 := decimal.NewFromString(binanceStr(row[5]))
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candle, err := market.NewCandle(time.UnixMilli(int64(openMs)).UTC(), open, high, low, close, vol)
		if err != nil {
			continue
		}
		out = append(out, candle)
	}
	return out, nil
}

func binanceStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// PlaceMarketOrder submits a MARKET order sized in base quantity, snapped to
// the symbol's LOT_SIZE step the way binance_broker.go's SELL path does
// (the BUY path there used quoteOrderQty; this adapter always trades a
// precomputed base quantity, so both sides go through the same LOT_SIZE
// snap).
func (bb *BinanceAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side market.Side, quantity decimal.Decimal) (execution.PlacedOrder, error) {
	if !quantity.IsPositive() {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: binance order quantity must be > 0")
	}
	bnSymbol := mapBinanceSymbol(symbol)
	sf, err := bb.ensureSymbol(ctx, bnSymbol)
	if err != nil {
		return execution.PlacedOrder{}, err
	}

	qtyFloat, _ := quantity.Float64()
	if sf.baseStep > 0 {
		qtyFloat = math.Floor(qtyFloat/sf.baseStep) * sf.baseStep
	}
	if qtyFloat <= 0 {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: binance quantity rounds to zero at LOT_SIZE step %v", sf.baseStep)
	}
	qtyStr := strconv.FormatFloat(qtyFloat, 'f', sf.quantityDigits, 64)

	q := url.Values{
		"symbol":           []string{bnSymbol},
		"side":             []string{strings.ToUpper(string(side))},
		"type":             []string{"MARKET"},
		"quantity":         []string{qtyStr},
		"newOrderRespType": []string{"FULL"},
	}
	bs, err := bb.post(ctx, "/api/v3/order", q)
	if err != nil {
		return execution.PlacedOrder{}, err
	}

	var ord struct {
		OrderID          int64  `json:"orderId"`
		ExecutedQty      string `json:"executedQty"`
		CummulativeQuote string `json:"cummulativeQuoteQty"`
	}
	_ = json.Unmarshal(bs, &ord)

	filledQty, err1 := decimal.NewFromString(ord.ExecutedQty)
	quoteSpent, err2 := decimal.NewFromString(ord.CummulativeQuote)
	if err1 != nil || !filledQty.IsPositive() {
		filledQty = quantity
	}
	var avgPrice decimal.Decimal
	if err2 == nil && filledQty.IsPositive() {
		avgPrice = quoteSpent.Div(filledQty)
	}
	if !avgPrice.IsPositive() {
		avgPrice, _ = bb.GetPrice(ctx, symbol)
	}

	return execution.PlacedOrder{
		ID:        strconv.FormatInt(ord.OrderID, 10),
		Symbol:    symbol,
		Side:      side,
		AvgPrice:  avgPrice,
		FilledQty: filledQty,
		// Binance commission is frequently reported in BNB or the base asset,
		// not USD; binance_broker.go leaves this at zero and the trader falls
		// back to a configured fee-rate estimate rather than guess at a
		// cross-asset conversion.
		CommissionUSD: decimal.Zero,
		FilledAt:      time.Now().UTC(),
	}, nil
}

// GetOpenOrders satisfies execution.OpenOrdersLister so the startup
// reconcile task (spec.md §4.7) can compare resting exchange orders against
// the repository. Grounded on the same signed-GET pattern as ensureSymbol.
func (bb *BinanceAdapter) GetOpenOrders(ctx context.Context, symbol string) ([]execution.PlacedOrder, error) {
	bnSymbol := mapBinanceSymbol(symbol)
	bs, err := bb.get(ctx, "/api/v3/openOrders", url.Values{"symbol": []string{bnSymbol}}, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID       int64  `json:"orderId"`
		Side          string `json:"side"`
		Price         string `json:"price"`
		OrigQty       string `json:"origQty"`
		ExecutedQty   string `json:"executedQty"`
	}
	if err := json.Unmarshal(bs, &raw); err != nil {
		return nil, fmt.Errorf("exchange: decode binance openOrders: %w", err)
	}
	out := make([]execution.PlacedOrder, 0, len(raw))
	for _, o := range raw {
		price, _ := decimal.NewFromString(o.Price)
		filled, _ := decimal.NewFromString(o.ExecutedQty)
		out = append(out, execution.PlacedOrder{
			ID:        strconv.FormatInt(o.OrderID, 10),
			Symbol:    symbol,
			Side:      market.Side(o.Side),
			AvgPrice:  price,
			FilledQty: filled,
		})
	}
	return out, nil
}
