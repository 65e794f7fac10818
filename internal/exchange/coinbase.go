package exchange

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// CoinbaseAdapter talks to Coinbase's Advanced Trade REST API directly.
// Grounded on chidi150c-coinbase/broker_coinbase.go's CoinbaseBroker: same
// JWT-over-RS256 auth minting (via golang-jwt), same product/candles/order
// endpoints, generalized from quote-denominated market orders to the
// base-quantity orders execution.ExchangeAdapter expects.
type CoinbaseAdapter struct {
	apiBase string
	hc      *http.Client

	keyName       string
	privateKeyPEM string
	bearerToken   string
}

// NewCoinbaseAdapter constructs a client against apiBase (defaults to
// https://api.coinbase.com). Exactly one auth mode is expected: a
// pre-minted bearerToken, or a keyName+privateKeyPEM pair used to mint
// short-lived JWTs per request — the credentials are expected to already
// be plaintext, decrypted by internal/security at the composition root.
func NewCoinbaseAdapter(apiBase, keyName, privateKeyPEM, bearerToken string) *CoinbaseAdapter {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.coinbase.com"
	}
	return &CoinbaseAdapter{
		apiBase:       strings.TrimRight(apiBase, "/"),
		hc:            &http.Client{Timeout: 15 * time.Second},
		keyName:       strings.TrimSpace(keyName),
		privateKeyPEM: privateKeyPEM,
		bearerToken:   strings.TrimSpace(bearerToken),
	}
}

func (cb *CoinbaseAdapter) Name() string { return "coinbase" }

func (cb *CoinbaseAdapter) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/api/v3/brokerage/products/%s", cb.apiBase, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "quantsail/coinbase-go")
	cb.addAuthIfAvailable(req)

	res, err := cb.hc.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return decimal.Zero, fmt.Errorf("exchange: coinbase product %d: %s", res.StatusCode, string(b))
	}
	var j map[string]any
	if err := json.NewDecoder(res.Body).Decode(&j); err != nil {
		return decimal.Zero, err
	}
	for _, k := range []string{"price", "mid_market_price", "best_ask", "best_bid"} {
		if v, ok := j[k]; ok {
			if s, ok := v.(string); ok {
				if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil && d.IsPositive() {
					return d, nil
				}
			}
		}
	}
	return decimal.Zero, errors.New("exchange: no usable price in coinbase product payload")
}

// GetOrderbook fetches the top-of-book via Coinbase's product_book endpoint.
// broker_coinbase.go never needed a book (it only sized quote-denominated
// market orders); this extends the same authenticated GET pattern to the
// endpoint the gate pipeline's spread/slippage estimators require.
func (cb *CoinbaseAdapter) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	u := fmt.Sprintf("%s/api/v3/brokerage/product_book?product_id=%s&limit=5", cb.apiBase, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return market.Orderbook{}, err
	}
	req.Header.Set("User-Agent", "quantsail/coinbase-go")
	cb.addAuthIfAvailable(req)

	res, err := cb.hc.Do(req)
	if err != nil {
		return market.Orderbook{}, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return market.Orderbook{}, fmt.Errorf("exchange: coinbase product_book %d: %s", res.StatusCode, string(b))
	}
	var payload struct {
		Pricebook struct {
			Bids []struct {
				Price string `json:"price"`
				Size  string `json:"size"`
			} `json:"bids"`
			Asks []struct {
				Price string `json:"price"`
				Size  string `json:"size"`
			} `json:"asks"`
		} `json:"pricebook"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return market.Orderbook{}, err
	}
	toLevels := func(rows []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	}) []market.Level {
		out := make([]market.Level, 0, len(rows))
		for _, r := range rows {
			price, err := decimal.NewFromString(r.Price)
			if err != nil {
				continue
			}
			size, err := decimal.NewFromString(r.Size)
			if err != nil {
				continue
			}
			out = append(out, market.Level{Price: price, Quantity: size})
		}
		return out
	}
	return market.NewOrderbook(toLevels(payload.Pricebook.Bids), toLevels(payload.Pricebook.Asks))
}

// GetCandles fetches recent OHLCV bars, translating broker_coinbase.go's
// GetRecentCandles response normalization (the API returns either a bare
// array or {"candles":[...]}) into market.Candle values.
func (cb *CoinbaseAdapter) GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 350
	}
	if limit > 350 {
		limit = 350
	}
	const granularitySeconds = 300 // FIVE_MINUTE
	end := time.Now().UTC()
	start := end.Add(-time.Duration((limit+2)*granularitySeconds) * time.Second)

	qs := url.Values{
		"granularity": []string{"FIVE_MINUTE"},
		"start":       []string{strconv.FormatInt(start.Unix(), 10)},
		"end":         []string{strconv.FormatInt(end.Unix(), 10)},
		"limit":       []string{strconv.Itoa(limit)},
	}
	u := fmt.Sprintf("%s/api/v3/brokerage/products/%s/candles?%s", cb.apiBase, url.PathEscape(symbol), qs.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "quantsail/coinbase-go")
	cb.addAuthIfAvailable(req)

	res, err := cb.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("exchange: coinbase candles %d: %s", res.StatusCode, string(b))
	}

	var raw any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}
	rows := normalizeCoinbaseCandles(raw)
	out := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		tsUnix, _ := strconv.ParseInt(r.Start, 10, 64)
		if tsUnix <= 0 {
			continue
		}
		open, err1 := decimal.NewFromString(r.Open)
		high, err2 := decimal.NewFromString(r.High)
		low, err3 := decimal.NewFromString(r.Low)
		close, err4 := decimal.NewFromString(r.Close)
		vol, err5 := decimal.NewFromString(r.Volume)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candle, err := market.NewCandle(time.Unix(tsUnix, 0).UTC(), open, high, low, close, vol)
		if err != nil {
			continue
		}
		out = append(out, candle)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Before(out[i-1].Timestamp) {
			for j := i; j > 0 && out[j].Timestamp.Before(out[j-1].Timestamp); j-- {
				out[j], out[j-1] = out[j-1], out[j]
			}
		}
	}
	return out, nil
}

type cbCandleRow struct {
	Start, Open, High, Low, Close, Volume string
}

func normalizeCoinbaseCandles(raw any) []cbCandleRow {
	var arr []any
	switch v := raw.(type) {
	case []any:
		arr = v
	case map[string]any:
		if c, ok := v["candles"].([]any); ok {
			arr = c
		}
	}
	out := make([]cbCandleRow, 0, len(arr))
	for _, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		str := func(k string) string {
			s, _ := m[k].(string)
			return s
		}
		out = append(out, cbCandleRow{
			Start: str("start"), Open: str("open"), High: str("high"),
			Low: str("low"), Close: str("close"), Volume: str("volume"),
		})
	}
	return out
}

// PlaceMarketOrder places an IOC market order sized in base quantity,
// adapting broker_coinbase.go's PlaceMarketQuote (quote_size) to
// base_size, which is what a quantity computed by risk.Sizer needs.
func (cb *CoinbaseAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side market.Side, quantity decimal.Decimal) (execution.PlacedOrder, error) {
	if !quantity.IsPositive() {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: coinbase order quantity must be > 0")
	}
	body := map[string]any{
		"client_order_id": uuid.NewString(),
		"product_id":      symbol,
		"side":            strings.ToUpper(string(side)),
		"order_configuration": map[string]any{
			"market_market_ioc": map[string]string{
				"base_size": quantity.String(),
			},
		},
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return execution.PlacedOrder{}, err
	}
	u := cb.apiBase + "/api/v3/brokerage/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(bs)))
	if err != nil {
		return execution.PlacedOrder{}, err
	}
	req.Header.Set("User-Agent", "quantsail/coinbase-go")
	req.Header.Set("Content-Type", "application/json")
	if err := cb.addAuth(req); err != nil {
		return execution.PlacedOrder{}, err
	}

	res, err := cb.hc.Do(req)
	if err != nil {
		return execution.PlacedOrder{}, err
	}
	defer res.Body.Close()
	rb, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: coinbase order %d: %s", res.StatusCode, string(rb))
	}

	var generic map[string]any
	_ = json.Unmarshal(rb, &generic)
	orderID, _ := generic["order_id"].(string)
	if strings.TrimSpace(orderID) == "" {
		orderID, _ = body["client_order_id"].(string)
	}

	avgPrice, filledQty, commission := cb.fetchOrderFill(ctx, orderID)

	return execution.PlacedOrder{
		ID:            orderID,
		Symbol:        symbol,
		Side:          side,
		AvgPrice:      avgPrice,
		FilledQty:     filledQty,
		CommissionUSD: commission,
		FilledAt:      time.Now().UTC(),
	}, nil
}

// fetchOrderFill polls historical fills a handful of times, mirroring
// broker_coinbase.go's micro-retry enrichment loop.
func (cb *CoinbaseAdapter) fetchOrderFill(ctx context.Context, orderID string) (avgPrice, filledQty, commissionUSD decimal.Decimal) {
	if strings.TrimSpace(orderID) == "" {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	const attempts = 6
	const sleep = 250 * time.Millisecond
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return decimal.Zero, decimal.Zero, decimal.Zero
		}
		price, qty, commission, ok := cb.pollFills(ctx, orderID)
		if ok && qty.IsPositive() {
			return price, qty, commission
		}
		select {
		case <-ctx.Done():
			return decimal.Zero, decimal.Zero, decimal.Zero
		case <-time.After(sleep):
		}
	}
	return decimal.Zero, decimal.Zero, decimal.Zero
}

func (cb *CoinbaseAdapter) pollFills(ctx context.Context, orderID string) (avgPrice, filledQty, commission decimal.Decimal, ok bool) {
	qs := url.Values{"order_id": []string{orderID}}
	u := fmt.Sprintf("%s/api/v3/brokerage/orders/historical/fills?%s", cb.apiBase, qs.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	req.Header.Set("User-Agent", "quantsail/coinbase-go")
	if err := cb.addAuth(req); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	res, err := cb.hc.Do(req)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	var j struct {
		Fills []struct {
			Price      string `json:"price"`
			Size       string `json:"size"`
			Commission string `json:"commission"`
		} `json:"fills"`
	}
	if err := json.NewDecoder(res.Body).Decode(&j); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	var totBase, totNotional, totCommission decimal.Decimal
	for _, f := range j.Fills {
		price, _ := decimal.NewFromString(f.Price)
		size, _ := decimal.NewFromString(f.Size)
		comm, _ := decimal.NewFromString(f.Commission)
		totBase = totBase.Add(size)
		totNotional = totNotional.Add(size.Mul(price))
		totCommission = totCommission.Add(comm)
	}
	if !totBase.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	return totNotional.Div(totBase), totBase, totCommission, true
}

func (cb *CoinbaseAdapter) addAuthIfAvailable(req *http.Request) {
	if cb.bearerToken != "" || (cb.keyName != "" && cb.privateKeyPEM != "") {
		_ = cb.addAuth(req)
	}
}

func (cb *CoinbaseAdapter) addAuth(req *http.Request) error {
	if cb.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+cb.bearerToken)
		return nil
	}
	if cb.keyName == "" || cb.privateKeyPEM == "" {
		return errors.New("exchange: coinbase auth not configured (bearer token or key name + private key required)")
	}
	token, err := mintCoinbaseJWT(cb.keyName, cb.privateKeyPEM, 25*time.Second)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("CB-ACCESS-KEY", cb.keyName)
	return nil
}

// mintCoinbaseJWT signs a short-lived RS256 JWT the way
// broker_coinbase.go's mintCoinbaseJWT does, using golang-jwt/jwt/v5.
func mintCoinbaseJWT(keyName, privatePEM string, ttl time.Duration) (string, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return "", errors.New("exchange: invalid coinbase private key (no PEM block)")
	}
	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("exchange: coinbase private key is not RSA")
		}
		key = rsaKey
	} else {
		rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("exchange: unparseable coinbase private key: %w", err)
		}
		key = rsaKey
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": keyName,
		"aud": "retail_rest_api",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}
