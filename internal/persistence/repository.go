package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/gates"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// Repository wraps a GORM DB handle and implements every small repository
// interface the gates/breakers/risk packages declare locally
// (breakers.EventAppender, breakers.TradeHistoryProvider,
// gates.PortfolioStateProvider, gates.LastExitProvider,
// gates.DailySymbolHistoryProvider, gates.EquityProvider), so one concrete
// type satisfies all of them without any of those packages importing this
// one. Grounded on
// ChoSanghyuk-blackholedex/internal/db/transaction_recorder.go's
// MySQLRecorder.
type Repository struct {
	db *gorm.DB
}

// NewRepository opens a MySQL connection and migrates every model.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to connect to MySQL: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func NewRepositoryWithDB(db *gorm.DB) (*Repository, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// migrate runs AutoMigrate. spec.md §3's "at most one active, non-revoked
// key row per exchange" is a partial unique index in the source schema;
// MySQL (this repo's configured driver, per DESIGN.md) has no WHERE-clause
// index syntax, so ActivateExchangeKey enforces it transactionally instead
// (deactivate any existing active row for the exchange before activating
// the new one).
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("persistence: failed to migrate schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendEvent satisfies breakers.EventAppender / risk.EventAppender.
func (r *Repository) AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("persistence: failed to marshal event payload: %w", err)
	}
	rec := EventRecord{
		EventType:   eventType,
		Level:       level,
		Symbol:      symbol,
		PayloadJSON: string(payloadJSON),
		PublicSafe:  publicSafe,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

// QueryEvents returns events with Seq > afterSeq (cursor-based resume),
// oldest first, capped at limit.
func (r *Repository) QueryEvents(ctx context.Context, afterSeq uint64, limit int) ([]EventRecord, error) {
	var records []EventRecord
	err := r.db.WithContext(ctx).
		Where("seq > ?", afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetRecentClosedTrades satisfies breakers.TradeHistoryProvider: the most
// recent closed trades across all symbols, newest first.
func (r *Repository) GetRecentClosedTrades(ctx context.Context, limit int) ([]breakers.ClosedTrade, error) {
	var records []TradeRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", "CLOSED").
		Order("exit_time DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toClosedTrades(records), nil
}

// GetTodayClosedTradesForSymbol satisfies gates.DailySymbolHistoryProvider.
func (r *Repository) GetTodayClosedTradesForSymbol(ctx context.Context, symbol string) ([]breakers.ClosedTrade, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var records []TradeRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ? AND exit_time >= ?", symbol, "CLOSED", dayStart).
		Order("exit_time DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toClosedTrades(records), nil
}

// TodayClosedPnLs returns today's closed-trade realized PnLs ordered by
// exit time, oldest first, so the daily lock can replay the day's cumulative
// PnL and reconstruct its running peak on startup.
func (r *Repository) TodayClosedPnLs(ctx context.Context) ([]decimal.Decimal, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var records []TradeRecord
	err := r.db.WithContext(ctx).
		Select("realized_pnl_usd").
		Where("status = ? AND exit_time >= ?", "CLOSED", dayStart).
		Order("exit_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, 0, len(records))
	for _, rec := range records {
		pnl, _ := decimal.NewFromString(rec.RealizedPnLUSD)
		out = append(out, pnl)
	}
	return out, nil
}

func toClosedTrades(records []TradeRecord) []breakers.ClosedTrade {
	out := make([]breakers.ClosedTrade, 0, len(records))
	for _, rec := range records {
		pnl, _ := decimal.NewFromString(rec.RealizedPnLUSD)
		out = append(out, breakers.ClosedTrade{ID: rec.TradeID, RealizedPnLUSD: pnl})
	}
	return out
}

// LastStopLossExitTime satisfies gates.LastExitProvider: the most recent
// stop-loss close for the symbol. Take-profit and trailing exits are
// excluded — only a stop-loss starts the cooldown window.
func (r *Repository) LastStopLossExitTime(ctx context.Context, symbol string) (time.Time, bool, error) {
	var rec TradeRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ? AND exit_reason = ?", symbol, "CLOSED", "stop_loss").
		Order("exit_time DESC").
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return rec.ExitTime, true, nil
}

// Snapshot satisfies gates.PortfolioStateProvider. Correlated open
// positions is approximated as all open positions (no asset-correlation
// grouping config exists yet — see DESIGN.md).
func (r *Repository) Snapshot(ctx context.Context, symbol string) (gates.PortfolioSnapshot, error) {
	var openCount int64
	if err := r.db.WithContext(ctx).Model(&TradeRecord{}).Where("status = ?", "OPEN").Count(&openCount).Error; err != nil {
		return gates.PortfolioSnapshot{}, err
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var dailyTrades int64
	if err := r.db.WithContext(ctx).Model(&TradeRecord{}).Where("entry_time >= ?", dayStart).Count(&dailyTrades).Error; err != nil {
		return gates.PortfolioSnapshot{}, err
	}

	var closedToday []TradeRecord
	if err := r.db.WithContext(ctx).Where("status = ? AND exit_time >= ?", "CLOSED", dayStart).Find(&closedToday).Error; err != nil {
		return gates.PortfolioSnapshot{}, err
	}
	dailyRealizedPnL := decimal.Zero
	for _, t := range closedToday {
		pnl, _ := decimal.NewFromString(t.RealizedPnLUSD)
		dailyRealizedPnL = dailyRealizedPnL.Add(pnl)
	}

	var openTrades []TradeRecord
	if err := r.db.WithContext(ctx).Where("status = ?", "OPEN").Find(&openTrades).Error; err != nil {
		return gates.PortfolioSnapshot{}, err
	}
	exposure := decimal.Zero
	for _, t := range openTrades {
		entry, _ := decimal.NewFromString(t.EntryPrice)
		qty, _ := decimal.NewFromString(t.Quantity)
		exposure = exposure.Add(entry.Mul(qty))
	}

	equity, err := r.GetEquityUSD(ctx)
	if err != nil {
		return gates.PortfolioSnapshot{}, err
	}

	return gates.PortfolioSnapshot{
		OpenPositions:           int(openCount),
		CorrelatedOpenPositions: int(openCount),
		DailyTradesCount:        int(dailyTrades),
		DailyRealizedPnLUSD:     dailyRealizedPnL,
		CurrentExposureUSD:      exposure,
		EquityUSD:               equity,
	}, nil
}

// GetEquityUSD satisfies gates.EquityProvider: the most recent equity
// snapshot, or zero if none has ever been recorded.
func (r *Repository) GetEquityUSD(ctx context.Context) (decimal.Decimal, error) {
	var rec EquitySnapshotRecord
	err := r.db.WithContext(ctx).Order("timestamp DESC").First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(rec.EquityUSD)
}

// RecordEquitySnapshot appends a new equity reading.
func (r *Repository) RecordEquitySnapshot(ctx context.Context, ts time.Time, equityUSD decimal.Decimal) error {
	return r.db.WithContext(ctx).Create(&EquitySnapshotRecord{
		Timestamp: ts, EquityUSD: equityUSD.String(),
	}).Error
}

// SaveTrade upserts a Trade (insert on entry, update on exit) by TradeID.
func (r *Repository) SaveTrade(ctx context.Context, rec TradeRecord) error {
	return r.db.WithContext(ctx).
		Where("trade_id = ?", rec.TradeID).
		Assign(rec).
		FirstOrCreate(&rec).Error
}

// ErrTradeAlreadyClosed is returned by CloseTrade when the OPEN -> CLOSED
// compare-and-set finds no OPEN row for the trade id: either the trade never
// existed or a concurrent close already won (spec.md §5's "the repository
// must reject double-close").
var ErrTradeAlreadyClosed = errors.New("persistence: trade is not open (already closed or unknown)")

// CloseTrade flips one trade OPEN -> CLOSED, stamping its exit fields, as a
// single conditional UPDATE keyed on the current status. Exactly one caller
// can ever win the CAS for a given trade id.
func (r *Repository) CloseTrade(ctx context.Context, rec TradeRecord) error {
	res := r.db.WithContext(ctx).Model(&TradeRecord{}).
		Where("trade_id = ? AND status = ?", rec.TradeID, "OPEN").
		Updates(map[string]any{
			"status":           "CLOSED",
			"exit_price":       rec.ExitPrice,
			"exit_time":        rec.ExitTime,
			"exit_reason":      rec.ExitReason,
			"realized_pnl_usd": rec.RealizedPnLUSD,
			"fees_usd":         rec.FeesUSD,
			"stop_loss":        rec.StopLoss,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTradeAlreadyClosed
	}
	return nil
}

// TotalRealizedPnLUSD sums realized PnL across every closed trade, used to
// derive current equity (starting cash + lifetime realized PnL) for the
// per-tick equity snapshot.
func (r *Repository) TotalRealizedPnLUSD(ctx context.Context) (decimal.Decimal, error) {
	var records []TradeRecord
	if err := r.db.WithContext(ctx).Select("realized_pnl_usd").Where("status = ?", "CLOSED").Find(&records).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rec := range records {
		pnl, _ := decimal.NewFromString(rec.RealizedPnLUSD)
		total = total.Add(pnl)
	}
	return total, nil
}

// SaveOrder upserts one order record by OrderID: an insert for the initial
// PENDING/FILLED row, an update when the exit pipeline later flips a
// resting stop-loss/take-profit order to FILLED or CANCELLED.
func (r *Repository) SaveOrder(ctx context.Context, rec OrderRecord) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", rec.OrderID).
		Assign(rec).
		FirstOrCreate(&rec).Error
}

// FindTrade satisfies execution.TradeFinder: the live executor's
// idempotency check before placing an entry order.
func (r *Repository) FindTrade(ctx context.Context, tradeID string) (execution.Trade, bool, error) {
	var rec TradeRecord
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return execution.Trade{}, false, nil
		}
		return execution.Trade{}, false, err
	}
	return toExecutionTrade(rec), true, nil
}

// GetOpenTrades returns every currently OPEN trade, used to reconstruct
// per-symbol state-machine positions and to drive execution.Reconcile on
// startup (spec.md §4.2, §4.7).
func (r *Repository) GetOpenTrades(ctx context.Context) ([]execution.Trade, error) {
	var records []TradeRecord
	if err := r.db.WithContext(ctx).Where("status = ?", "OPEN").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]execution.Trade, 0, len(records))
	for _, rec := range records {
		out = append(out, toExecutionTrade(rec))
	}
	return out, nil
}

func toExecutionTrade(rec TradeRecord) execution.Trade {
	entry, _ := decimal.NewFromString(rec.EntryPrice)
	qty, _ := decimal.NewFromString(rec.Quantity)
	sl, _ := decimal.NewFromString(rec.StopLoss)
	tp, _ := decimal.NewFromString(rec.TakeProfit)
	fees, _ := decimal.NewFromString(rec.FeesUSD)
	return execution.Trade{
		TradeID:    rec.TradeID,
		Symbol:     rec.Symbol,
		Side:       market.Side(rec.Side),
		Status:     execution.TradeStatus(rec.Status),
		Mode:       execution.Mode(rec.Mode),
		EntryPrice: entry,
		Quantity:   qty,
		StopLoss:   sl,
		TakeProfit: tp,
		EntryTime:  rec.EntryTime,
		FeesUSD:    fees,
	}
}

// ExecutionTradeRecord converts an execution.Trade into the GORM record
// SaveTrade persists; the composition root uses this instead of
// duplicating field mapping at each call site.
func ExecutionTradeRecord(t execution.Trade) TradeRecord {
	return TradeRecord{
		TradeID:        t.TradeID,
		Symbol:         t.Symbol,
		Side:           string(t.Side),
		Status:         string(t.Status),
		Mode:           string(t.Mode),
		EntryPrice:     t.EntryPrice.String(),
		Quantity:       t.Quantity.String(),
		StopLoss:       t.StopLoss.String(),
		TakeProfit:     t.TakeProfit.String(),
		EntryTime:      t.EntryTime,
		ExitPrice:      t.ExitPrice.String(),
		ExitTime:       t.ExitTime,
		ExitReason:     t.ExitReason,
		RealizedPnLUSD: t.RealizedPnLUSD.String(),
		FeesUSD:        t.FeesUSD.String(),
	}
}

// ExecutionOrderRecord converts an execution.Order into the GORM record
// SaveOrder persists.
func ExecutionOrderRecord(o execution.Order) OrderRecord {
	return OrderRecord{
		OrderID:         o.OrderID,
		TradeID:         o.TradeID,
		Symbol:          o.Symbol,
		Side:            string(o.Side),
		OrderType:       string(o.OrderType),
		Status:          string(o.Status),
		Quantity:        o.Quantity.String(),
		Price:           o.Price.String(),
		AvgPrice:        o.FilledPrice.String(),
		FilledQty:       o.FilledQty.String(),
		ExchangeOrderID: o.ExchangeOrderID,
		IdempotencyKey:  o.IdempotencyKey,
		FilledAt:        o.FilledAt,
	}
}

// ActivateExchangeKey marks one exchange key as the active row for its
// exchange, deactivating any previously active row first. This enforces
// spec.md §3's "at most one row per exchange with is_active AND
// revoked_at IS NULL" invariant transactionally, since MySQL cannot express
// it as a partial index (see migrate).
func (r *Repository) ActivateExchangeKey(ctx context.Context, keyID uint64) error {
	var key ExchangeKeyRecord
	if err := r.db.WithContext(ctx).First(&key, keyID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ExchangeKeyRecord{}).
			Where("exchange = ? AND is_active = ?", key.Exchange, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&ExchangeKeyRecord{}).Where("id = ?", keyID).Update("is_active", true).Error
	})
}
