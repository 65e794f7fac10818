// Package persistence is the engine's GORM/MySQL storage layer: trades,
// orders, equity snapshots, the event log, and the credential/config tables
// spec.md §6 describes. Grounded on
// ChoSanghyuk-blackholedex/internal/db/transaction_recorder.go's
// GORM-tag/AutoMigrate/db.Create pattern.
package persistence

import (
	"time"
)

// TradeRecord is the GORM model for one entry-to-exit round trip.
type TradeRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	TradeID        string    `gorm:"uniqueIndex;not null;size:64"`
	Symbol         string    `gorm:"index;not null;size:32"`
	Side           string    `gorm:"not null;size:8"`
	Status         string    `gorm:"index;not null;size:16"`
	Mode           string    `gorm:"not null;size:8"`
	EntryPrice     string    `gorm:"type:decimal(24,8);not null"`
	Quantity       string    `gorm:"type:decimal(24,8);not null"`
	StopLoss       string    `gorm:"type:decimal(24,8);not null"`
	TakeProfit     string    `gorm:"type:decimal(24,8);not null"`
	EntryTime      time.Time `gorm:"index;not null"`
	ExitPrice      string    `gorm:"type:decimal(24,8)"`
	ExitTime       time.Time `gorm:"index"`
	ExitReason     string    `gorm:"size:32"`
	RealizedPnLUSD string    `gorm:"type:decimal(24,8)"`
	FeesUSD        string    `gorm:"type:decimal(24,8)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (TradeRecord) TableName() string { return "trades" }

// OrderRecord is the GORM model for one exchange fill (entry or exit leg of
// a TradeRecord).
type OrderRecord struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	OrderID         string    `gorm:"uniqueIndex;not null;size:64"`
	TradeID         string    `gorm:"index;not null;size:64"`
	Symbol          string    `gorm:"index;not null;size:32"`
	Side            string    `gorm:"not null;size:8"`
	OrderType       string    `gorm:"not null;size:16"`
	Status          string    `gorm:"index;not null;size:16"`
	Quantity        string    `gorm:"type:decimal(24,8);not null"`
	Price           string    `gorm:"type:decimal(24,8)"`
	AvgPrice        string    `gorm:"type:decimal(24,8)"`
	FilledQty       string    `gorm:"type:decimal(24,8)"`
	CommissionUSD   string    `gorm:"type:decimal(24,8)"`
	ExchangeOrderID string    `gorm:"index;size:64"`
	IdempotencyKey  string    `gorm:"uniqueIndex;size:96"`
	FilledAt        time.Time `gorm:"index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (OrderRecord) TableName() string { return "orders" }

// EquitySnapshotRecord periodically records total account equity so
// EquityProvider and the daily lock can reconstruct state on restart.
type EquitySnapshotRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	EquityUSD string    `gorm:"type:decimal(24,8);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (EquitySnapshotRecord) TableName() string { return "equity_snapshots" }

// EventRecord is one row of the append-only event log. Seq is the GORM
// autoIncrement primary key itself, serving as the monotonic sequence
// number spec.md §9's Open Questions asked about (DESIGN.md decision #1).
type EventRecord struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement;column:seq"`
	EventType   string    `gorm:"index;not null;size:64"`
	Level       string    `gorm:"index;not null;size:16"`
	Symbol      *string   `gorm:"index;size:32"`
	TradeID     *string   `gorm:"index;size:64"`
	PayloadJSON string    `gorm:"type:text"`
	PublicSafe  bool      `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"index;autoCreateTime"`
}

func (EventRecord) TableName() string { return "events" }

// ExchangeKeyRecord stores AES-256-GCM-encrypted exchange credentials.
// Ciphertext/Nonce are opaque blobs; only internal/security decrypts them,
// and only at the point of use. "At most one row per exchange with
// is_active AND revoked_at IS NULL" (spec.md §3) has no index here: MySQL
// has no partial indexes, so Repository.ActivateExchangeKey enforces it
// transactionally.
type ExchangeKeyRecord struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement"`
	UserID     uint64     `gorm:"index;not null"`
	Exchange   string     `gorm:"index;not null;size:32"`
	Label      string     `gorm:"size:64"`
	Ciphertext []byte     `gorm:"type:blob;not null"`
	Nonce      []byte     `gorm:"type:blob;not null"`
	KeyVersion int        `gorm:"not null;default:1"`
	IsActive   bool       `gorm:"index;not null;default:true"`
	RevokedAt  *time.Time `gorm:"index"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
}

func (ExchangeKeyRecord) TableName() string { return "exchange_keys" }

// UserRole is one of spec.md §3's four account roles.
type UserRole string

const (
	UserRoleOwner     UserRole = "OWNER"
	UserRoleCEO       UserRole = "CEO"
	UserRoleDeveloper UserRole = "DEVELOPER"
	UserRoleAdmin     UserRole = "ADMIN"
)

// UserRecord is the minimal account record exchange keys and config
// versions are scoped to.
type UserRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"uniqueIndex;not null;size:255"`
	Role      string    `gorm:"not null;size:16"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserRecord) TableName() string { return "users" }

// BotConfigVersionRecord stores each applied BotConfig as JSON, so a config
// change can be audited and, if needed, rolled back. Version is a
// unique, caller-assigned sequence number; at most one row may have
// IsActive set.
type BotConfigVersionRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Version     int       `gorm:"uniqueIndex;not null"`
	ConfigJSON  string    `gorm:"type:text;not null"`
	ConfigHash  string    `gorm:"not null;size:64"`
	IsActive    bool      `gorm:"index;not null;default:false"`
	CreatedBy   uint64    `gorm:"index;not null"`
	ActivatedAt time.Time `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (BotConfigVersionRecord) TableName() string { return "bot_config_versions" }

// allModels lists every table AutoMigrate should create/update.
var allModels = []any{
	&TradeRecord{}, &OrderRecord{}, &EquitySnapshotRecord{}, &EventRecord{},
	&ExchangeKeyRecord{}, &UserRecord{}, &BotConfigVersionRecord{},
}
