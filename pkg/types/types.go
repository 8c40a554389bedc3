// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — ticker samples, the
// strategy state snapshot, ledger rows, and user records. It has no
// dependencies on internal packages, so it can be imported by any layer.
//
// All monetary values use shopspring/decimal: the Bitstamp ticker returns
// numeric fields as JSON strings, and capital/PnL arithmetic must be exact.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// PositionState is the strategy's single-position FSM state.
type PositionState string

const (
	PositionFlat PositionState = "flat"
	PositionLong PositionState = "long"
)

// SignalKind is the direction of a trade signal: BUY or SELL.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
)

// ActivityKind enumerates the scheduled (non-trade) publication kinds
// recorded in the activity ledger. The ledger row is what makes each
// scheduled event idempotent within its dedupe bucket.
type ActivityKind string

const (
	ActivityHourlyUpdate    ActivityKind = "hourly_update"
	ActivityNHourSummary    ActivityKind = "n_hour_summary"
	ActivityDailySummary    ActivityKind = "daily_summary"
	ActivityVolatilityAlert ActivityKind = "volatility_alert"
)

// ————————————————————————————————————————————————————————————————————————
// Ticker samples
// ————————————————————————————————————————————————————————————————————————

// Sample is one normalized ticker observation. Append-only: at most one
// row per (symbol, ts), and ts is non-decreasing per symbol within a run.
type Sample struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TS              time.Time        `gorm:"column:timestamp;uniqueIndex:idx_symbol_ts;not null" json:"timestamp"`
	Symbol          string           `gorm:"size:10;uniqueIndex:idx_symbol_ts;index;not null" json:"symbol"`
	LastPrice       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"last_price"`
	OpenPrice       decimal.Decimal  `gorm:"type:decimal(20,8)" json:"open_price"`
	HighPrice       decimal.Decimal  `gorm:"type:decimal(20,8)" json:"high_price"`
	LowPrice        decimal.Decimal  `gorm:"type:decimal(20,8)" json:"low_price"`
	VWAP            decimal.Decimal  `gorm:"column:vwap;type:decimal(20,8)" json:"vwap"`
	Volume          decimal.Decimal  `gorm:"type:decimal(24,8)" json:"volume"`
	Bid             decimal.Decimal  `gorm:"type:decimal(20,8)" json:"bid"`
	Ask             decimal.Decimal  `gorm:"type:decimal(20,8)" json:"ask"`
	PctChange24h    decimal.Decimal  `gorm:"column:percent_change_24h;type:decimal(12,4)" json:"percent_change_24h"`
	PctChange       *decimal.Decimal `gorm:"column:percent_change;type:decimal(12,4)" json:"percent_change,omitempty"` // vs previous stored sample, nil if none
}

// TableName maps Sample onto the crypto_prices table.
func (Sample) TableName() string { return "crypto_prices" }

// ————————————————————————————————————————————————————————————————————————
// Strategy state
// ————————————————————————————————————————————————————————————————————————

// BotState is the strategy snapshot, persisted latest-wins after every
// mutation so a restart resumes exactly where the previous run stopped.
//
// Invariants:
//   - flat  ⇒ EntryPrice = TrailingStop = HighestPrice = EntryTime = nil
//   - long  ⇒ 0 < TrailingStop ≤ HighestPrice and EntryPrice ≤ HighestPrice
type BotState struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Capital       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"capital"`
	Position      PositionState    `gorm:"size:8;not null" json:"position"`
	EntryPrice    *decimal.Decimal `gorm:"type:decimal(20,8)" json:"entry_price,omitempty"`
	TrailingStop  *decimal.Decimal `gorm:"column:trailing_stop_price;type:decimal(20,8)" json:"trailing_stop_price,omitempty"`
	HighestPrice  *decimal.Decimal `gorm:"type:decimal(20,8)" json:"highest_price,omitempty"` // highest since entry
	LastProcessed time.Time        `gorm:"column:last_timestamp" json:"last_timestamp"`
	EntryTime     *time.Time       `json:"entry_time,omitempty"`
	LastLossTime  *time.Time       `json:"last_loss_time,omitempty"` // gates the post-loss buy cooldown
}

// TableName maps BotState onto the bot_state table.
func (BotState) TableName() string { return "bot_state" }

// ————————————————————————————————————————————————————————————————————————
// Ledgers
// ————————————————————————————————————————————————————————————————————————

// TradeSignal is one append-only trade ledger row. PnL, PctChange and
// TimeHeld are nil for BUY rows.
type TradeSignal struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TS             time.Time        `gorm:"column:timestamp;index;not null" json:"timestamp"`
	SignalType     SignalKind       `gorm:"size:4;index;not null" json:"signal_type"`
	Price          decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"price"`
	ProfitLoss     *decimal.Decimal `gorm:"type:decimal(20,8)" json:"profit_loss,omitempty"`
	PctChange      *decimal.Decimal `gorm:"column:percent_change;type:decimal(12,4)" json:"percent_change,omitempty"`
	TimeHeldSec    *int64           `gorm:"column:time_held_seconds" json:"time_held_seconds,omitempty"`
	UpdatedCapital decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"updated_capital"`
}

// TableName maps TradeSignal onto the trade_signals table.
func (TradeSignal) TableName() string { return "trade_signals" }

// TimeHeld returns the held duration of a SELL row, or zero for BUY rows.
func (t TradeSignal) TimeHeld() time.Duration {
	if t.TimeHeldSec == nil {
		return 0
	}
	return time.Duration(*t.TimeHeldSec) * time.Second
}

// Activity is one append-only non-trade publication ledger row. A row is
// written only after the corresponding post succeeded, so the ledger is
// the authoritative record of what was actually published.
type Activity struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TS           time.Time       `gorm:"column:timestamp;index;not null" json:"timestamp"`
	ActivityType ActivityKind    `gorm:"size:20;index;not null" json:"activity_type"`
	Price        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	SummaryText  *string         `json:"summary_text,omitempty"`
}

// TableName maps Activity onto the twitter_bot_activity table.
func (Activity) TableName() string { return "twitter_bot_activity" }

// ————————————————————————————————————————————————————————————————————————
// Per-user records
// ————————————————————————————————————————————————————————————————————————

// Portfolio is a chat user's notional portfolio, created on the first
// /setcapital and mutated only by the strategy on buy/sell. Fees are not
// applied to user portfolios.
type Portfolio struct {
	ChatID        int64            `gorm:"primaryKey" json:"chat_id"`
	Capital       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"capital"`
	Position      PositionState    `gorm:"size:8;not null" json:"position"`
	EntryPrice    *decimal.Decimal `gorm:"type:decimal(20,8)" json:"entry_price,omitempty"`
	CumulativePnL decimal.Decimal  `gorm:"column:cumulative_pnl;type:decimal(20,8)" json:"cumulative_pnl"`
}

// TableName maps Portfolio onto the user_portfolios table.
func (Portfolio) TableName() string { return "user_portfolios" }

// PriceAlert is a chat user's one-shot price target. Cleared after firing.
type PriceAlert struct {
	ChatID      int64           `gorm:"primaryKey" json:"chat_id"`
	TargetPrice decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"target_price"`
}

// TableName maps PriceAlert onto the user_price_alerts table.
func (PriceAlert) TableName() string { return "user_price_alerts" }

// ————————————————————————————————————————————————————————————————————————
// Strategy events
// ————————————————————————————————————————————————————————————————————————

// TradeEvent is emitted by the strategy engine when a sample triggers an
// entry or exit. Emission is a return value, not a callback: the router
// pulls samples through the engine and consumes the produced events.
//
// Fee is set on BUY; PnL, PctChange and Held are set on SELL.
type TradeEvent struct {
	Kind      SignalKind
	At        time.Time // the triggering sample's timestamp
	Price     decimal.Decimal
	Fee       decimal.Decimal // entry fee charged (BUY)
	PnL       decimal.Decimal // realized net profit/loss (SELL)
	PctChange decimal.Decimal // (exit − entry) / entry (SELL)
	Held      time.Duration   // time between entry and exit (SELL)
	Capital   decimal.Decimal // capital after the event
}
