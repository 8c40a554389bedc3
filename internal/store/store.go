// Package store persists samples, strategy state, ledgers and user
// records.
//
// Two implementations share the Store interface: Postgres (gorm) for
// production and Memory for tests and dry runs. Writes are individually
// atomic single-row operations; there are no cross-table transactions.
package store

import (
	"errors"
	"time"

	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

// ErrNotFound is returned by point reads when no row exists.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence capability set used by the ingestor, strategy
// engine, router and chat responders.
type Store interface {
	// Samples (append-only).
	AppendSample(s types.Sample) error
	LatestSample(symbol string) (types.Sample, error)
	SamplesSince(symbol string, t0 time.Time) ([]types.Sample, error)

	// Strategy snapshot (latest-wins single row).
	SaveBotState(st types.BotState) error
	LoadBotState() (types.BotState, error)

	// Trade ledger (append-only).
	AppendTradeSignal(sig types.TradeSignal) error
	LatestTradeSignal() (types.TradeSignal, error)
	LatestBuySignal() (types.TradeSignal, error)

	// Publication ledger (append-only).
	AppendActivity(a types.Activity) error
	LatestActivity(kind types.ActivityKind) (types.Activity, error)

	// User portfolios.
	GetPortfolio(chatID int64) (types.Portfolio, error)
	PutPortfolio(p types.Portfolio) error
	AllPortfolios() ([]types.Portfolio, error)

	// User price alerts (one-shot).
	GetAlert(chatID int64) (types.PriceAlert, error)
	PutAlert(a types.PriceAlert) error
	DeleteAlert(chatID int64) error
	AllAlerts() ([]types.PriceAlert, error)
}
