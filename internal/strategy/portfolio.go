package strategy

import (
	"fmt"
	"log/slog"

	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

// Notification is a per-user message produced by the portfolio tracker.
type Notification struct {
	ChatID int64
	Text   string
}

// Tracker mirrors the bot's trade signals onto each opted-in user's
// notional portfolio. Users pay no fees: their percent move is applied
// to their own capital as-is.
type Tracker struct {
	store  store.Store
	logger *slog.Logger
}

// NewTracker creates a portfolio tracker.
func NewTracker(st store.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  st,
		logger: logger.With("component", "portfolio"),
	}
}

// Apply fans a trade event out to every user portfolio and returns one
// notification per affected user.
func (t *Tracker) Apply(ev types.TradeEvent) ([]Notification, error) {
	portfolios, err := t.store.AllPortfolios()
	if err != nil {
		return nil, fmt.Errorf("all portfolios: %w", err)
	}

	var out []Notification
	for _, p := range portfolios {
		n, changed := t.applyOne(&p, ev)
		if !changed {
			continue
		}
		if err := t.store.PutPortfolio(p); err != nil {
			t.logger.Error("portfolio save failed", "chat_id", p.ChatID, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (t *Tracker) applyOne(p *types.Portfolio, ev types.TradeEvent) (Notification, bool) {
	switch ev.Kind {
	case types.SignalBuy:
		if p.Position != types.PositionFlat {
			return Notification{}, false
		}
		entry := ev.Price
		p.Position = types.PositionLong
		p.EntryPrice = &entry
		return Notification{
			ChatID: p.ChatID,
			Text: fmt.Sprintf("📈 Your portfolio entered a position at $%s with capital $%s.",
				ev.Price.StringFixed(5), p.Capital.StringFixed(2)),
		}, true

	case types.SignalSell:
		if p.Position != types.PositionLong {
			return Notification{}, false
		}
		pnl := p.Capital.Mul(ev.PctChange)
		p.Capital = p.Capital.Add(pnl)
		p.CumulativePnL = p.CumulativePnL.Add(pnl)
		p.Position = types.PositionFlat
		p.EntryPrice = nil
		return Notification{
			ChatID: p.ChatID,
			Text: fmt.Sprintf("📉 Your position closed at $%s. P/L: $%s. Capital: $%s (cumulative P/L $%s).",
				ev.Price.StringFixed(5), pnl.StringFixed(2),
				p.Capital.StringFixed(2), p.CumulativePnL.StringFixed(2)),
		}, true
	}
	return Notification{}, false
}
