package bot

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

const stampLayout = "2006-01-02 15:04:05"

func (l *Listener) handleStart(ctx context.Context, chatID int64, args string) string {
	return "👋 Welcome to the XRP Price Alerts bot!\n" +
		"I track XRP/USD, post market updates and run a trading signal engine.\n" +
		"Use /setcapital to opt into portfolio tracking, or /help for all commands."
}

func (l *Listener) handlePrice(ctx context.Context, chatID int64, args string) string {
	s, err := l.store.LatestSample(l.symbol)
	if err == store.ErrNotFound {
		return "No price data yet, try again in a minute."
	}
	if err != nil {
		l.logger.Error("price lookup failed", "error", err)
		return "Price lookup failed, try again later."
	}
	return fmt.Sprintf("💲 Current XRP price: $%s\nAs of %s UTC",
		s.LastPrice.StringFixed(5), s.TS.UTC().Format(stampLayout))
}

func (l *Listener) handleLastSignal(ctx context.Context, chatID int64, args string) string {
	sig, err := l.store.LatestTradeSignal()
	if err == store.ErrNotFound {
		return "No trade signals yet."
	}
	if err != nil {
		l.logger.Error("signal lookup failed", "error", err)
		return "Signal lookup failed, try again later."
	}

	if sig.SignalType == types.SignalBuy {
		return fmt.Sprintf("⚠️ Last signal: BUY at $%s on %s UTC",
			sig.Price.StringFixed(5), sig.TS.UTC().Format(stampLayout))
	}
	pnl := decimal.Zero
	if sig.ProfitLoss != nil {
		pnl = *sig.ProfitLoss
	}
	return fmt.Sprintf("🚨 Last signal: SELL at $%s on %s UTC\nProfit/Loss: $%s, Updated Capital: $%s",
		sig.Price.StringFixed(5), sig.TS.UTC().Format(stampLayout),
		pnl.StringFixed(2), sig.UpdatedCapital.StringFixed(2))
}

func (l *Listener) handleSetCapital(ctx context.Context, chatID int64, args string) string {
	amount, err := decimal.NewFromString(args)
	if err != nil || !amount.IsPositive() {
		return "Usage: /setcapital <amount>, e.g. /setcapital 1000"
	}

	p, err := l.store.GetPortfolio(chatID)
	if err == store.ErrNotFound {
		p = types.Portfolio{ChatID: chatID, Position: types.PositionFlat}
	} else if err != nil {
		l.logger.Error("portfolio lookup failed", "error", err)
		return "Portfolio lookup failed, try again later."
	}
	if p.Position == types.PositionLong {
		return "Your portfolio has an open position, capital can only be set while flat."
	}

	p.Capital = amount
	if err := l.store.PutPortfolio(p); err != nil {
		l.logger.Error("portfolio save failed", "error", err)
		return "Could not save your portfolio, try again later."
	}
	return fmt.Sprintf("✅ Portfolio capital set to $%s. You now mirror the bot's trade signals.",
		amount.StringFixed(2))
}

func (l *Listener) handlePortfolio(ctx context.Context, chatID int64, args string) string {
	p, err := l.store.GetPortfolio(chatID)
	if err == store.ErrNotFound {
		return "No portfolio yet. Use /setcapital <amount> to start."
	}
	if err != nil {
		l.logger.Error("portfolio lookup failed", "error", err)
		return "Portfolio lookup failed, try again later."
	}

	position := "flat"
	if p.Position == types.PositionLong && p.EntryPrice != nil {
		position = fmt.Sprintf("long since $%s", p.EntryPrice.StringFixed(5))
	}
	return fmt.Sprintf("📊 Your portfolio\nCapital: $%s\nPosition: %s\nCumulative P/L: $%s",
		p.Capital.StringFixed(2), position, p.CumulativePnL.StringFixed(2))
}

func (l *Listener) handleSetAlert(ctx context.Context, chatID int64, args string) string {
	target, err := decimal.NewFromString(args)
	if err != nil || !target.IsPositive() {
		return "Usage: /setalert <price>, e.g. /setalert 1.05"
	}
	if err := l.store.PutAlert(types.PriceAlert{ChatID: chatID, TargetPrice: target}); err != nil {
		l.logger.Error("alert save failed", "error", err)
		return "Could not save your alert, try again later."
	}
	return fmt.Sprintf("🔔 Alert set: I'll message you when XRP crosses $%s.", target.StringFixed(5))
}

func (l *Listener) handleViewAlert(ctx context.Context, chatID int64, args string) string {
	a, err := l.store.GetAlert(chatID)
	if err == store.ErrNotFound {
		return "No alert set. Use /setalert <price>."
	}
	if err != nil {
		l.logger.Error("alert lookup failed", "error", err)
		return "Alert lookup failed, try again later."
	}
	return fmt.Sprintf("🔔 Active alert: XRP crossing $%s.", a.TargetPrice.StringFixed(5))
}

func (l *Listener) handleCapital(ctx context.Context, chatID int64, args string) string {
	st, err := l.store.LoadBotState()
	if err == store.ErrNotFound {
		return "The trading engine has no state yet."
	}
	if err != nil {
		l.logger.Error("state lookup failed", "error", err)
		return "State lookup failed, try again later."
	}

	position := "flat"
	if st.Position == types.PositionLong && st.EntryPrice != nil {
		position = fmt.Sprintf("long since $%s", st.EntryPrice.StringFixed(5))
	}
	return fmt.Sprintf("💰 Bot capital: $%s\nPosition: %s",
		st.Capital.StringFixed(2), position)
}

func (l *Listener) handleHelp(ctx context.Context, chatID int64, args string) string {
	return "Available commands:\n" +
		"/price — current XRP price\n" +
		"/lastsignal — most recent trade signal\n" +
		"/capital — the bot's capital and position\n" +
		"/setcapital <amount> — opt into portfolio tracking\n" +
		"/portfolio — your tracked portfolio\n" +
		"/setalert <price> — one-shot price alert\n" +
		"/viewalert — show your active alert\n" +
		"/about — about this bot"
}

func (l *Listener) handleAbout(ctx context.Context, chatID int64, args string) string {
	return "🤖 XRP Price Alerts bot.\n" +
		"Polls Bitstamp every minute, posts hourly and daily market updates, " +
		"and runs a VWAP-deviation trading signal engine with trailing stops."
}
