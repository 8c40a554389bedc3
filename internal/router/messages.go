// Package router drives the strategy engine from stored samples and
// fans the resulting events out to their publication targets: trade
// signals to Telegram, scheduled updates to Twitter.
package router

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/strategy"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

const (
	stampLayout = "2006-01-02 15:04:05"
	tradeLayout = "January 02, 2006 at 03:04 PM"
)

var hundred = decimal.NewFromInt(100)

func percentChange(old, new decimal.Decimal) decimal.Decimal {
	if !old.IsPositive() {
		return decimal.Zero
	}
	return new.Sub(old).Div(old).Mul(hundred)
}

// buyText renders the Telegram message for an entry event.
func buyText(ev types.TradeEvent) string {
	return fmt.Sprintf(
		"⚠️ *Buy Signal Triggered*\nBought at: $%s on %s",
		ev.Price.StringFixed(5), ev.At.UTC().Format(tradeLayout))
}

// sellText renders the Telegram message for an exit event.
func sellText(ev types.TradeEvent) string {
	return fmt.Sprintf(
		"🚨 *Sell Signal Triggered:*\n"+
			"Sold at $%s on %s\n"+
			"Profit/Loss = $%s, Time Held = %s\n"+
			"Updated Capital: $%s",
		ev.Price.StringFixed(5), ev.At.UTC().Format(tradeLayout),
		ev.PnL.StringFixed(2), strategy.TimeHeldString(ev.Held),
		ev.Capital.StringFixed(2))
}

// priceMoveText renders the hourly update or volatility alert tweet.
// Breaking the configured all-time high overrides everything else.
func priceMoveText(last, current, ath decimal.Decimal, volatility bool, at time.Time) string {
	stamp := at.UTC().Format(stampLayout)
	pct := percentChange(last, current)

	switch {
	case ath.IsPositive() && current.GreaterThan(ath):
		return fmt.Sprintf(
			"🚀🔥 $XRP just smashed through its all-time high, now trading at an unbelievable $%s! 🚀🔥\n"+
				"Can you feel the excitement? 📈\n"+
				"Time: %s\n"+
				"#Ripple #XRP #XRPATH #ToTheMoon",
			current.StringFixed(2), stamp)
	case volatility:
		direction, emoji := "UP", "📈"
		if current.LessThan(last) {
			direction, emoji = "DOWN", "📉"
		}
		return fmt.Sprintf(
			"⚡️ $XRP is experiencing volatility! It's %s by %s%% to $%s %s\nTime: %s\n#Ripple #XRP #XRPVolatility",
			direction, pct.Abs().StringFixed(2), current.StringFixed(2), emoji, stamp)
	case current.Equal(last):
		return fmt.Sprintf(
			"🔔❗️ $XRP has retained a value of $%s over the last hour.\nTime: %s\n#Ripple #XRP #XRPPriceAlerts",
			current.StringFixed(2), stamp)
	case current.GreaterThan(last):
		return fmt.Sprintf(
			"🔔📈 $XRP is UP %s%% over the last hour to $%s!\nTime: %s\n#Ripple #XRP #XRPPriceAlerts",
			pct.StringFixed(2), current.StringFixed(2), stamp)
	default:
		return fmt.Sprintf(
			"🔔📉 $XRP is DOWN -%s%% over the last hour to $%s!\nTime: %s\n#Ripple #XRP #XRPPriceAlerts",
			pct.Abs().StringFixed(2), current.StringFixed(2), stamp)
	}
}

// threeHourText renders the n-hour summary tweet that accompanies the
// candlestick chart.
func threeHourText(pct, support, resistance, current decimal.Decimal, at time.Time) string {
	sign := ""
	if !pct.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf(
		"🔔🕒 3-Hour XRP Update: Price has changed by %s%s%%.\n"+
			"Support level at: $%s\n"+
			"Resistance level at: $%s\n"+
			"Current Price: $%s\nTime: %s\n"+
			"#Ripple #XRP #XRPPriceAlerts",
		sign, pct.StringFixed(2),
		support.StringFixed(5), resistance.StringFixed(5),
		current.StringFixed(5), at.UTC().Format(stampLayout))
}

// dailySummaryText renders the end-of-day recap tweet.
func dailySummaryText(high, low decimal.Decimal, at time.Time) string {
	return fmt.Sprintf(
		"📊 Daily Recap: Today’s $XRP traded between a low of $%s and a high of $%s.\n"+
			"What's next for XRP? Stay tuned! 📈💥\n"+
			"Time: %s\n"+
			"#Ripple #XRP #XRPPriceAlerts",
		low.StringFixed(5), high.StringFixed(5), at.UTC().Format(stampLayout))
}

// priceAlertText renders the one-shot user price alert message.
func priceAlertText(target, current decimal.Decimal) string {
	return fmt.Sprintf(
		"🔔 Price Alert: $XRP has hit your target of $%s! Current price: $%s",
		target.StringFixed(5), current.StringFixed(5))
}
