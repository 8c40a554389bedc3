package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/chart"
	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/internal/strategy"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

const (
	// Scheduled posts fire only within the first minutes of their slot,
	// so a bot that was down during the slot does not post stale updates
	// on restart.
	graceMinutes = 5

	summaryWindow    = 3 * time.Hour
	volatilityPeriod = 15 * time.Minute
	dailySummaryHour = 20
)

// TweetPoster publishes to the public feed.
type TweetPoster interface {
	PostText(ctx context.Context, body string) error
	PostWithImage(ctx context.Context, body, imagePath string) error
}

// ChatSender delivers direct messages.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Router runs once per poll tick: it feeds the newest sample through
// the strategy engine, delivers trade signals, checks user price
// alerts, and evaluates every scheduled publication. Scheduled posts
// are deduplicated through the activity ledger, and a ledger row is
// written only after the post succeeded, so a failed publish is simply
// retried on a later tick.
type Router struct {
	store    store.Store
	engine   *strategy.Engine
	tracker  *strategy.Tracker
	twitter  TweetPoster
	telegram ChatSender
	events   config.EventsConfig
	chatID   int64
	symbol   string
	chartDir string
	logger   *slog.Logger

	// Previous tick's price, for alert crossing detection.
	prevPrice decimal.Decimal
	havePrev  bool

	// Volatility reference point. In-memory on purpose: a restart just
	// re-arms the check.
	volPrice decimal.Decimal
	volCheck time.Time
}

// New creates a router.
func New(st store.Store, engine *strategy.Engine, tracker *strategy.Tracker,
	twitter TweetPoster, telegram ChatSender,
	events config.EventsConfig, chatID int64, symbol, chartDir string,
	logger *slog.Logger) *Router {
	return &Router{
		store:    st,
		engine:   engine,
		tracker:  tracker,
		twitter:  twitter,
		telegram: telegram,
		events:   events,
		chatID:   chatID,
		symbol:   symbol,
		chartDir: chartDir,
		logger:   logger.With("component", "router"),
	}
}

// Run ticks until the context is cancelled.
func (r *Router) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("router started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopped")
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.logger.Warn("tick failed", "error", err)
			}
		}
	}
}

// Tick processes the newest stored sample.
func (r *Router) Tick(ctx context.Context) error {
	sample, err := r.store.LatestSample(r.symbol)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest sample: %w", err)
	}

	r.handleTrades(ctx, sample)
	r.checkPriceAlerts(ctx, sample)

	if r.events.HourlyUpdate {
		r.hourlyUpdate(ctx, sample)
	}
	if r.events.NHourSummary {
		r.nHourSummary(ctx, sample)
	}
	if r.events.VolatilityAlert {
		r.volatilityAlert(ctx, sample)
	}
	if r.events.DailySummary {
		r.dailySummary(ctx, sample)
	}

	r.prevPrice = sample.LastPrice
	r.havePrev = true
	return nil
}

// handleTrades drives the engine and delivers the resulting signals to
// the Telegram channel and to each user portfolio.
func (r *Router) handleTrades(ctx context.Context, s types.Sample) {
	events, err := r.engine.Process(s)
	if err != nil {
		r.logger.Error("strategy process failed", "error", err)
	}

	for _, ev := range events {
		text := buyText(ev)
		if ev.Kind == types.SignalSell {
			text = sellText(ev)
		}
		if err := r.telegram.SendMessage(ctx, r.chatID, text); err != nil {
			r.logger.Error("trade signal delivery failed", "kind", ev.Kind, "error", err)
		}

		notes, err := r.tracker.Apply(ev)
		if err != nil {
			r.logger.Error("portfolio fan-out failed", "error", err)
			continue
		}
		for _, n := range notes {
			if err := r.telegram.SendMessage(ctx, n.ChatID, n.Text); err != nil {
				r.logger.Warn("portfolio notification failed", "chat_id", n.ChatID, "error", err)
			}
		}
	}
}

// checkPriceAlerts fires one-shot alerts whose target was crossed
// between the previous tick's price and this one.
func (r *Router) checkPriceAlerts(ctx context.Context, s types.Sample) {
	if !r.havePrev {
		return
	}
	alerts, err := r.store.AllAlerts()
	if err != nil {
		r.logger.Error("load alerts failed", "error", err)
		return
	}

	for _, a := range alerts {
		crossedUp := r.prevPrice.LessThan(a.TargetPrice) && s.LastPrice.GreaterThanOrEqual(a.TargetPrice)
		crossedDown := r.prevPrice.GreaterThan(a.TargetPrice) && s.LastPrice.LessThanOrEqual(a.TargetPrice)
		if !crossedUp && !crossedDown {
			continue
		}
		if err := r.telegram.SendMessage(ctx, a.ChatID, priceAlertText(a.TargetPrice, s.LastPrice)); err != nil {
			r.logger.Warn("price alert delivery failed", "chat_id", a.ChatID, "error", err)
			continue
		}
		if err := r.store.DeleteAlert(a.ChatID); err != nil {
			r.logger.Error("delete fired alert failed", "chat_id", a.ChatID, "error", err)
		}
	}
}

// hourlyUpdate tweets the price move versus the previously posted
// hourly price, once per hour within the grace window. The tweet
// compares against the rounded price the audience actually saw.
func (r *Router) hourlyUpdate(ctx context.Context, s types.Sample) {
	if s.TS.Minute() >= graceMinutes {
		return
	}

	// The audience sees 2-decimal prices, so the comparison (and the
	// "retained value" variant) works on rounded prices too.
	current := s.LastPrice.Round(2)
	var lastPrice decimal.Decimal
	last, err := r.store.LatestActivity(types.ActivityHourlyUpdate)
	switch err {
	case nil:
		if sameBucket(last.TS, s.TS, time.Hour) {
			return
		}
		lastPrice = last.Price.Round(2)
	case store.ErrNotFound:
		lastPrice = current
	default:
		r.logger.Error("hourly dedupe lookup failed", "error", err)
		return
	}

	text := priceMoveText(lastPrice, current, r.events.AllTimeHigh, false, s.TS)
	if err := r.twitter.PostText(ctx, text); err != nil {
		r.logger.Error("hourly update post failed", "error", err)
		return
	}
	r.recordActivity(types.ActivityHourlyUpdate, s, text)
}

// nHourSummary tweets a 3-hour recap with a candlestick chart at every
// third hour.
func (r *Router) nHourSummary(ctx context.Context, s types.Sample) {
	if s.TS.Hour()%3 != 0 || s.TS.Minute() >= graceMinutes {
		return
	}
	if last, err := r.store.LatestActivity(types.ActivityNHourSummary); err == nil &&
		sameBucket(last.TS, s.TS, time.Hour) {
		return
	}

	window, err := r.store.SamplesSince(r.symbol, s.TS.Add(-summaryWindow))
	if err != nil || len(window) == 0 {
		r.logger.Warn("no samples for summary window", "error", err)
		return
	}

	support, resistance := window[0].LastPrice, window[0].LastPrice
	for _, w := range window {
		if w.LastPrice.LessThan(support) {
			support = w.LastPrice
		}
		if w.LastPrice.GreaterThan(resistance) {
			resistance = w.LastPrice
		}
	}
	pct := percentChange(window[0].LastPrice, s.LastPrice)
	text := threeHourText(pct, support, resistance, s.LastPrice, s.TS)

	path, err := chart.Render(window, r.chartDir)
	if err != nil {
		r.logger.Error("chart render failed, posting text only", "error", err)
		err = r.twitter.PostText(ctx, text)
	} else {
		err = r.twitter.PostWithImage(ctx, text, path)
	}
	if err != nil {
		r.logger.Error("summary post failed", "error", err)
		return
	}
	r.recordActivity(types.ActivityNHourSummary, s, text)
}

// volatilityAlert compares against the price at the previous check,
// every 15 minutes. Like the other scheduled posts it is deduplicated
// through the activity ledger, one alert per 15-minute bucket.
func (r *Router) volatilityAlert(ctx context.Context, s types.Sample) {
	if !r.volCheck.IsZero() && s.TS.Sub(r.volCheck) < volatilityPeriod {
		return
	}
	prev := r.volPrice
	r.volPrice = s.LastPrice
	r.volCheck = s.TS

	if !prev.IsPositive() {
		return
	}
	move := s.LastPrice.Sub(prev).Div(prev)
	if move.Abs().LessThan(r.events.VolatilityThreshold) {
		return
	}
	if last, err := r.store.LatestActivity(types.ActivityVolatilityAlert); err == nil &&
		sameBucket(last.TS, s.TS, volatilityPeriod) {
		return
	}

	text := priceMoveText(prev, s.LastPrice, r.events.AllTimeHigh, true, s.TS)
	if err := r.twitter.PostText(ctx, text); err != nil {
		r.logger.Error("volatility alert post failed", "error", err)
		return
	}
	r.recordActivity(types.ActivityVolatilityAlert, s, text)
}

// dailySummary tweets the day's range once, in the evening slot.
func (r *Router) dailySummary(ctx context.Context, s types.Sample) {
	if s.TS.Hour() != dailySummaryHour || s.TS.Minute() >= graceMinutes {
		return
	}
	if last, err := r.store.LatestActivity(types.ActivityDailySummary); err == nil &&
		sameBucket(last.TS, s.TS, 24*time.Hour) {
		return
	}

	midnight := s.TS.UTC().Truncate(24 * time.Hour)
	day, err := r.store.SamplesSince(r.symbol, midnight)
	if err != nil || len(day) == 0 {
		r.logger.Warn("no samples for daily summary", "error", err)
		return
	}

	high, low := day[0].LastPrice, day[0].LastPrice
	for _, d := range day {
		if d.LastPrice.GreaterThan(high) {
			high = d.LastPrice
		}
		if d.LastPrice.LessThan(low) {
			low = d.LastPrice
		}
	}

	text := dailySummaryText(high, low, s.TS)
	if err := r.twitter.PostText(ctx, text); err != nil {
		r.logger.Error("daily summary post failed", "error", err)
		return
	}
	r.recordActivity(types.ActivityDailySummary, s, text)
}

func (r *Router) recordActivity(kind types.ActivityKind, s types.Sample, text string) {
	err := r.store.AppendActivity(types.Activity{
		TS:           s.TS,
		ActivityType: kind,
		Price:        s.LastPrice,
		SummaryText:  &text,
	})
	if err != nil {
		r.logger.Error("activity ledger append failed", "kind", kind, "error", err)
	}
	r.logger.Info("scheduled post published", "kind", kind, "ts", s.TS)
}

// sameBucket reports whether two timestamps fall into the same
// UTC-aligned bucket of the given size.
func sameBucket(a, b time.Time, size time.Duration) bool {
	return a.UTC().Truncate(size).Equal(b.UTC().Truncate(size))
}
