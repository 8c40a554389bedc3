// Package engine is the central orchestrator of the price-alert bot.
//
// It wires together all subsystems:
//
//  1. Ingestor polls the Bitstamp ticker and appends samples to the store.
//  2. Router drives the strategy FSM from the newest sample each tick and
//     evaluates every scheduled publication (hourly, 3-hour, daily,
//     volatility) plus user price alerts.
//  3. Listener long-polls Telegram for user commands.
//  4. A daily housekeeper deletes old chart files.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/johnossawy/xrp-price-alerts/internal/bot"
	"github.com/johnossawy/xrp-price-alerts/internal/chart"
	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/ingest"
	"github.com/johnossawy/xrp-price-alerts/internal/publish"
	"github.com/johnossawy/xrp-price-alerts/internal/router"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/internal/strategy"
	"github.com/johnossawy/xrp-price-alerts/internal/ticker"
)

const housekeepingPeriod = 24 * time.Hour

// Engine owns the lifecycle of every worker goroutine.
type Engine struct {
	cfg      config.Config
	store    store.Store
	ingestor *ingest.Ingestor
	router   *router.Router
	listener *bot.Listener
	telegram *publish.Telegram
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	var st store.Store
	switch cfg.Store.Backend {
	case "memory":
		st = store.NewMemory()
		logger.Warn("using in-memory store, nothing survives a restart")
	default:
		pg, err := store.NewPostgres(cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		st = pg
	}

	tickerClient := ticker.NewClient(cfg.Ticker)
	ingestor := ingest.New(tickerClient, st, cfg.Ticker, logger)

	fsm, err := strategy.New(st, cfg.Strategy, cfg.Ticker.Symbol, logger)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	tracker := strategy.NewTracker(st, logger)

	telegram := publish.NewTelegram(cfg.Telegram, logger)
	twitter := publish.NewTwitter(cfg.Twitter, logger)

	rt := router.New(st, fsm, tracker, twitter, telegram,
		cfg.Events, cfg.Telegram.ChatID, cfg.Ticker.Symbol, cfg.Chart.Dir, logger)

	listener := bot.NewListener(cfg.Telegram, telegram, st, cfg.Ticker.Symbol, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:      cfg,
		store:    st,
		ingestor: ingestor,
		router:   rt,
		listener: listener,
		telegram: telegram,
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches all workers.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.ingestor.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.router.Run(e.ctx, e.cfg.Ticker.PollInterval)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.listener.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.housekeeping(e.ctx)
	}()

	if err := e.telegram.SendMessage(e.ctx, e.cfg.Telegram.ChatID,
		"🤖 XRP Price Alerts bot started."); err != nil {
		e.logger.Warn("startup notice failed", "error", err)
	}

	e.logger.Info("engine started",
		"symbol", e.cfg.Ticker.Symbol,
		"poll_interval", e.cfg.Ticker.PollInterval,
		"store", e.cfg.Store.Backend,
	)
	return nil
}

// Stop cancels all workers and waits for them to finish.
func (e *Engine) Stop() {
	e.logger.Info("stopping engine")

	// The shutdown notice needs its own context, ours is about to die.
	noticeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.telegram.SendMessage(noticeCtx, e.cfg.Telegram.ChatID,
		"🛑 XRP Price Alerts bot shutting down."); err != nil {
		e.logger.Warn("shutdown notice failed", "error", err)
	}

	e.cancel()
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

// housekeeping deletes expired chart files once a day.
func (e *Engine) housekeeping(ctx context.Context) {
	tick := time.NewTicker(housekeepingPeriod)
	defer tick.Stop()

	for {
		deleted, err := chart.Cleanup(e.cfg.Chart.Dir, e.cfg.Chart.MaxAgeDays)
		if err != nil {
			e.logger.Warn("chart cleanup failed", "error", err)
		} else if deleted > 0 {
			e.logger.Info("old charts removed", "count", deleted)
		}

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
