// XRP Price Alerts — a continuously running XRP/USD market-signal bot.
//
// Architecture:
//
//	main.go             — entry point: dotenv, config, logger, process lock, engine, signals
//	engine/engine.go    — orchestrator: wires ingestor → strategy → router → publishers
//	ingest/ingestor.go  — polls the Bitstamp ticker once a minute with backoff and dedupe
//	strategy/engine.go  — single-position FSM: VWAP-deviation entry, trailing stop,
//	                      take-profit and stop-loss exits, post-loss cooldown
//	strategy/portfolio  — mirrors trade signals onto per-user notional portfolios
//	router/router.go    — per-tick fan-out: trade signals to Telegram, scheduled
//	                      hourly/3-hour/daily/volatility posts to Twitter
//	chart/chart.go      — 15-minute candlestick PNG with SMA-5 and EMA-21 overlays
//	publish/            — Telegram sendMessage and Twitter v2/v1.1 clients
//	bot/                — Telegram long-poll command listener (/price, /portfolio, ...)
//	store/              — gorm Postgres persistence (samples, state, ledgers, users)
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/engine"
)

func main() {
	// Best-effort: secrets usually come from the environment directly.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("XRP_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// One process per lock file; a second instance would double-post and
	// corrupt the strategy state.
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("lock file error", "path", cfg.LockFile, "error", err)
		os.Exit(1)
	}
	if !locked {
		logger.Error("another instance is already running", "lock", cfg.LockFile)
		os.Exit(1)
	}
	defer lock.Unlock()

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("xrp price alerts bot started",
		"symbol", cfg.Ticker.Symbol,
		"poll_interval", cfg.Ticker.PollInterval,
		"hourly", cfg.Events.HourlyUpdate,
		"n_hour", cfg.Events.NHourSummary,
		"daily", cfg.Events.DailySummary,
		"volatility", cfg.Events.VolatilityAlert,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
