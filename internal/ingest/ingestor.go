// Package ingest runs the polling loop that turns ticker observations
// into stored samples.
//
// One worker polls the ticker once per period, retries transient
// failures with jittered exponential backoff, drops stale or duplicate
// observations, computes the change against the previous stored sample
// and appends the result to the store. A failed cycle is logged and
// skipped, never fatal.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

// Fetcher is the ticker capability the ingestor needs.
type Fetcher interface {
	Fetch(ctx context.Context) (types.Sample, error)
}

// Ingestor polls the ticker and appends normalized samples.
type Ingestor struct {
	client Fetcher
	store  store.Store
	cfg    config.TickerConfig
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an ingestor.
func New(client Fetcher, st store.Store, cfg config.TickerConfig, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client: client,
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "ingest"),
		sleep:  sleepCtx,
	}
}

// Run polls until the context is cancelled. One cycle per poll interval;
// the first cycle runs immediately.
func (in *Ingestor) Run(ctx context.Context) {
	ticker := time.NewTicker(in.cfg.PollInterval)
	defer ticker.Stop()

	in.logger.Info("ingestor started", "interval", in.cfg.PollInterval, "url", in.cfg.URL)

	for {
		if err := in.PollOnce(ctx); err != nil {
			in.logger.Warn("poll cycle skipped", "error", err)
		}
		select {
		case <-ctx.Done():
			in.logger.Info("ingestor stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs a single poll cycle: fetch with retry, dedupe, enrich,
// append. Returns an error when the whole cycle had to be skipped.
func (in *Ingestor) PollOnce(ctx context.Context) error {
	s, err := in.fetchWithRetry(ctx)
	if err != nil {
		return err
	}

	prev, err := in.store.LatestSample(in.cfg.Symbol)
	switch err {
	case nil:
		if !s.TS.After(prev.TS) {
			in.logger.Debug("duplicate observation dropped", "ts", s.TS)
			return nil
		}
		if prev.LastPrice.IsPositive() {
			pct := s.LastPrice.Sub(prev.LastPrice).Div(prev.LastPrice).Mul(decimal.NewFromInt(100))
			s.PctChange = &pct
		}
	case store.ErrNotFound:
		// first sample ever, percent_change stays nil
	default:
		return fmt.Errorf("latest sample: %w", err)
	}

	if err := in.store.AppendSample(s); err != nil {
		return fmt.Errorf("append sample: %w", err)
	}

	in.logger.Info("sample stored", "ts", s.TS, "last", s.LastPrice)
	return nil
}

// fetchWithRetry retries transient fetch failures with jittered
// exponential backoff, giving up after the configured attempt cap.
func (in *Ingestor) fetchWithRetry(ctx context.Context) (types.Sample, error) {
	var lastErr error
	for attempt := 0; attempt < in.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			if err := in.sleep(ctx, backoff(in.cfg.RetryBase, attempt)); err != nil {
				return types.Sample{}, err
			}
		}
		s, err := in.client.Fetch(ctx)
		if err == nil {
			return s, nil
		}
		lastErr = err
		in.logger.Warn("fetch failed", "attempt", attempt+1, "error", err)
	}
	return types.Sample{}, fmt.Errorf("all %d attempts failed: %w", in.cfg.RetryMax, lastErr)
}

// backoff returns base·2^(attempt−1) with ±1s jitter, floored at zero.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(2*time.Second))) - time.Second
	if d+jitter < 0 {
		return 0
	}
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
