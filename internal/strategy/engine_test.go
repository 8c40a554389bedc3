package strategy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

var t0 = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func testStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		OversoldThreshold: decimal.RequireFromString("-0.019"),
		TakeProfit:        decimal.RequireFromString("0.015"),
		StopLoss:          decimal.RequireFromString("-0.02"),
		TrailPct:          decimal.RequireFromString("0.005"),
		LossCooldown:      30 * time.Minute,
		FeePct:            decimal.RequireFromString("0.004"),
		InitialCapital:    decimal.RequireFromString("12800"),
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	e, err := New(st, testStrategyConfig(), "XRP", discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func tick(ts time.Time, last, vwap string) types.Sample {
	return types.Sample{
		TS:        ts,
		Symbol:    "XRP",
		LastPrice: decimal.RequireFromString(last),
		VWAP:      decimal.RequireFromString(vwap),
	}
}

func process(t *testing.T, e *Engine, s types.Sample) []types.TradeEvent {
	t.Helper()
	events, err := e.Process(s)
	if err != nil {
		t.Fatalf("Process(%v): %v", s.TS, err)
	}
	return events
}

func TestOversoldEntry(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	// Deviation −1.5%: above the −1.9% threshold, no entry.
	if events := process(t, e, tick(t0, "0.985", "1.000")); len(events) != 0 {
		t.Fatalf("got %d events at −1.5%% deviation, want 0", len(events))
	}

	// Deviation exactly −2.0%: entry.
	events := process(t, e, tick(t0.Add(time.Minute), "0.980", "1.000"))
	if len(events) != 1 || events[0].Kind != types.SignalBuy {
		t.Fatalf("events = %+v, want one BUY", events)
	}

	state := e.State()
	if state.Position != types.PositionLong {
		t.Errorf("Position = %s, want long", state.Position)
	}
	if want := decimal.RequireFromString("51.2"); !events[0].Fee.Equal(want) {
		t.Errorf("entry fee = %s, want %s", events[0].Fee, want)
	}
	if want := decimal.RequireFromString("12748.8"); !state.Capital.Equal(want) {
		t.Errorf("capital after fee = %s, want %s", state.Capital, want)
	}
	if want := decimal.RequireFromString("0.9751"); !state.TrailingStop.Equal(want) {
		t.Errorf("trailing stop = %s, want %s", state.TrailingStop, want)
	}

	sig, err := st.LatestBuySignal()
	if err != nil {
		t.Fatalf("BUY row not in ledger: %v", err)
	}
	if !sig.Price.Equal(decimal.RequireFromString("0.980")) {
		t.Errorf("ledger price = %s, want 0.980", sig.Price)
	}
}

func TestTakeProfitExit(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	process(t, e, tick(t0, "0.980", "1.000"))
	capitalAtEntry := e.State().Capital

	// 0.995 ≥ 0.980·1.015 = 0.9947: take profit.
	events := process(t, e, tick(t0.Add(time.Hour), "0.995", "1.000"))
	if len(events) != 1 || events[0].Kind != types.SignalSell {
		t.Fatalf("events = %+v, want one SELL", events)
	}

	ev := events[0]
	if !ev.PnL.IsPositive() {
		t.Errorf("PnL = %s, want positive", ev.PnL)
	}
	if ev.Held != time.Hour {
		t.Errorf("Held = %v, want 1h", ev.Held)
	}
	if !ev.Capital.Equal(capitalAtEntry.Add(ev.PnL)) {
		t.Errorf("capital = %s, want entry capital %s + pnl %s", ev.Capital, capitalAtEntry, ev.PnL)
	}

	state := e.State()
	if state.Position != types.PositionFlat {
		t.Errorf("Position = %s, want flat", state.Position)
	}
	if state.EntryPrice != nil || state.TrailingStop != nil || state.HighestPrice != nil {
		t.Error("flat state must clear entry, trailing stop and highest price")
	}
	if state.LastLossTime != nil {
		t.Errorf("LastLossTime = %v, want nil on a winning exit", state.LastLossTime)
	}

	sig, err := st.LatestTradeSignal()
	if err != nil {
		t.Fatalf("SELL row not in ledger: %v", err)
	}
	if sig.SignalType != types.SignalSell || sig.ProfitLoss == nil || sig.TimeHeldSec == nil {
		t.Errorf("SELL ledger row incomplete: %+v", sig)
	}
	if *sig.TimeHeldSec != 3600 {
		t.Errorf("time held = %d s, want 3600", *sig.TimeHeldSec)
	}
}

func TestTrailingStopRatchetsAndExits(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	process(t, e, tick(t0, "0.980", "1.000"))

	// New highs ratchet the stop upward.
	process(t, e, tick(t0.Add(1*time.Minute), "0.990", "1.000"))
	process(t, e, tick(t0.Add(2*time.Minute), "0.992", "1.000"))

	state := e.State()
	if want := decimal.RequireFromString("0.98704"); !state.TrailingStop.Equal(want) {
		t.Fatalf("trailing stop = %s, want %s", state.TrailingStop, want)
	}
	if want := decimal.RequireFromString("0.992"); !state.HighestPrice.Equal(want) {
		t.Fatalf("highest = %s, want %s", state.HighestPrice, want)
	}

	// 0.9870 ≤ 0.98704: trailing stop fires, still a profitable exit.
	events := process(t, e, tick(t0.Add(3*time.Minute), "0.9870", "1.000"))
	if len(events) != 1 || events[0].Kind != types.SignalSell {
		t.Fatalf("events = %+v, want one SELL", events)
	}
	if e.State().LastLossTime != nil {
		t.Error("trailing exit above entry must not set LastLossTime")
	}
}

func TestTrailingStopNeverLowers(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	process(t, e, tick(t0, "0.980", "1.000"))
	process(t, e, tick(t0.Add(1*time.Minute), "0.992", "1.000"))
	stop := *e.State().TrailingStop

	// A drop that stays above the stop must not move it.
	process(t, e, tick(t0.Add(2*time.Minute), "0.990", "1.000"))
	if got := *e.State().TrailingStop; !got.Equal(stop) {
		t.Errorf("trailing stop moved from %s to %s on a non-high sample", stop, got)
	}
}

func TestStopLossSetsCooldown(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	process(t, e, tick(t0, "0.980", "1.000"))

	// 0.9604 = 0.980·0.98: stop loss boundary, inclusive.
	sellAt := t0.Add(10 * time.Minute)
	events := process(t, e, tick(sellAt, "0.9604", "1.000"))
	if len(events) != 1 || events[0].Kind != types.SignalSell {
		t.Fatalf("events = %+v, want one SELL", events)
	}
	if !events[0].PnL.IsNegative() {
		t.Errorf("PnL = %s, want negative", events[0].PnL)
	}

	state := e.State()
	if state.LastLossTime == nil || !state.LastLossTime.Equal(sellAt) {
		t.Fatalf("LastLossTime = %v, want %v", state.LastLossTime, sellAt)
	}

	// Oversold again at +29m: still inside the 30m cooldown.
	if events := process(t, e, tick(sellAt.Add(29*time.Minute), "0.940", "0.960")); len(events) != 0 {
		t.Fatalf("got %d events inside cooldown, want 0", len(events))
	}

	// +31m: cooldown elapsed, buy resumes.
	events = process(t, e, tick(sellAt.Add(31*time.Minute), "0.940", "0.960"))
	if len(events) != 1 || events[0].Kind != types.SignalBuy {
		t.Fatalf("events after cooldown = %+v, want one BUY", events)
	}
}

func TestWinningExitClearsLastLossTime(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	// Losing trade: stop loss at entry·0.98.
	process(t, e, tick(t0, "0.980", "1.000"))
	sellAt := t0.Add(10 * time.Minute)
	process(t, e, tick(sellAt, "0.9604", "1.000"))
	if e.State().LastLossTime == nil {
		t.Fatal("losing exit did not set LastLossTime")
	}

	// Re-enter once the cooldown has elapsed, then take profit.
	process(t, e, tick(sellAt.Add(31*time.Minute), "0.940", "0.960"))
	events := process(t, e, tick(sellAt.Add(45*time.Minute), "0.955", "0.960"))
	if len(events) != 1 || events[0].Kind != types.SignalSell {
		t.Fatalf("events = %+v, want one SELL", events)
	}
	if !events[0].PnL.IsPositive() {
		t.Fatalf("PnL = %s, want positive", events[0].PnL)
	}
	if got := e.State().LastLossTime; got != nil {
		t.Errorf("LastLossTime = %v after a winning exit, want nil", got)
	}
}

func TestProcessIdempotentOnTimestamp(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	e := newEngine(t, st)

	s := tick(t0, "0.980", "1.000")
	if events := process(t, e, s); len(events) != 1 {
		t.Fatalf("first Process emitted %d events, want 1", len(events))
	}
	if events := process(t, e, s); len(events) != 0 {
		t.Errorf("replayed sample emitted %d events, want 0", len(events))
	}
	if events := process(t, e, tick(t0.Add(-time.Minute), "0.900", "1.000")); len(events) != 0 {
		t.Errorf("older sample emitted %d events, want 0", len(events))
	}
}

func TestColdStartEmptyStore(t *testing.T) {
	t.Parallel()

	e := newEngine(t, store.NewMemory())

	state := e.State()
	if state.Position != types.PositionFlat {
		t.Errorf("Position = %s, want flat", state.Position)
	}
	if !state.Capital.Equal(decimal.RequireFromString("12800")) {
		t.Errorf("Capital = %s, want initial 12800", state.Capital)
	}
}

func TestColdStartResumesOpenPosition(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	st.AppendTradeSignal(types.TradeSignal{
		TS:             t0,
		SignalType:     types.SignalBuy,
		Price:          decimal.RequireFromString("0.980"),
		UpdatedCapital: decimal.RequireFromString("12748.8"),
	})
	st.AppendSample(tick(t0.Add(time.Minute), "0.981", "1.000"))

	e := newEngine(t, st)

	state := e.State()
	if state.Position != types.PositionLong {
		t.Fatalf("Position = %s, want long", state.Position)
	}
	if !state.EntryPrice.Equal(decimal.RequireFromString("0.980")) {
		t.Errorf("EntryPrice = %s, want 0.980", state.EntryPrice)
	}
	if !state.Capital.Equal(decimal.RequireFromString("12748.8")) {
		t.Errorf("Capital = %s, want 12748.8", state.Capital)
	}
	if want := decimal.RequireFromString("0.9751"); !state.TrailingStop.Equal(want) {
		t.Errorf("TrailingStop = %s, want re-anchored %s", state.TrailingStop, want)
	}
	if !state.LastProcessed.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastProcessed = %v, want latest sample ts", state.LastProcessed)
	}
}

func TestColdStartIgnoresCorruptSnapshot(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	// Long with no entry price violates the snapshot invariants.
	st.SaveBotState(types.BotState{
		Capital:  decimal.RequireFromString("100"),
		Position: types.PositionLong,
	})

	e := newEngine(t, st)
	if got := e.State().Position; got != types.PositionFlat {
		t.Errorf("Position after corrupt snapshot = %s, want flat", got)
	}
}

func TestTimeHeldString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Second, "0h 1m 30s"},
		{time.Hour + 23*time.Minute + 45*time.Second, "1h 23m 45s"},
		{25 * time.Hour, "25h 0m 0s"},
	}
	for _, tt := range tests {
		if got := TimeHeldString(tt.d); got != tt.want {
			t.Errorf("TimeHeldString(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
