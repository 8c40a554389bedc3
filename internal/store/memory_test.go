package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

func sample(ts time.Time, last string) types.Sample {
	return types.Sample{
		TS:        ts,
		Symbol:    "XRP",
		LastPrice: decimal.RequireFromString(last),
	}
}

func TestMemorySamples(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	t0 := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := m.LatestSample("XRP"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSample on empty store = %v, want ErrNotFound", err)
	}

	for i := 0; i < 5; i++ {
		if err := m.AppendSample(sample(t0.Add(time.Duration(i)*time.Minute), "1.00")); err != nil {
			t.Fatalf("AppendSample: %v", err)
		}
	}

	latest, err := m.LatestSample("XRP")
	if err != nil {
		t.Fatalf("LatestSample: %v", err)
	}
	if want := t0.Add(4 * time.Minute); !latest.TS.Equal(want) {
		t.Errorf("LatestSample TS = %v, want %v", latest.TS, want)
	}

	since, err := m.SamplesSince("XRP", t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(since) != 3 {
		t.Errorf("SamplesSince returned %d samples, want 3", len(since))
	}

	if got, _ := m.SamplesSince("BTC", t0); len(got) != 0 {
		t.Errorf("SamplesSince for other symbol returned %d, want 0", len(got))
	}
}

func TestMemoryBotState(t *testing.T) {
	t.Parallel()

	m := NewMemory()

	if _, err := m.LoadBotState(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadBotState on empty store = %v, want ErrNotFound", err)
	}

	st := types.BotState{
		Capital:  decimal.RequireFromString("12800"),
		Position: types.PositionFlat,
	}
	if err := m.SaveBotState(st); err != nil {
		t.Fatalf("SaveBotState: %v", err)
	}

	st.Position = types.PositionLong
	if err := m.SaveBotState(st); err != nil {
		t.Fatalf("SaveBotState: %v", err)
	}

	got, err := m.LoadBotState()
	if err != nil {
		t.Fatalf("LoadBotState: %v", err)
	}
	if got.Position != types.PositionLong {
		t.Errorf("Position = %s, want long (latest-wins)", got.Position)
	}
	if got.ID != 1 {
		t.Errorf("ID = %d, want 1", got.ID)
	}
}

func TestMemoryTradeSignals(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	t0 := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := m.LatestBuySignal(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestBuySignal on empty store = %v, want ErrNotFound", err)
	}

	m.AppendTradeSignal(types.TradeSignal{TS: t0, SignalType: types.SignalBuy, Price: decimal.RequireFromString("0.98")})
	m.AppendTradeSignal(types.TradeSignal{TS: t0.Add(time.Hour), SignalType: types.SignalSell, Price: decimal.RequireFromString("0.995")})

	latest, err := m.LatestTradeSignal()
	if err != nil {
		t.Fatalf("LatestTradeSignal: %v", err)
	}
	if latest.SignalType != types.SignalSell {
		t.Errorf("LatestTradeSignal type = %s, want SELL", latest.SignalType)
	}

	buy, err := m.LatestBuySignal()
	if err != nil {
		t.Fatalf("LatestBuySignal: %v", err)
	}
	if buy.Price.String() != "0.98" {
		t.Errorf("LatestBuySignal price = %s, want 0.98", buy.Price)
	}
}

func TestMemoryActivities(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	t0 := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	m.AppendActivity(types.Activity{TS: t0, ActivityType: types.ActivityHourlyUpdate, Price: decimal.RequireFromString("0.98")})
	m.AppendActivity(types.Activity{TS: t0.Add(time.Hour), ActivityType: types.ActivityHourlyUpdate, Price: decimal.RequireFromString("0.99")})
	m.AppendActivity(types.Activity{TS: t0, ActivityType: types.ActivityDailySummary, Price: decimal.RequireFromString("0.98")})

	hourly, err := m.LatestActivity(types.ActivityHourlyUpdate)
	if err != nil {
		t.Fatalf("LatestActivity: %v", err)
	}
	if !hourly.TS.Equal(t0.Add(time.Hour)) {
		t.Errorf("LatestActivity TS = %v, want %v", hourly.TS, t0.Add(time.Hour))
	}

	if _, err := m.LatestActivity(types.ActivityVolatilityAlert); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestActivity(volatility) = %v, want ErrNotFound", err)
	}
}

func TestMemoryPortfoliosAndAlerts(t *testing.T) {
	t.Parallel()

	m := NewMemory()

	if _, err := m.GetPortfolio(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPortfolio = %v, want ErrNotFound", err)
	}

	m.PutPortfolio(types.Portfolio{ChatID: 42, Capital: decimal.RequireFromString("1000"), Position: types.PositionFlat})
	m.PutPortfolio(types.Portfolio{ChatID: 43, Capital: decimal.RequireFromString("2000"), Position: types.PositionFlat})

	p, err := m.GetPortfolio(42)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if p.Capital.String() != "1000" {
		t.Errorf("Capital = %s, want 1000", p.Capital)
	}

	all, _ := m.AllPortfolios()
	if len(all) != 2 {
		t.Errorf("AllPortfolios len = %d, want 2", len(all))
	}

	m.PutAlert(types.PriceAlert{ChatID: 42, TargetPrice: decimal.RequireFromString("1.05")})
	if a, err := m.GetAlert(42); err != nil || a.TargetPrice.String() != "1.05" {
		t.Errorf("GetAlert = (%v, %v), want target 1.05", a, err)
	}

	m.DeleteAlert(42)
	if _, err := m.GetAlert(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAlert after delete = %v, want ErrNotFound", err)
	}
}
