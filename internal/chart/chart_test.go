package chart

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

func sampleAt(ts time.Time, last string) types.Sample {
	return types.Sample{TS: ts, Symbol: "XRP", LastPrice: decimal.RequireFromString(last)}
}

func TestResampleAlignsQuarterHours(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 8, 1, 12, 7, 0, 0, time.UTC)
	samples := []types.Sample{
		sampleAt(base, "1.00"),                     // 12:00 bucket
		sampleAt(base.Add(3*time.Minute), "1.05"),  // 12:00 bucket
		sampleAt(base.Add(6*time.Minute), "0.98"),  // 12:00 bucket
		sampleAt(base.Add(10*time.Minute), "1.02"), // 12:15 bucket
	}

	candles := Resample(samples)
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}

	first := candles[0]
	if want := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC); !first.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", first.Start, want)
	}
	if first.Open != 1.00 || first.High != 1.05 || first.Low != 0.98 || first.Close != 0.98 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 1.00/1.05/0.98/0.98",
			first.Open, first.High, first.Low, first.Close)
	}

	if want := time.Date(2025, 8, 1, 12, 15, 0, 0, time.UTC); !candles[1].Start.Equal(want) {
		t.Errorf("second Start = %v, want %v", candles[1].Start, want)
	}
}

func TestSMA(t *testing.T) {
	t.Parallel()

	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("leading entries = %v, want NaN", got[:2])
	}
	for i, want := range map[int]float64{2: 2, 3: 3, 4: 4} {
		if got[i] != want {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestEMA(t *testing.T) {
	t.Parallel()

	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("leading entries = %v, want NaN", got[:2])
	}
	if got[2] != 2 {
		t.Errorf("EMA seed = %v, want SMA 2", got[2])
	}
	// k = 0.5: 4·0.5 + 2·0.5 = 3, then 5·0.5 + 3·0.5 = 4.
	if got[3] != 3 || got[4] != 4 {
		t.Errorf("EMA tail = %v %v, want 3 4", got[3], got[4])
	}

	short := EMA([]float64{1, 2}, 3)
	for i, v := range short {
		if !math.IsNaN(v) {
			t.Errorf("EMA[%d] of short series = %v, want NaN", i, v)
		}
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 8, 1, 20, 3, 9, 0, time.UTC)
	if got, want := Filename(ts), "xrp_candlestick_chart_20250801_200309.png"; got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestRenderWritesPNG(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	var samples []types.Sample
	for i := 0; i < 180; i++ {
		price := decimal.NewFromFloat(1.0 + 0.01*math.Sin(float64(i)/10))
		samples = append(samples, types.Sample{
			TS: base.Add(time.Duration(i) * time.Minute), Symbol: "XRP", LastPrice: price,
		})
	}

	old := now
	now = func() time.Time { return base.Add(3 * time.Hour) }
	defer func() { now = old }()

	path, err := Render(samples, dir)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(path) != "xrp_candlestick_chart_20250801_150000.png" {
		t.Errorf("path = %q, want timestamped chart filename", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat chart: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart file is empty")
	}
}

func TestRenderNoSamples(t *testing.T) {
	if _, err := Render(nil, t.TempDir()); err == nil {
		t.Error("Render(nil) = nil error, want failure")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	ref := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

	oldFile := filepath.Join(dir, Filename(ref.Add(-8*24*time.Hour)))
	newFile := filepath.Join(dir, Filename(ref.Add(-time.Hour)))
	other := filepath.Join(dir, "keep.png")
	for _, f := range []string{oldFile, newFile, other} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	old := now
	now = func() time.Time { return ref }
	defer func() { now = old }()

	deleted, err := Cleanup(dir, 7)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old chart should be deleted")
	}
	for _, f := range []string{newFile, other} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("%s should survive cleanup: %v", filepath.Base(f), err)
		}
	}
}
