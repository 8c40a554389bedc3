// Package chart renders candlestick charts for the scheduled summary
// posts.
//
// Samples are resampled into 15-minute OHLC candles aligned to UTC
// quarter-hours, overlaid with SMA-5 and EMA-21 of the close, and drawn
// as a dark-theme PNG. This is the one place decimals become float64:
// rendering precision is bounded by pixels anyway.
package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

const (
	candlePeriod   = 15 * time.Minute
	smaWindow      = 5
	emaWindow      = 21
	filePrefix     = "xrp_candlestick_chart_"
	fileTimeLayout = "20060102_150405"
)

// now is swapped out in tests so filenames are deterministic.
var now = time.Now

var (
	bgColor   = color.RGBA{R: 18, G: 18, B: 24, A: 255}
	gridColor = color.RGBA{R: 70, G: 70, B: 80, A: 255}
	textColor = color.RGBA{R: 220, G: 220, B: 225, A: 255}
	upColor   = color.RGBA{R: 0, G: 180, B: 120, A: 255}
	downColor = color.RGBA{R: 220, G: 60, B: 70, A: 255}
	smaColor  = color.RGBA{R: 80, G: 160, B: 255, A: 255}
	emaColor  = color.RGBA{R: 255, G: 180, B: 60, A: 255}
)

// Candle is one OHLC bucket.
type Candle struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Resample buckets samples into 15-minute candles aligned to UTC
// quarter-hours. Samples must be in ascending timestamp order; empty
// buckets produce no candle.
func Resample(samples []types.Sample) []Candle {
	var out []Candle
	for _, s := range samples {
		price, _ := s.LastPrice.Float64()
		vol, _ := s.Volume.Float64()
		start := s.TS.UTC().Truncate(candlePeriod)

		if n := len(out); n > 0 && out[n-1].Start.Equal(start) {
			c := &out[n-1]
			c.High = math.Max(c.High, price)
			c.Low = math.Min(c.Low, price)
			c.Close = price
			c.Volume += vol
			continue
		}
		out = append(out, Candle{
			Start: start, Open: price, High: price, Low: price, Close: price, Volume: vol,
		})
	}
	return out
}

// SMA returns the simple moving average of values; the first window−1
// entries are NaN.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// EMA returns the exponential moving average seeded with the SMA of the
// first window values; earlier entries are NaN.
func EMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if len(values) < window {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	var seed float64
	for i := 0; i < window; i++ {
		out[i] = math.NaN()
		seed += values[i]
	}
	seed /= float64(window)
	out[window-1] = seed

	k := 2.0 / float64(window+1)
	prev := seed
	for i := window; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// Filename returns the chart filename for a render timestamp.
func Filename(t time.Time) string {
	return filePrefix + t.UTC().Format(fileTimeLayout) + ".png"
}

// Render draws the candlestick chart into dir and returns the file
// path.
func Render(samples []types.Sample, dir string) (string, error) {
	candles := Resample(samples)
	if len(candles) == 0 {
		return "", fmt.Errorf("chart: no samples to render")
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	p := plot.New()
	p.Title.Text = "XRP/USD 15m — @XRPriceAlerts"
	p.X.Label.Text = "Time (UTC)"
	p.Y.Label.Text = "Price (USD)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04"}
	applyDarkTheme(p)

	p.Add(&candlesticks{candles: candles})

	if line := indicatorLine(candles, SMA(closes, smaWindow), smaColor, nil); line != nil {
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("SMA-%d", smaWindow), line)
	}
	if line := indicatorLine(candles, EMA(closes, emaWindow), emaColor, []vg.Length{vg.Points(4), vg.Points(3)}); line != nil {
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("EMA-%d", emaWindow), line)
	}

	path := filepath.Join(dir, Filename(now()))
	if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}
	return path, nil
}

// Cleanup removes chart files older than maxAgeDays and returns how
// many were deleted.
func Cleanup(dir string, maxAgeDays int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.png"))
	if err != nil {
		return 0, fmt.Errorf("glob charts: %w", err)
	}

	cutoff := now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	deleted := 0
	for _, path := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), filePrefix), ".png")
		created, err := time.Parse(fileTimeLayout, stamp)
		if err != nil {
			continue
		}
		if created.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("remove chart: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

func applyDarkTheme(p *plot.Plot) {
	p.BackgroundColor = bgColor
	p.Title.TextStyle.Color = textColor
	p.Legend.TextStyle.Color = textColor
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = gridColor
		axis.Label.TextStyle.Color = textColor
		axis.Tick.Color = gridColor
		axis.Tick.Label.Color = textColor
	}
}

// indicatorLine builds a line over the defined (non-NaN) tail of an
// indicator series.
func indicatorLine(candles []Candle, values []float64, c color.Color, dashes []vg.Length) *plotter.Line {
	var pts plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(candles[i].Start.Unix()), Y: v})
	}
	if len(pts) < 2 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Dashes = dashes
	return line
}

// candlesticks draws OHLC candles: a wick line from low to high and a
// filled body between open and close.
type candlesticks struct {
	candles []Candle
}

func (cs *candlesticks) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	halfWidth := vg.Points(3)

	for _, cd := range cs.candles {
		x := trX(float64(cd.Start.Unix()))

		fill := upColor
		if cd.Close < cd.Open {
			fill = downColor
		}

		wick := draw.LineStyle{Color: fill, Width: vg.Points(1)}
		c.StrokeLine2(wick, x, trY(cd.Low), x, trY(cd.High))

		top, bottom := trY(math.Max(cd.Open, cd.Close)), trY(math.Min(cd.Open, cd.Close))
		c.FillPolygon(fill, []vg.Point{
			{X: x - halfWidth, Y: bottom},
			{X: x + halfWidth, Y: bottom},
			{X: x + halfWidth, Y: top},
			{X: x - halfWidth, Y: top},
		})
	}
}

func (cs *candlesticks) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, cd := range cs.candles {
		x := float64(cd.Start.Unix())
		xmin = math.Min(xmin, x)
		xmax = math.Max(xmax, x)
		ymin = math.Min(ymin, cd.Low)
		ymax = math.Max(ymax, cd.High)
	}
	return xmin, xmax, ymin, ymax
}
