// Package ticker implements the Bitstamp public ticker client.
//
// One method matters: Fetch issues a single GET against the configured
// spot ticker endpoint and normalizes the response into a types.Sample.
// All numeric fields arrive as JSON strings and are parsed with
// shopspring/decimal; there is no internal retry, that is the ingestor's
// job.
package ticker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("ticker: network error")
	// ErrMalformed covers responses that parse but fail validation.
	ErrMalformed = errors.New("ticker: malformed response")
)

// tickerResponse mirrors the Bitstamp v2 ticker payload. Every numeric
// field is a string.
type tickerResponse struct {
	Timestamp     string `json:"timestamp"`
	Last          string `json:"last"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	VWAP          string `json:"vwap"`
	Volume        string `json:"volume"`
	Bid           string `json:"bid"`
	Ask           string `json:"ask"`
	PercentChange string `json:"percent_change_24"`
}

// Client fetches spot ticker samples from the exchange.
type Client struct {
	http   *resty.Client
	symbol string
}

// NewClient creates a ticker client for the configured endpoint.
func NewClient(cfg config.TickerConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		symbol: cfg.Symbol,
	}
}

// Fetch retrieves one ticker observation. The sample timestamp is the
// exchange's own epoch timestamp, truncated to whole seconds in UTC.
func (c *Client) Fetch(ctx context.Context) (types.Sample, error) {
	var body tickerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get("")
	if err != nil {
		return types.Sample{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Sample{}, fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode(), resp.String())
	}
	return c.normalize(body)
}

func (c *Client) normalize(body tickerResponse) (types.Sample, error) {
	last, err := decimal.NewFromString(body.Last)
	if err != nil {
		return types.Sample{}, fmt.Errorf("%w: last %q: %v", ErrMalformed, body.Last, err)
	}
	if !last.IsPositive() {
		return types.Sample{}, fmt.Errorf("%w: non-positive last price %s", ErrMalformed, last)
	}

	// The strategy divides by vwap, so it is validated like last.
	vwap, err := decimal.NewFromString(body.VWAP)
	if err != nil {
		return types.Sample{}, fmt.Errorf("%w: vwap %q: %v", ErrMalformed, body.VWAP, err)
	}

	var epoch int64
	if _, err := fmt.Sscan(body.Timestamp, &epoch); err != nil || epoch <= 0 {
		return types.Sample{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, body.Timestamp)
	}

	s := types.Sample{
		TS:        time.Unix(epoch, 0).UTC(),
		Symbol:    c.symbol,
		LastPrice: last,
		VWAP:      vwap,
	}

	// Fields the strategy never reads are best-effort: a missing bid
	// does not drop the observation.
	s.OpenPrice = parseOrZero(body.Open)
	s.HighPrice = parseOrZero(body.High)
	s.LowPrice = parseOrZero(body.Low)
	s.Volume = parseOrZero(body.Volume)
	s.Bid = parseOrZero(body.Bid)
	s.Ask = parseOrZero(body.Ask)
	s.PctChange24h = parseOrZero(body.PercentChange)

	return s, nil
}

func parseOrZero(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
