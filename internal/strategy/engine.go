// Package strategy implements the single-position trading FSM and the
// per-user portfolio tracker.
//
// The engine consumes stored samples one at a time and emits trade
// events. State machine:
//
//	flat --(deviation ≤ oversold, cooldown clear)--> long
//	long --(trailing stop | take profit | stop loss)--> flat
//
// A buy is evaluated before an exit on the same sample, so one sample
// can in principle produce both events. Every mutation persists the
// snapshot, and samples at or before the last processed timestamp are
// no-ops, so replays after a restart are safe.
package strategy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

var one = decimal.NewFromInt(1)

// Engine is the trading FSM. Not safe for concurrent use: the router
// drives a single instance serially.
type Engine struct {
	store  store.Store
	cfg    config.StrategyConfig
	symbol string
	logger *slog.Logger
	st     types.BotState
}

// New restores the engine from the persisted snapshot, falling back to
// ledger reconstruction when the snapshot is missing or violates its
// invariants.
func New(st store.Store, cfg config.StrategyConfig, symbol string, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		store:  st,
		cfg:    cfg,
		symbol: symbol,
		logger: logger.With("component", "strategy"),
	}

	state, err := st.LoadBotState()
	switch {
	case err == nil && validState(state):
		e.st = state
		e.logger.Info("state restored", "position", state.Position, "capital", state.Capital)
	case err != nil && err != store.ErrNotFound:
		return nil, fmt.Errorf("load state: %w", err)
	default:
		if err := e.recover(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// recover rebuilds the snapshot from the trade ledger. A trailing BUY
// row means the previous run died holding a position; it is resumed
// with the trailing stop re-anchored at the entry price.
func (e *Engine) recover() error {
	e.st = types.BotState{
		Capital:  e.cfg.InitialCapital,
		Position: types.PositionFlat,
	}

	sig, err := e.store.LatestTradeSignal()
	switch {
	case err == store.ErrNotFound:
	case err != nil:
		return fmt.Errorf("latest trade signal: %w", err)
	default:
		e.st.Capital = sig.UpdatedCapital
		if sig.SignalType == types.SignalBuy {
			// The open entry is the newest BUY row.
			buy, err := e.store.LatestBuySignal()
			if err != nil {
				return fmt.Errorf("latest buy signal: %w", err)
			}
			entry := buy.Price
			trail := entry.Mul(one.Sub(e.cfg.TrailPct))
			highest := entry
			entryTime := buy.TS
			e.st.Position = types.PositionLong
			e.st.EntryPrice = &entry
			e.st.TrailingStop = &trail
			e.st.HighestPrice = &highest
			e.st.EntryTime = &entryTime
		}
	}

	// Never reprocess history: start from the newest stored sample.
	if latest, err := e.store.LatestSample(e.symbol); err == nil {
		e.st.LastProcessed = latest.TS
	}

	e.logger.Info("state reconstructed from ledger",
		"position", e.st.Position, "capital", e.st.Capital)
	return e.store.SaveBotState(e.st)
}

func validState(st types.BotState) bool {
	if !st.Capital.IsPositive() {
		return false
	}
	switch st.Position {
	case types.PositionFlat:
		return st.EntryPrice == nil && st.TrailingStop == nil && st.HighestPrice == nil
	case types.PositionLong:
		return st.EntryPrice != nil && st.TrailingStop != nil && st.HighestPrice != nil &&
			st.TrailingStop.IsPositive() &&
			st.TrailingStop.LessThanOrEqual(*st.HighestPrice) &&
			st.EntryPrice.LessThanOrEqual(*st.HighestPrice)
	default:
		return false
	}
}

// State returns a copy of the current snapshot.
func (e *Engine) State() types.BotState { return e.st }

// Process runs one sample through the FSM and returns the emitted
// events. Samples at or before the last processed timestamp are
// ignored.
func (e *Engine) Process(s types.Sample) ([]types.TradeEvent, error) {
	if !s.TS.After(e.st.LastProcessed) {
		return nil, nil
	}

	var events []types.TradeEvent
	if e.st.Position == types.PositionFlat {
		if ev, ok := e.tryEnter(s); ok {
			events = append(events, ev)
		}
	}
	if e.st.Position == types.PositionLong {
		if ev, ok := e.tryExit(s); ok {
			events = append(events, ev)
		}
	}

	e.st.LastProcessed = s.TS
	if err := e.store.SaveBotState(e.st); err != nil {
		return events, fmt.Errorf("save state: %w", err)
	}
	return events, nil
}

// tryEnter opens a position when the price is sufficiently below vwap
// and the post-loss cooldown has elapsed. The cooldown clock is the
// sample timestamp, not wall time, so replays behave identically.
func (e *Engine) tryEnter(s types.Sample) (types.TradeEvent, bool) {
	if !s.VWAP.IsPositive() {
		return types.TradeEvent{}, false
	}
	deviation := s.LastPrice.Sub(s.VWAP).Div(s.VWAP)
	if deviation.GreaterThan(e.cfg.OversoldThreshold) {
		return types.TradeEvent{}, false
	}
	if e.st.LastLossTime != nil && s.TS.Sub(*e.st.LastLossTime) < e.cfg.LossCooldown {
		e.logger.Debug("buy suppressed by cooldown", "ts", s.TS)
		return types.TradeEvent{}, false
	}

	fee := e.st.Capital.Mul(e.cfg.FeePct)
	e.st.Capital = e.st.Capital.Sub(fee)

	entry := s.LastPrice
	trail := entry.Mul(one.Sub(e.cfg.TrailPct))
	highest := entry
	entryTime := s.TS
	e.st.Position = types.PositionLong
	e.st.EntryPrice = &entry
	e.st.TrailingStop = &trail
	e.st.HighestPrice = &highest
	e.st.EntryTime = &entryTime

	if err := e.store.AppendTradeSignal(types.TradeSignal{
		TS:             s.TS,
		SignalType:     types.SignalBuy,
		Price:          s.LastPrice,
		UpdatedCapital: e.st.Capital,
	}); err != nil {
		e.logger.Error("trade ledger append failed", "error", err)
	}

	e.logger.Info("position opened",
		"price", entry, "deviation", deviation, "fee", fee, "capital", e.st.Capital)

	return types.TradeEvent{
		Kind:    types.SignalBuy,
		At:      s.TS,
		Price:   s.LastPrice,
		Fee:     fee,
		Capital: e.st.Capital,
	}, true
}

// tryExit ratchets the trailing stop on new highs, then closes the
// position when the trailing stop, take profit, or stop loss is hit.
func (e *Engine) tryExit(s types.Sample) (types.TradeEvent, bool) {
	last := s.LastPrice
	if last.GreaterThan(*e.st.HighestPrice) {
		highest := last
		trail := highest.Mul(one.Sub(e.cfg.TrailPct))
		e.st.HighestPrice = &highest
		if trail.GreaterThan(*e.st.TrailingStop) {
			e.st.TrailingStop = &trail
		}
	}

	entry := *e.st.EntryPrice
	hitTrail := last.LessThanOrEqual(*e.st.TrailingStop)
	hitTakeProfit := last.GreaterThanOrEqual(entry.Mul(one.Add(e.cfg.TakeProfit)))
	hitStopLoss := last.LessThanOrEqual(entry.Mul(one.Add(e.cfg.StopLoss)))
	if !hitTrail && !hitTakeProfit && !hitStopLoss {
		return types.TradeEvent{}, false
	}

	pct := last.Sub(entry).Div(entry)
	gross := e.st.Capital.Mul(pct)
	sellFee := e.st.Capital.Mul(e.cfg.FeePct)
	pnl := gross.Sub(sellFee)
	e.st.Capital = e.st.Capital.Add(pnl)

	held := s.TS.Sub(*e.st.EntryTime)
	heldSec := int64(held.Seconds())

	if pnl.IsNegative() {
		lossAt := s.TS
		e.st.LastLossTime = &lossAt
	} else {
		e.st.LastLossTime = nil
	}
	e.st.Position = types.PositionFlat
	e.st.EntryPrice = nil
	e.st.TrailingStop = nil
	e.st.HighestPrice = nil
	e.st.EntryTime = nil

	if err := e.store.AppendTradeSignal(types.TradeSignal{
		TS:             s.TS,
		SignalType:     types.SignalSell,
		Price:          last,
		ProfitLoss:     &pnl,
		PctChange:      &pct,
		TimeHeldSec:    &heldSec,
		UpdatedCapital: e.st.Capital,
	}); err != nil {
		e.logger.Error("trade ledger append failed", "error", err)
	}

	e.logger.Info("position closed",
		"price", last, "pnl", pnl, "held", held, "capital", e.st.Capital,
		"trail", hitTrail, "take_profit", hitTakeProfit, "stop_loss", hitStopLoss)

	return types.TradeEvent{
		Kind:      types.SignalSell,
		At:        s.TS,
		Price:     last,
		PnL:       pnl,
		PctChange: pct,
		Held:      held,
		Capital:   e.st.Capital,
	}, true
}

// TimeHeldString renders a held duration as "Xh Ym Zs" for messages.
func TimeHeldString(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
