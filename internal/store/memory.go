package store

import (
	"sync"
	"time"

	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

// Memory is a map-backed Store used by tests and the file-less fallback
// backend. Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	samples    []types.Sample
	state      *types.BotState
	signals    []types.TradeSignal
	activities []types.Activity
	portfolios map[int64]types.Portfolio
	alerts     map[int64]types.PriceAlert
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		portfolios: make(map[int64]types.Portfolio),
		alerts:     make(map[int64]types.PriceAlert),
	}
}

func (m *Memory) AppendSample(s types.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.samples) + 1)
	m.samples = append(m.samples, s)
	return nil
}

func (m *Memory) LatestSample(symbol string) (types.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.samples) - 1; i >= 0; i-- {
		if m.samples[i].Symbol == symbol {
			return m.samples[i], nil
		}
	}
	return types.Sample{}, ErrNotFound
}

func (m *Memory) SamplesSince(symbol string, t0 time.Time) ([]types.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Sample
	for _, s := range m.samples {
		if s.Symbol == symbol && !s.TS.Before(t0) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) SaveBotState(st types.BotState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.ID = 1
	m.state = &st
	return nil
}

func (m *Memory) LoadBotState() (types.BotState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return types.BotState{}, ErrNotFound
	}
	return *m.state, nil
}

func (m *Memory) AppendTradeSignal(sig types.TradeSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig.ID = int64(len(m.signals) + 1)
	m.signals = append(m.signals, sig)
	return nil
}

func (m *Memory) LatestTradeSignal() (types.TradeSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.signals) == 0 {
		return types.TradeSignal{}, ErrNotFound
	}
	return m.signals[len(m.signals)-1], nil
}

func (m *Memory) LatestBuySignal() (types.TradeSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.signals) - 1; i >= 0; i-- {
		if m.signals[i].SignalType == types.SignalBuy {
			return m.signals[i], nil
		}
	}
	return types.TradeSignal{}, ErrNotFound
}

func (m *Memory) AppendActivity(a types.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.activities) + 1)
	m.activities = append(m.activities, a)
	return nil
}

func (m *Memory) LatestActivity(kind types.ActivityKind) (types.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].ActivityType == kind {
			return m.activities[i], nil
		}
	}
	return types.Activity{}, ErrNotFound
}

func (m *Memory) GetPortfolio(chatID int64) (types.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.portfolios[chatID]
	if !ok {
		return types.Portfolio{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) PutPortfolio(p types.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[p.ChatID] = p
	return nil
}

func (m *Memory) AllPortfolios() ([]types.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Portfolio, 0, len(m.portfolios))
	for _, p := range m.portfolios {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) GetAlert(chatID int64) (types.PriceAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[chatID]
	if !ok {
		return types.PriceAlert{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) PutAlert(a types.PriceAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ChatID] = a
	return nil
}

func (m *Memory) DeleteAlert(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, chatID)
	return nil
}

func (m *Memory) AllAlerts() ([]types.PriceAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.PriceAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	return out, nil
}
