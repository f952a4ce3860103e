package collector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"CryptoSentinel/internal/model"
)

// MockFetcher returns controllable data for development and testing. With
// Quotes unset it random-walks a synthetic universe seeded by Seed.
type MockFetcher struct {
	Quotes []model.Quote
	Err    error
	Seed   int64

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	calls  int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many times FetchQuotes was invoked.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) FetchQuotes(_ context.Context, limit int) ([]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Quotes != nil {
		out := m.Quotes
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return append([]model.Quote(nil), out...), nil
	}
	return m.walk(limit), nil
}

func (m *MockFetcher) walk(limit int) []model.Quote {
	if limit <= 0 {
		limit = 20
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(m.Seed))
		m.prices = make(map[string]float64)
	}
	quotes := make([]model.Quote, limit)
	for i := range quotes {
		sym := fmt.Sprintf("MOCK%d", i)
		p, ok := m.prices[sym]
		if !ok {
			p = 1 + m.rng.Float64()*1000
		}
		p *= 1 + (m.rng.Float64()-0.48)*0.04
		m.prices[sym] = p
		quotes[i] = model.Quote{Symbol: sym, Price: p, Volume24h: 1e6 * (1 + m.rng.Float64())}
	}
	return quotes
}
