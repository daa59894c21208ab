package market

import (
	"context"
	"fmt"
)

// MockFetcher serves canned candle series keyed by symbol and granularity.
// Deterministic; used by strategy and controller tests.
type MockFetcher struct {
	Series map[string]map[Granularity][]Candle
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{Series: make(map[string]map[Granularity][]Candle)}
}

// Set installs a series for a symbol/granularity pair.
func (m *MockFetcher) Set(symbol string, gran Granularity, cs []Candle) {
	if m.Series[symbol] == nil {
		m.Series[symbol] = make(map[Granularity][]Candle)
	}
	m.Series[symbol][gran] = cs
}

func (m *MockFetcher) FetchCandles(_ context.Context, symbol string, gran Granularity, count int) ([]Candle, error) {
	bySym, ok := m.Series[symbol]
	if !ok {
		return nil, fmt.Errorf("mock: no series for %s", symbol)
	}
	cs, ok := bySym[gran]
	if !ok {
		return nil, fmt.Errorf("mock: no series for %s gran %d", symbol, gran)
	}
	if count > 0 && len(cs) > count {
		cs = cs[len(cs)-count:]
	}
	return cs, nil
}
