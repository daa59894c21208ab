package market

import "context"

// Fetcher supplies OHLC history for a symbol. Implementations talk to the
// brokerage feed; tests use the mock in this package.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol string, gran Granularity, count int) ([]Candle, error)
}

// AccountInfo is a point-in-time account snapshot used for stake sizing.
// Values are re-queried each cycle; nothing here is cached across cycles.
type AccountInfo struct {
	Balance  float64
	Currency string
}

// AccountReader exposes the read-only account queries the sizing code needs.
type AccountReader interface {
	Account(ctx context.Context) (AccountInfo, error)
}
