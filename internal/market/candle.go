package market

import "time"

// Candle is one OHLC bar. Series are always ordered oldest-first; swing
// detection and indicator math depend on that ordering.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Time  time.Time
}

// Granularity is a candle duration in seconds, mirroring the brokerage API.
type Granularity int

const (
	Gran1m  Granularity = 60
	Gran5m  Granularity = 300
	Gran1h  Granularity = 3600
	Gran4h  Granularity = 14400
	Gran1d  Granularity = 86400
	Gran1w  Granularity = 604800
)

// Closes extracts closing prices, oldest-first.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// LastClosed returns the most recent fully closed bar. The feed may include
// a still-forming bar at the tail; callers that need closed-bar values pass
// includesForming=true to skip it.
func LastClosed(cs []Candle, includesForming bool) (Candle, bool) {
	n := len(cs)
	if includesForming {
		n--
	}
	if n <= 0 {
		return Candle{}, false
	}
	return cs[n-1], true
}
