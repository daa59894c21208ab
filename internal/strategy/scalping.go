package strategy

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/devpro-denny/R-25V1/internal/indicators"
	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/pkg/config"
)

// Scalping trades EMA(fast)/EMA(slow) crossovers on the 1m timeframe with
// ADX floor and ceiling gates, tightened RSI bands and a live-entry drift
// guard against stale signals. TP/SL are ATR multiples, not structure
// levels.
type Scalping struct {
	fetcher market.Fetcher
	params  config.ScalpingParams
	symbols []string
}

func NewScalping(fetcher market.Fetcher, params config.ScalpingParams, symbols, blocked []string) *Scalping {
	return &Scalping{
		fetcher: fetcher,
		params:  params,
		symbols: filterBlocked(symbols, blocked),
	}
}

func (s *Scalping) Name() string      { return "scalping" }
func (s *Scalping) Symbols() []string { return s.symbols }

func (s *Scalping) Evaluate(ctx context.Context, symbol string) (Signal, error) {
	candles, err := s.fetcher.FetchCandles(ctx, symbol, market.Gran1m, 120)
	if err != nil || len(candles) < s.params.EMASlow+2 {
		return none(symbol, "1m data unavailable"), nil
	}

	highs, lows, closes := split(candles)
	// The tail bar may still be forming; decide on the last closed bar and
	// keep the live price separately for the drift guard.
	livePrice := closes[len(closes)-1]
	closed := closes[:len(closes)-1]
	signalBar := candles[len(candles)-2]

	dir := s.emaDirection(closed)
	if dir == None {
		return none(symbol, "no EMA alignment"), nil
	}

	adx := indicators.ADX(highs, lows, closes, 14)
	floor := s.params.ADXFloor
	if f, ok := s.params.SymbolADXFloor[symbol]; ok && f > floor {
		floor = f
	}
	if adx < floor {
		return none(symbol, fmt.Sprintf("ADX %.1f below floor %.1f", adx, floor)), nil
	}
	if adx > s.params.ADXCeiling {
		return none(symbol, fmt.Sprintf("ADX %.1f above ceiling %.1f, trend exhausted", adx, s.params.ADXCeiling)), nil
	}

	rsi := indicators.RSI(closed, 14)
	if dir == Buy && (rsi < s.params.RSIUpMin || rsi > s.params.RSIUpMax) {
		return none(symbol, fmt.Sprintf("RSI %.1f outside up band [%.0f, %.0f]", rsi, s.params.RSIUpMin, s.params.RSIUpMax)), nil
	}
	if dir == Sell && (rsi < s.params.RSIDownMin || rsi > s.params.RSIDownMax) {
		return none(symbol, fmt.Sprintf("RSI %.1f outside down band [%.0f, %.0f]", rsi, s.params.RSIDownMin, s.params.RSIDownMax)), nil
	}

	atr := indicators.ATR(highs, lows, closes, 14)
	if atr <= 0 {
		return none(symbol, "ATR unavailable"), nil
	}

	// Stale-signal protection: reject entries that drifted too far from the
	// signal bar before this cycle got to them.
	if math.Abs(livePrice-signalBar.Close) > s.params.EntryDriftATR*atr {
		return none(symbol, fmt.Sprintf("entry drift %.4f exceeds %.2fxATR", math.Abs(livePrice-signalBar.Close), s.params.EntryDriftATR)), nil
	}

	entry := livePrice
	var tp, sl float64
	if dir == Buy {
		tp = entry + s.params.TPATRMult*atr
		sl = entry - s.params.SLATRMult*atr
	} else {
		tp = entry - s.params.TPATRMult*atr
		sl = entry + s.params.SLATRMult*atr
	}

	sig := Signal{
		Symbol:        symbol,
		Direction:     dir,
		Score:         s.score(candles, dir),
		EntryPrice:    entry,
		TakeProfit:    tp,
		StopLoss:      sl,
		RiskReward:    riskReward(dir, entry, tp, sl),
		MinRiskReward: s.params.MinRiskReward,
		Reason:        fmt.Sprintf("EMA%d/%d %s, ADX %.1f, RSI %.1f", s.params.EMAFast, s.params.EMASlow, dir, adx, rsi),
		BarTime:       signalBar.Time,
	}
	log.Printf("scalping: %s %s score=%.1f rr=%.2f", symbol, dir, sig.Score, sig.RiskReward)
	return sig, nil
}

// emaDirection reads trend from fast vs slow EMA on closed bars: a fresh
// crossover within the last few bars, or sustained alignment.
func (s *Scalping) emaDirection(closed []float64) Direction {
	fast := indicators.EMASeries(closed, s.params.EMAFast)
	slow := indicators.EMASeries(closed, s.params.EMASlow)
	if len(fast) == 0 || len(slow) == 0 {
		return None
	}
	offset := len(fast) - len(slow)
	if offset < 0 {
		return None
	}
	cur := len(slow) - 1
	above := fast[cur+offset] > slow[cur]

	const crossLookback = 5
	for i := 1; i <= crossLookback && cur-i >= 0; i++ {
		wasAbove := fast[cur-i+offset] > slow[cur-i]
		if above && !wasAbove {
			return Buy
		}
		if !above && wasAbove {
			return Sell
		}
	}
	// No fresh cross; accept sustained alignment with a rising/falling slow EMA.
	if cur >= 3 {
		slope := slow[cur] - slow[cur-3]
		if above && slope > 0 {
			return Buy
		}
		if !above && slope < 0 {
			return Sell
		}
	}
	return None
}

// score starts from a base confidence and rewards a reversal pattern on the
// signal bar (engulfing or pin bar).
func (s *Scalping) score(candles []market.Candle, dir Direction) float64 {
	score := 7.0
	if len(candles) >= 3 {
		prev := candles[len(candles)-3]
		bar := candles[len(candles)-2]
		if isEngulfing(prev, bar, dir) || isPinBar(bar, dir) {
			score += 1.5
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

func isEngulfing(prev, bar market.Candle, dir Direction) bool {
	if dir == Buy {
		return bar.Close > bar.Open && prev.Close < prev.Open &&
			bar.Close > prev.Open && bar.Open < prev.Close
	}
	return bar.Close < bar.Open && prev.Close > prev.Open &&
		bar.Close < prev.Open && bar.Open > prev.Close
}

func isPinBar(bar market.Candle, dir Direction) bool {
	full := bar.High - bar.Low
	if full <= 0 {
		return false
	}
	body := math.Abs(bar.Close - bar.Open)
	if body > full*0.35 {
		return false
	}
	lowerWick := math.Min(bar.Open, bar.Close) - bar.Low
	upperWick := bar.High - math.Max(bar.Open, bar.Close)
	if dir == Buy {
		return lowerWick >= full*0.6
	}
	return upperWick >= full*0.6
}
