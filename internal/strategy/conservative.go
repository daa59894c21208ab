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

type trend int

const (
	trendNeutral trend = iota
	trendBullish
	trendBearish
)

func (t trend) String() string {
	switch t {
	case trendBullish:
		return "BULLISH"
	case trendBearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// Conservative is the top-down structure strategy. Direction requires the
// weekly and daily swing-structure trends to agree; disagreement or a
// neutral reading on either timeframe is a hard veto. Entry quality is then
// gated by execution-timeframe ADX and RSI, and TP/SL come from the nearest
// structure levels on the 4h window.
type Conservative struct {
	fetcher market.Fetcher
	params  config.ConservativeParams
	symbols []string
}

func NewConservative(fetcher market.Fetcher, params config.ConservativeParams, symbols, blocked []string) *Conservative {
	return &Conservative{
		fetcher: fetcher,
		params:  params,
		symbols: filterBlocked(symbols, blocked),
	}
}

func (c *Conservative) Name() string      { return "conservative" }
func (c *Conservative) Symbols() []string { return c.symbols }

func (c *Conservative) Evaluate(ctx context.Context, symbol string) (Signal, error) {
	weekly, err := c.fetcher.FetchCandles(ctx, symbol, market.Gran1w, 60)
	if err != nil {
		return none(symbol, "weekly data unavailable"), nil
	}
	daily, err := c.fetcher.FetchCandles(ctx, symbol, market.Gran1d, 60)
	if err != nil {
		return none(symbol, "daily data unavailable"), nil
	}

	weeklyTrend := c.trendOf(weekly)
	dailyTrend := c.trendOf(daily)

	var dir Direction
	switch {
	case weeklyTrend == trendBullish && dailyTrend == trendBullish:
		dir = Buy
	case weeklyTrend == trendBearish && dailyTrend == trendBearish:
		dir = Sell
	default:
		return none(symbol, fmt.Sprintf("trend conflict: weekly=%s daily=%s", weeklyTrend, dailyTrend)), nil
	}

	exec, err := c.fetcher.FetchCandles(ctx, symbol, market.Gran1h, 120)
	if err != nil || len(exec) == 0 {
		return none(symbol, "execution data unavailable"), nil
	}

	highs, lows, closes := split(exec)
	adx := indicators.ADX(highs, lows, closes, 14)
	if adx < c.params.ADXFloor {
		return none(symbol, fmt.Sprintf("ADX %.1f below floor %.1f", adx, c.params.ADXFloor)), nil
	}

	rsi := indicators.RSI(closes, 14)
	if dir == Buy && (rsi < c.params.RSIBuyMin || rsi > c.params.RSIBuyMax) {
		return none(symbol, fmt.Sprintf("RSI %.1f outside buy band [%.0f, %.0f]", rsi, c.params.RSIBuyMin, c.params.RSIBuyMax)), nil
	}
	if dir == Sell && (rsi < c.params.RSISellMin || rsi > c.params.RSISellMax) {
		return none(symbol, fmt.Sprintf("RSI %.1f outside sell band [%.0f, %.0f]", rsi, c.params.RSISellMin, c.params.RSISellMax)), nil
	}

	entry := closes[len(closes)-1]

	structure, err := c.fetcher.FetchCandles(ctx, symbol, market.Gran4h, 120)
	if err != nil || len(structure) == 0 {
		return none(symbol, "structure data unavailable"), nil
	}
	tp, sl := c.levelsFor(dir, entry, structure)

	rr := riskReward(dir, entry, tp, sl)
	score := c.score(adx, rsi, dir)

	sig := Signal{
		Symbol:        symbol,
		Direction:     dir,
		Score:         score,
		EntryPrice:    entry,
		TakeProfit:    tp,
		StopLoss:      sl,
		RiskReward:    rr,
		MinRiskReward: c.params.MinRiskReward,
		Reason:        fmt.Sprintf("weekly+daily %s, ADX %.1f, RSI %.1f", weeklyTrend, adx, rsi),
		BarTime:       exec[len(exec)-1].Time,
	}
	log.Printf("conservative: %s %s score=%.1f rr=%.2f", symbol, dir, score, rr)
	return sig, nil
}

// trendOf classifies swing structure: the two most recent swing highs and
// the two most recent swing lows both rising means BULLISH, both falling
// means BEARISH, anything else NEUTRAL.
func (c *Conservative) trendOf(cs []market.Candle) trend {
	highs, lows, _ := split(cs)
	sh := indicators.LastN(indicators.SwingHighs(highs, c.params.SwingLookback), 2)
	sl := indicators.LastN(indicators.SwingLows(lows, c.params.SwingLookback), 2)
	if len(sh) < 2 || len(sl) < 2 {
		return trendNeutral
	}
	highsRising := sh[1].Price > sh[0].Price
	lowsRising := sl[1].Price > sl[0].Price
	if highsRising && lowsRising {
		return trendBullish
	}
	if !highsRising && !lowsRising {
		return trendBearish
	}
	return trendNeutral
}

// levelsFor derives TP from the nearest structure level beyond a minimum
// distance in the trade direction and SL from the nearest opposing swing,
// with a percentage fallback when the window holds no qualifying level.
// SL distance is clamped to the configured maximum.
func (c *Conservative) levelsFor(dir Direction, entry float64, structure []market.Candle) (tp, sl float64) {
	highs, lows, _ := split(structure)
	swingHighs := indicators.SwingHighs(highs, c.params.SwingLookback)
	swingLows := indicators.SwingLows(lows, c.params.SwingLookback)

	minTP := entry * c.params.MinTPDistancePct / 100
	fallback := entry * c.params.LevelFallbackPct / 100
	maxSL := entry * c.params.MaxSLDistancePct / 100

	if dir == Buy {
		tp = nearestAbove(swingHighs, entry+minTP)
		if tp == 0 {
			tp = entry + fallback
		}
		sl = nearestBelow(swingLows, entry)
		if sl == 0 || entry-sl > maxSL {
			sl = entry - maxSL
		}
	} else {
		tp = nearestBelow(swingLows, entry-minTP)
		if tp == 0 {
			tp = entry - fallback
		}
		sl = nearestAbove(swingHighs, entry)
		if sl == 0 || sl-entry > maxSL {
			sl = entry + maxSL
		}
	}
	return tp, sl
}

func (c *Conservative) score(adx, rsi float64, dir Direction) float64 {
	score := 7.0
	if adx >= c.params.ADXFloor+10 {
		score++
	}
	mid := (c.params.RSIBuyMin + c.params.RSIBuyMax) / 2
	if dir == Sell {
		mid = (c.params.RSISellMin + c.params.RSISellMax) / 2
	}
	if math.Abs(rsi-mid) < 5 {
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}

// nearestAbove returns the lowest swing price at or above the floor, 0 when
// none qualifies.
func nearestAbove(points []indicators.SwingPoint, floor float64) float64 {
	best := 0.0
	for _, p := range points {
		if p.Price >= floor && (best == 0 || p.Price < best) {
			best = p.Price
		}
	}
	return best
}

// nearestBelow returns the highest swing price at or below the ceiling.
func nearestBelow(points []indicators.SwingPoint, ceiling float64) float64 {
	best := 0.0
	for _, p := range points {
		if p.Price <= ceiling && p.Price > best {
			best = p.Price
		}
	}
	return best
}

func riskReward(dir Direction, entry, tp, sl float64) float64 {
	risk := math.Abs(entry - sl)
	if risk == 0 {
		return 0
	}
	return math.Abs(tp-entry) / risk
}

func split(cs []market.Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(cs))
	lows = make([]float64, len(cs))
	closes = make([]float64, len(cs))
	for i, c := range cs {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}

func filterBlocked(symbols, blocked []string) []string {
	if len(blocked) == 0 {
		return symbols
	}
	blockedSet := make(map[string]struct{}, len(blocked))
	for _, b := range blocked {
		blockedSet[b] = struct{}{}
	}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := blockedSet[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
