package strategy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/pkg/config"
)

func scalpingParams() config.ScalpingParams {
	p := config.DefaultBot().Scalping
	// The staircase fixture runs ADX near 33; keep the ceiling clear of it.
	p.ADXCeiling = 40
	return p
}

// scalpSeries is a 1m staircase plus a live bar that repeats the signal
// bar's close shifted by drift.
func scalpSeries(moves []float64, drift float64) []market.Candle {
	cs := staircase(60, 100, moves)
	last := cs[len(cs)-1]
	live := last
	live.Time = last.Time.Add(time.Minute)
	live.Open = last.Close
	live.Close = last.Close + drift
	live.High = live.Close + 0.2
	live.Low = live.Close - 0.2
	return append(cs, live)
}

func TestScalpingBuySignal(t *testing.T) {
	f := market.NewMockFetcher()
	series := scalpSeries([]float64{1, 1, -1}, 0)
	f.Set("R_25", market.Gran1m, series)

	s := NewScalping(f, scalpingParams(), []string{"R_25"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_25")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != Buy {
		t.Fatalf("direction = %s (%s), want BUY", sig.Direction, sig.Reason)
	}
	entry := series[len(series)-1].Close
	if sig.EntryPrice != entry {
		t.Fatalf("entry = %v, want live price %v", sig.EntryPrice, entry)
	}
	if sig.TakeProfit <= entry || sig.StopLoss >= entry {
		t.Fatalf("levels on wrong side: tp %.4f sl %.4f entry %.4f", sig.TakeProfit, sig.StopLoss, entry)
	}
	// TP 3xATR against SL 2xATR is a fixed 1.5 ratio.
	if !approxEq(sig.RiskReward, 1.5) {
		t.Fatalf("rr = %.4f, want 1.5", sig.RiskReward)
	}
	// Decisions belong to the last closed bar, not the forming one.
	if !sig.BarTime.Equal(series[len(series)-2].Time) {
		t.Fatalf("bar time = %v, want signal bar %v", sig.BarTime, series[len(series)-2].Time)
	}
}

func TestScalpingSellSignal(t *testing.T) {
	f := market.NewMockFetcher()
	series := scalpSeries([]float64{-1, -1, 1}, 0)
	f.Set("R_75", market.Gran1m, series)

	s := NewScalping(f, scalpingParams(), []string{"R_75"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_75")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != Sell {
		t.Fatalf("direction = %s (%s), want SELL", sig.Direction, sig.Reason)
	}
	entry := sig.EntryPrice
	if sig.TakeProfit >= entry || sig.StopLoss <= entry {
		t.Fatalf("sell levels on wrong side: tp %.4f sl %.4f entry %.4f", sig.TakeProfit, sig.StopLoss, entry)
	}
}

// A live price that ran away from the signal bar is a stale entry.
func TestScalpingDriftGuard(t *testing.T) {
	f := market.NewMockFetcher()
	f.Set("R_25", market.Gran1m, scalpSeries([]float64{1, 1, -1}, 1.0))

	s := NewScalping(f, scalpingParams(), []string{"R_25"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_25")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != None || !strings.Contains(sig.Reason, "drift") {
		t.Fatalf("got %s (%s), want drift rejection", sig.Direction, sig.Reason)
	}
}

func TestScalpingADXCeilingRejects(t *testing.T) {
	p := scalpingParams()
	p.ADXCeiling = 25

	f := market.NewMockFetcher()
	f.Set("R_25", market.Gran1m, scalpSeries([]float64{1, 1, -1}, 0))

	s := NewScalping(f, p, []string{"R_25"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_25")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != None || !strings.Contains(sig.Reason, "ceiling") {
		t.Fatalf("got %s (%s), want ceiling rejection", sig.Direction, sig.Reason)
	}
}

func TestScalpingPerSymbolADXFloor(t *testing.T) {
	p := scalpingParams()
	p.SymbolADXFloor = map[string]float64{"R_25": 50}

	f := market.NewMockFetcher()
	f.Set("R_25", market.Gran1m, scalpSeries([]float64{1, 1, -1}, 0))

	s := NewScalping(f, p, []string{"R_25"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_25")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != None || !strings.Contains(sig.Reason, "below floor") {
		t.Fatalf("got %s (%s), want raised floor rejection", sig.Direction, sig.Reason)
	}
}

func TestScalpingFailsClosedWithoutData(t *testing.T) {
	s := NewScalping(market.NewMockFetcher(), scalpingParams(), []string{"R_25"}, nil)
	sig, err := s.Evaluate(context.Background(), "R_25")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Direction != None {
		t.Fatalf("direction = %s, want NONE", sig.Direction)
	}

	// Too few bars behaves the same as no bars.
	f := market.NewMockFetcher()
	f.Set("R_25", market.Gran1m, staircase(10, 100, []float64{1, 1, -1}))
	s = NewScalping(f, scalpingParams(), []string{"R_25"}, nil)
	sig, err = s.Evaluate(context.Background(), "R_25")
	if err != nil || sig.Direction != None {
		t.Fatalf("short series: direction = %s err = %v, want NONE nil", sig.Direction, err)
	}
}

func TestReversalPatterns(t *testing.T) {
	pin := market.Candle{Open: 100.9, Close: 100.8, High: 101, Low: 99}
	if !isPinBar(pin, Buy) {
		t.Fatal("long lower wick not read as bullish pin bar")
	}
	if isPinBar(pin, Sell) {
		t.Fatal("bullish pin bar read as bearish")
	}

	prev := market.Candle{Open: 101, Close: 100, High: 101.2, Low: 99.8}
	bar := market.Candle{Open: 99.5, Close: 101.5, High: 101.7, Low: 99.3}
	if !isEngulfing(prev, bar, Buy) {
		t.Fatal("bullish engulfing not detected")
	}
	if isEngulfing(prev, bar, Sell) {
		t.Fatal("bullish engulfing read as bearish")
	}
}
