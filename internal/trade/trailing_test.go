package trade

import (
	"testing"

	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
)

// Tier table ordered highest trigger first, as LoadBot normalizes it.
func testTiers() []config.TrailingTier {
	return []config.TrailingTier{
		{TriggerPct: 40, TrailPct: 12},
		{TriggerPct: 25, TrailPct: 8},
	}
}

func TestProfitPct(t *testing.T) {
	tests := []struct {
		name  string
		dir   strategy.Direction
		entry float64
		price float64
		want  float64
	}{
		{name: "long gain", dir: strategy.Buy, entry: 100, price: 126, want: 26},
		{name: "long loss", dir: strategy.Buy, entry: 100, price: 97, want: -3},
		{name: "short gain", dir: strategy.Sell, entry: 100, price: 90, want: 10},
		{name: "short loss", dir: strategy.Sell, entry: 100, price: 104, want: -4},
		{name: "zero entry", dir: strategy.Buy, entry: 0, price: 100, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProfitPct(tt.dir, tt.entry, tt.price); !close2(got, tt.want) {
				t.Fatalf("ProfitPct = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

// Long position, entry 100, tiers [(25%,8%),(40%,12%)]: at 126 tier 1
// trails 8%, at 141 tier 2 trails 12% and the new stop must not loosen.
func TestTrailingTierProgression(t *testing.T) {
	pos := &Position{Direction: strategy.Buy, EntryPrice: 100}

	// Below the lowest trigger nothing activates.
	if tier, moved := ApplyTrailing(pos, 120, testTiers()); tier != 0 || moved {
		t.Fatalf("activated below trigger: tier=%d moved=%v", tier, moved)
	}

	tier, moved := ApplyTrailing(pos, 126, testTiers())
	if tier != 1 || !moved {
		t.Fatalf("tier 1 not applied at 26%% profit: tier=%d moved=%v", tier, moved)
	}
	tier1Stop := 126 * (1 - 0.08)
	if !close2(pos.TrailingStopPrice, tier1Stop) {
		t.Fatalf("tier 1 stop = %.4f, want %.4f", pos.TrailingStopPrice, tier1Stop)
	}

	tier, moved = ApplyTrailing(pos, 141, testTiers())
	if tier != 2 || !moved {
		t.Fatalf("tier 2 not applied at 41%% profit: tier=%d moved=%v", tier, moved)
	}
	tier2Stop := 141 * (1 - 0.12)
	if !close2(pos.TrailingStopPrice, tier2Stop) {
		t.Fatalf("tier 2 stop = %.4f, want %.4f", pos.TrailingStopPrice, tier2Stop)
	}
	if pos.TrailingStopPrice < tier1Stop {
		t.Fatalf("ratchet broken: tier 2 stop %.4f below tier 1 stop %.4f", pos.TrailingStopPrice, tier1Stop)
	}
}

// The applied stop sequence never loosens, whatever the price path does.
func TestTrailingRatchetNeverLoosens(t *testing.T) {
	tests := []struct {
		name   string
		dir    strategy.Direction
		entry  float64
		prices []float64
	}{
		{name: "long pullback", dir: strategy.Buy, entry: 100,
			prices: []float64{126, 130, 127, 141, 135, 128, 142}},
		{name: "short pullback", dir: strategy.Sell, entry: 100,
			prices: []float64{74, 70, 73, 59, 65, 72, 58}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := &Position{Direction: tt.dir, EntryPrice: tt.entry}
			var prev float64
			for _, price := range tt.prices {
				ApplyTrailing(pos, price, testTiers())
				cur := pos.TrailingStopPrice
				if prev != 0 {
					if tt.dir == strategy.Buy && cur < prev {
						t.Fatalf("stop loosened %.4f -> %.4f at price %.2f", prev, cur, price)
					}
					if tt.dir == strategy.Sell && cur > prev {
						t.Fatalf("stop loosened %.4f -> %.4f at price %.2f", prev, cur, price)
					}
				}
				prev = cur
			}
		})
	}
}

func TestBreakevenCapsLoss(t *testing.T) {
	pos := &Position{Direction: strategy.Buy, EntryPrice: 100}

	if ApplyBreakeven(pos, 104, 8, 5) {
		t.Fatal("breakeven applied below trigger")
	}
	if !ApplyBreakeven(pos, 108, 8, 5) {
		t.Fatal("breakeven not applied at trigger")
	}
	if !close2(pos.TrailingStopPrice, 95) {
		t.Fatalf("breakeven stop = %.4f, want 95", pos.TrailingStopPrice)
	}
	// One-shot: repeated calls do not move the stop again.
	if ApplyBreakeven(pos, 120, 8, 5) {
		t.Fatal("breakeven applied twice")
	}
}

func TestBreakevenDoesNotLoosenTrailing(t *testing.T) {
	pos := &Position{Direction: strategy.Buy, EntryPrice: 100}
	ApplyTrailing(pos, 126, testTiers()) // stop at 115.92
	stop := pos.TrailingStopPrice

	if ApplyBreakeven(pos, 126, 8, 5) {
		t.Fatal("breakeven loosened an already tighter trailing stop")
	}
	if pos.TrailingStopPrice != stop {
		t.Fatalf("stop changed %.4f -> %.4f", stop, pos.TrailingStopPrice)
	}
}

func TestStopHit(t *testing.T) {
	long := &Position{Direction: strategy.Buy, EntryPrice: 100, TrailingStopPrice: 115}
	if StopHit(long, 116) {
		t.Fatal("long stop hit above stop price")
	}
	if !StopHit(long, 115) {
		t.Fatal("long stop not hit at stop price")
	}

	short := &Position{Direction: strategy.Sell, EntryPrice: 100, TrailingStopPrice: 85}
	if StopHit(short, 84) {
		t.Fatal("short stop hit below stop price")
	}
	if !StopHit(short, 85) {
		t.Fatal("short stop not hit at stop price")
	}

	if StopHit(&Position{Direction: strategy.Buy}, 50) {
		t.Fatal("stop hit with no trailing stop set")
	}
}

func close2(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
