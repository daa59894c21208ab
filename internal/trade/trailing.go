package trade

import (
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
)

// ProfitPct is the unrealized move relative to the open price, positive in
// the position's favor.
func ProfitPct(dir strategy.Direction, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	pct := (price - entry) / entry * 100
	if dir == strategy.Sell {
		pct = -pct
	}
	return pct
}

// ApplyTrailing evaluates the tier table (ordered highest trigger first)
// against current profit and ratchets the trailing stop. The stop only
// ever tightens: for longs the new stop must exceed the previous one, for
// shorts it must be lower. First activation always applies. Returns the
// tier applied (1-based) and whether the stop moved.
func ApplyTrailing(pos *Position, price float64, tiers []config.TrailingTier) (tier int, moved bool) {
	profit := ProfitPct(pos.Direction, pos.EntryPrice, price)
	for i, t := range tiers {
		if profit < t.TriggerPct {
			continue
		}
		tier = len(tiers) - i // 1-based from the lowest tier upward
		var stop float64
		if pos.Direction == strategy.Buy {
			stop = price * (1 - t.TrailPct/100)
			if pos.TrailingStopPrice == 0 || stop > pos.TrailingStopPrice {
				pos.TrailingStopPrice = stop
				moved = true
			}
		} else {
			stop = price * (1 + t.TrailPct/100)
			if pos.TrailingStopPrice == 0 || stop < pos.TrailingStopPrice {
				pos.TrailingStopPrice = stop
				moved = true
			}
		}
		if tier > pos.TrailingTier {
			pos.TrailingTier = tier
		}
		return tier, moved
	}
	return 0, false
}

// ApplyBreakeven moves the stop to cap the loss once profit reaches the
// activation percent. Layered before the trailing table; the ratchet still
// holds because trailing stops at higher profits sit tighter.
func ApplyBreakeven(pos *Position, price, triggerPct, lossCapPct float64) bool {
	if pos.BreakevenApplied {
		return false
	}
	if ProfitPct(pos.Direction, pos.EntryPrice, price) < triggerPct {
		return false
	}
	var stop float64
	if pos.Direction == strategy.Buy {
		stop = pos.EntryPrice * (1 - lossCapPct/100)
		if pos.TrailingStopPrice != 0 && pos.TrailingStopPrice >= stop {
			pos.BreakevenApplied = true
			return false
		}
	} else {
		stop = pos.EntryPrice * (1 + lossCapPct/100)
		if pos.TrailingStopPrice != 0 && pos.TrailingStopPrice <= stop {
			pos.BreakevenApplied = true
			return false
		}
	}
	pos.TrailingStopPrice = stop
	pos.BreakevenApplied = true
	return true
}

// StopHit reports whether price has crossed the trailed stop.
func StopHit(pos *Position, price float64) bool {
	if pos.TrailingStopPrice == 0 {
		return false
	}
	if pos.Direction == strategy.Buy {
		return price <= pos.TrailingStopPrice
	}
	return price >= pos.TrailingStopPrice
}
