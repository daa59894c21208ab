package trade

import (
	"math"

	"github.com/devpro-denny/R-25V1/internal/market"
)

// SizeStake converts account balance and stop distance into a stake.
// risk = balance * maxRiskPct; lot = risk / (slDistance/tickSize * tickValue),
// clamped to the instrument's bounds and rounded down to its lot step. A
// result below the instrument minimum falls back to the configured fixed
// lot instead of rejecting the trade.
func SizeStake(balance, maxRiskPct, slDistance, fixedLot float64, in market.Instrument) float64 {
	if balance <= 0 || maxRiskPct <= 0 || slDistance <= 0 || in.TickSize <= 0 || in.TickValue <= 0 {
		return fixedLot
	}
	riskAmount := balance * maxRiskPct / 100
	perLotRisk := slDistance / in.TickSize * in.TickValue
	if perLotRisk <= 0 {
		return fixedLot
	}
	lot := riskAmount / perLotRisk

	if in.MaxLot > 0 && lot > in.MaxLot {
		lot = in.MaxLot
	}
	if in.LotStep > 0 {
		lot = math.Floor(lot/in.LotStep) * in.LotStep
	}
	if lot < in.MinLot {
		return fixedLot
	}
	return lot
}
