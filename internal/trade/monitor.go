package trade

import (
	"context"
	"log"
	"time"

	"github.com/devpro-denny/R-25V1/internal/risk"
)

// monitor polls the open contract until settlement, running the lifecycle
// checks each tick: trailing/breakeven recompute, stagnation exit, early
// exit and the hard timeout ceiling. It always returns a settled result so
// the lock is always released (liveness over accuracy: an unresolvable
// contract settles conservatively as a loss, flagged as such).
func (e *Engine) monitor(ctx context.Context, pos Position, info risk.TradeInfo) risk.TradeResult {
	interval := time.Duration(e.params.MonitorIntervalSec) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	hardTimeout := time.Duration(e.params.HardTimeoutSec) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutdown mid-position: close rather than abandon.
			return e.close(context.Background(), pos, info, "shutdown")
		case <-ticker.C:
		}

		age := e.now().Sub(pos.OpenTime)
		if age >= hardTimeout {
			log.Printf("engine: %s contract %d exceeded hard timeout", pos.Symbol, pos.ContractID)
			return e.closeAssumingLoss(ctx, pos, info)
		}

		st, err := e.broker.ContractStatus(ctx, pos.ContractID)
		if err != nil {
			log.Printf("engine: status %d: %v", pos.ContractID, err)
			continue // transient; the hard timeout bounds how long we tolerate this
		}
		if st.Settled {
			return e.settled(pos, info, st)
		}

		price := st.CurrentSpot
		if price <= 0 {
			continue
		}

		e.updateStops(ctx, &pos, price)

		if StopHit(&pos, price) {
			return e.close(ctx, pos, info, "trailing stop hit")
		}
		if e.shouldEarlyExit(pos, st.Profit, age) {
			return e.close(ctx, pos, info, "early exit")
		}
		if e.shouldStagnationExit(pos, st.Profit, age) {
			return e.close(ctx, pos, info, "stagnation exit")
		}

		e.mu.Lock()
		e.pos = pos
		e.mu.Unlock()
	}
}

// updateStops applies breakeven then the trailing tier table, pushing any
// tightened stop to the broker. The first trailing activation also removes
// the take profit so the ratchet manages the exit from there on.
func (e *Engine) updateStops(ctx context.Context, pos *Position, price float64) {
	beMoved := ApplyBreakeven(pos, price, e.params.BreakevenTriggerPct, e.params.BreakevenLossCapPct)

	hadTrailing := pos.TrailingTier > 0
	tier, trailMoved := ApplyTrailing(pos, price, e.params.TrailingTiers)
	if !beMoved && !trailMoved {
		return
	}

	in := e.instruments.Lookup(pos.Symbol)
	slAmount := e.limitAmount(pos.EntryPrice, pos.TrailingStopPrice, pos.Stake, in.Multiplier)
	if slAmount > pos.Stake {
		slAmount = pos.Stake
	}
	dropTP := trailMoved && !hadTrailing
	if err := e.broker.UpdateStops(ctx, pos.ContractID, slAmount, dropTP); err != nil {
		log.Printf("engine: update stops %d: %v", pos.ContractID, err)
		return
	}
	pos.CurrentSL = pos.TrailingStopPrice
	if trailMoved {
		log.Printf("engine: %s tier %d trail -> %.4f", pos.Symbol, tier, pos.TrailingStopPrice)
	} else {
		log.Printf("engine: %s breakeven stop -> %.4f", pos.Symbol, pos.TrailingStopPrice)
	}
}

// lossPctOfStake expresses a drawdown as a percent of the stake at risk.
// Multiplier contracts amplify price moves, so exit thresholds compare
// against the contract's currency PnL, never the raw price change.
func lossPctOfStake(profit, stake float64) float64 {
	if stake <= 0 || profit >= 0 {
		return 0
	}
	return -profit / stake * 100
}

// shouldEarlyExit is the conservative variant's fast-failure check: a
// clearly wrong entry is cut within a short window at a tight threshold.
func (e *Engine) shouldEarlyExit(pos Position, profit float64, age time.Duration) bool {
	if !e.earlyExit || e.params.EarlyExitWindowSec <= 0 {
		return false
	}
	if age > time.Duration(e.params.EarlyExitWindowSec)*time.Second {
		return false
	}
	return lossPctOfStake(profit, pos.Stake) >= e.params.EarlyExitLossPct
}

// shouldStagnationExit bounds time-in-drawdown: a position past the window
// and still at a meaningful loss is closed rather than left to ride to SL.
// High original R:R earns a grace extension.
func (e *Engine) shouldStagnationExit(pos Position, profit float64, age time.Duration) bool {
	if e.params.StagnationWindowSec <= 0 {
		return false
	}
	window := time.Duration(e.params.StagnationWindowSec) * time.Second
	if pos.RiskReward >= e.params.StagnationGraceRR {
		window += time.Duration(e.params.StagnationGraceSec) * time.Second
	}
	if age <= window {
		return false
	}
	return lossPctOfStake(profit, pos.Stake) >= e.params.StagnationLossPct
}

// close sells the contract and builds the settled result. A successful sale
// is a confirmed settlement: its proceeds decide the outcome even when the
// status feed lags behind the sale. Only an unconfirmable contract (sell
// failed and no settled status within the wait) falls back to assumed loss.
func (e *Engine) close(ctx context.Context, pos Position, info risk.TradeInfo, reason string) risk.TradeResult {
	e.setState(StateClosing)
	log.Printf("engine: closing %s contract %d: %s", pos.Symbol, pos.ContractID, reason)

	soldFor, sellErr := e.broker.CloseContract(ctx, pos.ContractID)
	if sellErr != nil {
		log.Printf("engine: sell %d failed: %v", pos.ContractID, sellErr)
	}
	if st, ok := e.awaitSettlement(ctx, pos.ContractID); ok {
		return e.settled(pos, info, st)
	}
	if sellErr == nil {
		return e.soldResult(pos, info, soldFor)
	}
	return e.assumedLoss(pos, info)
}

// closeAssumingLoss handles the hard-timeout ceiling: one close attempt,
// then settlement from whatever the brokerage confirms so the lock always
// comes back. The conservative assumed loss applies only when neither the
// sale nor the status feed yields a result.
func (e *Engine) closeAssumingLoss(ctx context.Context, pos Position, info risk.TradeInfo) risk.TradeResult {
	e.setState(StateClosing)
	soldFor, sellErr := e.broker.CloseContract(ctx, pos.ContractID)
	if sellErr != nil {
		log.Printf("engine: timeout close %d failed: %v", pos.ContractID, sellErr)
	}
	if st, ok := e.awaitSettlement(ctx, pos.ContractID); ok {
		return e.settled(pos, info, st)
	}
	if sellErr == nil {
		return e.soldResult(pos, info, soldFor)
	}
	return e.assumedLoss(pos, info)
}

// awaitSettlement polls for a settled contract state, bounded to a few
// short reads so a slow settlement feed cannot hold the lock.
func (e *Engine) awaitSettlement(ctx context.Context, contractID int64) (ContractState, bool) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		st, err := e.broker.ContractStatus(ctx, contractID)
		if err == nil && st.Settled {
			return st, true
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ContractState{}, false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return ContractState{}, false
}

// soldResult settles from the sale proceeds when the sell succeeded but the
// status feed has not caught up yet.
func (e *Engine) soldResult(pos Position, info risk.TradeInfo, soldFor float64) risk.TradeResult {
	profit := soldFor - pos.Stake
	status := risk.SettlementLost
	if profit > 0 {
		status = risk.SettlementWon
	}
	return risk.TradeResult{
		TradeInfo:        info,
		PnL:              profit,
		SettlementStatus: status,
		ClosedAt:         e.now(),
	}
}

func (e *Engine) settled(pos Position, info risk.TradeInfo, st ContractState) risk.TradeResult {
	status := risk.SettlementLost
	if st.Profit > 0 {
		status = risk.SettlementWon
	}
	return risk.TradeResult{
		TradeInfo:        info,
		ExitPrice:        st.ExitPrice,
		PnL:              st.Profit,
		SettlementStatus: status,
		ClosedAt:         e.now(),
	}
}

// assumedLoss settles a contract with no definitive result as a full-stake
// loss, distinctly flagged so analytics can separate it from real losses.
func (e *Engine) assumedLoss(pos Position, info risk.TradeInfo) risk.TradeResult {
	return risk.TradeResult{
		TradeInfo:        info,
		PnL:              -pos.Stake,
		SettlementStatus: risk.SettlementTimeout,
		ClosedAt:         e.now(),
	}
}
