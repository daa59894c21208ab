package bot

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/internal/trade"
)

// Executor runs one admitted signal to settlement. Satisfied by
// *trade.Engine; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, sig strategy.Signal) (*risk.TradeResult, error)
}

// lockWatchdog is the optional stale-lock recovery surface of a risk
// manager.
type lockWatchdog interface {
	LockAge() time.Duration
	ForceRelease(reason string)
}

// Controller drives the scan-analyze-execute-monitor cycle. One logical
// loop: symbols are processed in configured order, the global lock is
// rechecked before each symbol and again immediately before submission,
// and cancellation is honored at cycle boundaries only, never mid-order.
type Controller struct {
	strat        strategy.Strategy
	riskMgr      risk.Manager
	executor     Executor
	bus          *events.Bus
	pollInterval time.Duration
	watchdogAge  time.Duration // force-release ceiling for a stale lock
	now          func() time.Time

	lastBar map[string]time.Time // per-symbol new-bar edge detection
}

func NewController(strat strategy.Strategy, riskMgr risk.Manager, executor Executor, bus *events.Bus, pollInterval, watchdogAge time.Duration) *Controller {
	return &Controller{
		strat:        strat,
		riskMgr:      riskMgr,
		executor:     executor,
		bus:          bus,
		pollInterval: pollInterval,
		watchdogAge:  watchdogAge,
		now:          time.Now,
		lastBar:      make(map[string]time.Time),
	}
}

// Run loops cycles until the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	log.Printf("bot: starting cycle loop, poll interval %s", c.pollInterval)
	for {
		c.RunCycle(ctx)
		select {
		case <-ctx.Done():
			log.Printf("bot: stopping at cycle boundary")
			return ctx.Err()
		case <-time.After(c.waitInterval()):
		}
	}
}

// waitInterval is the sleep before the next cycle: the poll interval,
// stretched to the nearest admission time while a cooldown or breaker rest
// would reject every symbol anyway. The poll interval is the floor so a
// force-released lock or cleared halt is still picked up promptly.
func (c *Controller) waitInterval() time.Duration {
	wait := c.pollInterval
	aware, ok := c.riskMgr.(interface{ NextAdmission() time.Time })
	if !ok {
		return wait
	}
	next := aware.NextAdmission()
	if next.IsZero() {
		return wait
	}
	if d := next.Sub(c.now()); d > wait {
		log.Printf("bot: all admissions blocked until %s, extending wait", next.Format(time.RFC3339))
		return d
	}
	return wait
}

// RunCycle executes one scan pass across the symbol universe.
func (c *Controller) RunCycle(ctx context.Context) {
	c.checkWatchdog()

	// Pre-gate: with a trade in flight there is nothing to scan for.
	if c.riskMgr.IsTradeActive() {
		if info, ok := c.riskMgr.ActiveTradeInfo(); ok {
			log.Printf("bot: cycle skipped, lock held by %s", info.Symbol)
		}
		return
	}

	for _, symbol := range c.strat.Symbols() {
		// Lock state can change relative to a slow per-symbol analysis;
		// recheck before spending time on each symbol.
		if c.riskMgr.IsTradeActive() {
			break
		}

		sig, err := c.strat.Evaluate(ctx, symbol)
		if err != nil {
			log.Printf("bot: evaluate %s: %v", symbol, err)
			continue
		}
		if !sig.Actionable() {
			c.publishDecision(sig, false, sig.Reason)
			continue
		}
		if !sig.BarTime.IsZero() && sig.BarTime.Equal(c.lastBar[symbol]) {
			c.publishDecision(sig, false, "bar already traded")
			continue
		}

		decision := c.riskMgr.CanOpenTrade(symbol, sig)
		c.publishDecision(sig, decision.Allowed, decision.Reason)
		if !decision.Allowed {
			log.Printf("bot: %s %s rejected: %s", symbol, sig.Direction, decision.Reason)
			continue
		}

		// Double-check immediately before submission; the gate above may
		// have raced a monitoring-driven transition.
		if c.riskMgr.IsTradeActive() {
			break
		}

		c.lastBar[symbol] = sig.BarTime
		res, err := c.executor.Execute(ctx, sig)
		if err != nil {
			if errors.Is(err, trade.ErrOrderRejected) {
				log.Printf("bot: %s order rejected: %v", symbol, err)
				continue // retried on a later natural cycle, never busy-retried
			}
			log.Printf("bot: %s execute: %v", symbol, err)
			return
		}
		if res != nil {
			log.Printf("bot: %s settled pnl=%.2f status=%s", symbol, res.PnL, res.SettlementStatus)
			break // one trade per cycle by construction
		}
	}

	if c.bus != nil {
		c.bus.Publish(events.EventCycleDone, c.now())
	}
}

// checkWatchdog force-releases a lock held past the ceiling, which means a
// settlement was lost somewhere. Keeps the loop live instead of deadlocked.
func (c *Controller) checkWatchdog() {
	if c.watchdogAge <= 0 {
		return
	}
	wd, ok := c.riskMgr.(lockWatchdog)
	if !ok {
		return
	}
	if age := wd.LockAge(); age > c.watchdogAge {
		wd.ForceRelease("lock held for " + age.Truncate(time.Second).String())
	}
}

func (c *Controller) publishDecision(sig strategy.Signal, admitted bool, reason string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.EventSignalDecision, events.SignalDecision{
		Symbol:    sig.Symbol,
		Direction: sig.Direction.String(),
		Score:     sig.Score,
		Admitted:  admitted,
		Reason:    reason,
		At:        c.now(),
	})
}
