package risk

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// core holds the state shared by both manager variants: the single-trade
// lock, daily counters and cooldown stamps. Lock fields always change
// together under one mutex so no reader observes a half-written transition.
type core struct {
	mu  sync.Mutex
	cfg config.RiskParams
	db  *db.Database
	bus *events.Bus
	now func() time.Time

	halted     bool
	haltReason string

	lockActive bool
	lockedInfo TradeInfo

	date              string // YYYY-MM-DD of the counters below
	trades            int
	pnl               float64
	wins              int
	losses            int
	consecutiveLosses int
	lastTradeTime     time.Time
	circuitBrokeAt    time.Time

	symbolLossCooldown map[string]time.Time // symbol -> loss close time
	symbolOpen         map[string]int       // symbol -> in-flight position count
	recentOpens        []time.Time          // runaway-protection window
}

func newCore(cfg config.RiskParams, database *db.Database, bus *events.Bus) *core {
	return &core{
		cfg:                cfg,
		db:                 database,
		bus:                bus,
		now:                time.Now,
		symbolLossCooldown: make(map[string]time.Time),
		symbolOpen:         make(map[string]int),
	}
}

// Load seeds today's counters from the database so a restart keeps the
// daily cap and circuit breaker honest.
func (c *core) Load(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	today := c.now().Format("2006-01-02")
	m, err := c.db.GetDailyMetrics(ctx, today)
	if err != nil {
		return fmt.Errorf("risk: load daily metrics: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = today
	c.trades = m.Trades
	c.pnl = m.PnL
	c.wins = m.Wins
	c.losses = m.Losses
	c.consecutiveLosses = m.ConsecutiveLosses
	return nil
}

// ensureDailyResetLocked rolls the counters over when the calendar day
// changed. Caller holds the mutex.
func (c *core) ensureDailyResetLocked() {
	today := c.now().Format("2006-01-02")
	if c.date == today {
		return
	}
	if c.date != "" {
		log.Printf("risk: day rollover %s -> %s, resetting daily stats", c.date, today)
	}
	c.date = today
	c.trades = 0
	c.pnl = 0
	c.wins = 0
	c.losses = 0
	c.consecutiveLosses = 0
	c.circuitBrokeAt = time.Time{}
}

// --- ordered admission checks; each returns an allow/reject decision ---

func (c *core) checkHaltLocked() Decision {
	if c.halted {
		return reject("halted: " + c.haltReason)
	}
	return allow()
}

func (c *core) checkLockLocked() Decision {
	if c.lockActive {
		return reject(fmt.Sprintf("concurrency lock held by %s", c.lockedInfo.Symbol))
	}
	return allow()
}

func (c *core) checkCircuitBreakerLocked() Decision {
	if c.cfg.CircuitBreakLosses > 0 && c.consecutiveLosses >= c.cfg.CircuitBreakLosses {
		rest := time.Duration(c.cfg.CircuitBreakRestSec) * time.Second
		if c.circuitBrokeAt.IsZero() || c.now().Sub(c.circuitBrokeAt) < rest {
			return reject(fmt.Sprintf("circuit breaker: %d consecutive losses", c.consecutiveLosses))
		}
		// Rest period served; allow a fresh attempt without clearing the
		// streak (one more loss trips the breaker again immediately).
	}
	return allow()
}

func (c *core) checkDailyCapLocked() Decision {
	if c.cfg.MaxTradesPerDay > 0 && c.trades >= c.cfg.MaxTradesPerDay {
		return reject(fmt.Sprintf("daily cap reached (%d trades)", c.trades))
	}
	return allow()
}

func (c *core) checkCooldownsLocked(symbol string) Decision {
	now := c.now()
	if c.cfg.CooldownSec > 0 && !c.lastTradeTime.IsZero() {
		cd := time.Duration(c.cfg.CooldownSec) * time.Second
		if since := now.Sub(c.lastTradeTime); since < cd {
			return reject(fmt.Sprintf("cooldown: %.0fs remaining", (cd - since).Seconds()))
		}
	}
	if c.cfg.LossCooldownSec > 0 {
		if lostAt, ok := c.symbolLossCooldown[symbol]; ok {
			cd := time.Duration(c.cfg.LossCooldownSec) * time.Second
			if since := now.Sub(lostAt); since < cd {
				return reject(fmt.Sprintf("loss cooldown on %s: %.0fs remaining", symbol, (cd - since).Seconds()))
			}
			delete(c.symbolLossCooldown, symbol)
		}
	}
	return allow()
}

// checkRiskRewardLocked recomputes R:R from the actual proposed prices
// instead of trusting the signal's self-reported ratio, catching drift
// between signal time and order time.
func (c *core) checkRiskRewardLocked(sig strategy.Signal) Decision {
	riskDist := math.Abs(sig.EntryPrice - sig.StopLoss)
	if riskDist == 0 {
		return reject("invalid stop: zero risk distance")
	}
	rr := math.Abs(sig.TakeProfit-sig.EntryPrice) / riskDist
	if rr < sig.MinRiskReward {
		return reject(fmt.Sprintf("R:R %.2f below required %.2f", rr, sig.MinRiskReward))
	}
	return allow()
}

func (c *core) checkRunawayLocked() Decision {
	if c.cfg.RunawayMaxTrades <= 0 || c.cfg.RunawayWindowSec <= 0 {
		return allow()
	}
	cutoff := c.now().Add(-time.Duration(c.cfg.RunawayWindowSec) * time.Second)
	kept := c.recentOpens[:0]
	for _, t := range c.recentOpens {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.recentOpens = kept
	if len(c.recentOpens) >= c.cfg.RunawayMaxTrades {
		return reject(fmt.Sprintf("runaway protection: %d trades in window", len(c.recentOpens)))
	}
	return allow()
}

// --- lock transitions ---

// RecordTradeOpen sets the lock and stamps the day's counters. Calling it
// while the lock is held breaks the single-trade invariant: the manager
// halts and returns ErrLockViolation.
func (c *core) RecordTradeOpen(info TradeInfo) error {
	c.mu.Lock()
	if c.lockActive {
		c.halted = true
		c.haltReason = fmt.Sprintf("duplicate open: lock held by %s, open requested for %s", c.lockedInfo.Symbol, info.Symbol)
		reason := c.haltReason
		c.mu.Unlock()
		log.Printf("risk: CRITICAL %s", reason)
		if c.bus != nil {
			c.bus.Publish(events.EventRiskAlert, "trade lock violation: "+reason)
		}
		return fmt.Errorf("%w: %s", ErrLockViolation, reason)
	}
	c.ensureDailyResetLocked()
	c.lockActive = true
	c.lockedInfo = info
	c.trades++
	c.symbolOpen[info.Symbol]++
	c.lastTradeTime = info.OpenedAt
	c.recentOpens = append(c.recentOpens, info.OpenedAt)
	c.persistLocked()
	c.mu.Unlock()

	log.Printf("risk: lock acquired for %s (contract %s)", info.Symbol, info.ContractID)
	if c.bus != nil {
		c.bus.Publish(events.EventLockAcquired, events.LockTransition{
			Symbol: info.Symbol, ContractID: info.ContractID, At: info.OpenedAt,
		})
	}
	return nil
}

// RecordTradeClosed clears the lock and applies the result to the daily
// counters. A close with no lock held, or for a different contract, is an
// invariant violation and leaves state untouched (a duplicate settlement
// callback must not double-count).
func (c *core) RecordTradeClosed(res TradeResult) error {
	c.mu.Lock()
	if !c.lockActive {
		c.mu.Unlock()
		log.Printf("risk: CRITICAL close recorded with no active lock (contract %s)", res.ContractID)
		return fmt.Errorf("%w: close with no active lock", ErrLockViolation)
	}
	if res.ContractID != "" && c.lockedInfo.ContractID != "" && res.ContractID != c.lockedInfo.ContractID {
		c.mu.Unlock()
		return fmt.Errorf("%w: close for contract %s but lock holds %s", ErrLockViolation, res.ContractID, c.lockedInfo.ContractID)
	}
	c.ensureDailyResetLocked()
	c.lockActive = false
	c.lockedInfo = TradeInfo{}
	c.releaseSymbolLocked(res.Symbol)
	c.pnl += res.PnL
	if res.Loss() {
		c.losses++
		c.consecutiveLosses++
		c.symbolLossCooldown[res.Symbol] = res.ClosedAt
		if c.cfg.CircuitBreakLosses > 0 && c.consecutiveLosses == c.cfg.CircuitBreakLosses {
			c.circuitBrokeAt = res.ClosedAt
		}
	} else {
		c.wins++
		c.consecutiveLosses = 0
	}
	c.lastTradeTime = res.ClosedAt
	streak := c.consecutiveLosses
	c.persistLocked()
	c.mu.Unlock()

	log.Printf("risk: lock released for %s pnl=%.2f status=%s streak=%d",
		res.Symbol, res.PnL, res.SettlementStatus, streak)
	if c.bus != nil {
		c.bus.Publish(events.EventLockReleased, events.LockTransition{
			Symbol: res.Symbol, ContractID: res.ContractID,
			Status: res.SettlementStatus, PnL: res.PnL, At: res.ClosedAt,
		})
		if c.cfg.CircuitBreakLosses > 0 && streak >= c.cfg.CircuitBreakLosses {
			c.bus.Publish(events.EventRiskAlert,
				fmt.Sprintf("circuit breaker tripped: %d consecutive losses", streak))
		}
	}
	return nil
}

func (c *core) IsTradeActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockActive
}

func (c *core) ActiveTradeInfo() (TradeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockedInfo, c.lockActive
}

// ForceRelease clears a stale lock so the system can never deadlock in a
// permanently-locked state. Used by the controller watchdog; emits a risk
// alert because reaching this path means a settlement was lost.
func (c *core) ForceRelease(reason string) {
	c.mu.Lock()
	if !c.lockActive {
		c.mu.Unlock()
		return
	}
	info := c.lockedInfo
	c.lockActive = false
	c.lockedInfo = TradeInfo{}
	c.releaseSymbolLocked(info.Symbol)
	c.mu.Unlock()

	log.Printf("risk: watchdog force-released lock for %s: %s", info.Symbol, reason)
	if c.bus != nil {
		c.bus.Publish(events.EventRiskAlert,
			fmt.Sprintf("watchdog released stale lock on %s: %s", info.Symbol, reason))
	}
}

// LockAge returns how long the lock has been held, zero when free.
func (c *core) LockAge() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lockActive || c.lockedInfo.OpenedAt.IsZero() {
		return 0
	}
	return c.now().Sub(c.lockedInfo.OpenedAt)
}

// releaseSymbolLocked drops one in-flight count for the symbol. Caller
// holds the mutex.
func (c *core) releaseSymbolLocked(symbol string) {
	if c.symbolOpen[symbol] > 1 {
		c.symbolOpen[symbol]--
		return
	}
	delete(c.symbolOpen, symbol)
}

// NextAdmission reports the earliest instant the global blocks (post-trade
// cooldown, circuit-breaker rest) could admit a new trade. Zero when nothing
// is pending. The controller uses it to stretch the inter-cycle wait instead
// of burning scan cycles that every admission check would reject.
func (c *core) NextAdmission() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	var next time.Time
	if c.cfg.CooldownSec > 0 && !c.lastTradeTime.IsZero() {
		if t := c.lastTradeTime.Add(time.Duration(c.cfg.CooldownSec) * time.Second); t.After(now) {
			next = t
		}
	}
	if c.cfg.CircuitBreakLosses > 0 && c.consecutiveLosses >= c.cfg.CircuitBreakLosses && !c.circuitBrokeAt.IsZero() {
		if t := c.circuitBrokeAt.Add(time.Duration(c.cfg.CircuitBreakRestSec) * time.Second); t.After(now) && t.After(next) {
			next = t
		}
	}
	return next
}

// Halted reports the halt flag with its reason.
func (c *core) Halted() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted, c.haltReason
}

// ClearHalt re-enables admissions after operator intervention.
func (c *core) ClearHalt() {
	c.mu.Lock()
	c.halted = false
	c.haltReason = ""
	c.mu.Unlock()
	log.Printf("risk: halt cleared")
}

// Stats returns a snapshot of the day's counters.
func (c *core) Stats() DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DailyStats{
		Date:              c.date,
		Trades:            c.trades,
		PnL:               c.pnl,
		Wins:              c.wins,
		Losses:            c.losses,
		ConsecutiveLosses: c.consecutiveLosses,
		LastTradeTime:     c.lastTradeTime,
	}
}

// persistLocked mirrors the counters to sqlite. Best effort: a storage
// error must not block trading decisions. Caller holds the mutex.
func (c *core) persistLocked() {
	if c.db == nil {
		return
	}
	m := db.DailyMetrics{
		Date:              c.date,
		Trades:            c.trades,
		PnL:               c.pnl,
		Wins:              c.wins,
		Losses:            c.losses,
		ConsecutiveLosses: c.consecutiveLosses,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.db.UpsertDailyMetrics(ctx, m); err != nil {
		log.Printf("risk: persist daily metrics: %v", err)
	}
}
