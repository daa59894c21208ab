package trade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// ErrOrderRejected marks a recoverable placement failure: no lock side
// effects, retried only on a later natural cycle.
var ErrOrderRejected = errors.New("trade: order rejected")

// Engine owns the position lifecycle: NONE -> PENDING -> OPEN -> CLOSING
// -> NONE. It places orders, monitors the open contract on a fixed cadence
// and reports settlements to the risk manager exactly once.
type Engine struct {
	broker       Broker
	account      market.AccountReader
	riskMgr      risk.Manager
	bus          *events.Bus
	store        *db.Database
	instruments  market.InstrumentTable
	params       config.TradeParams
	maxRiskPct   float64
	fixedLot     float64
	strategyName string
	earlyExit    bool // conservative variant's fast-failure check
	now          func() time.Time

	mu  sync.Mutex
	pos Position
}

// Config wires an engine.
type Config struct {
	Broker       Broker
	Account      market.AccountReader
	RiskMgr      risk.Manager
	Bus          *events.Bus
	Store        *db.Database
	Instruments  market.InstrumentTable
	Params       config.TradeParams
	MaxRiskPct   float64
	FixedLot     float64
	StrategyName string
	EarlyExit    bool
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		broker:       cfg.Broker,
		account:      cfg.Account,
		riskMgr:      cfg.RiskMgr,
		bus:          cfg.Bus,
		store:        cfg.Store,
		instruments:  cfg.Instruments,
		params:       cfg.Params,
		maxRiskPct:   cfg.MaxRiskPct,
		fixedLot:     cfg.FixedLot,
		strategyName: cfg.StrategyName,
		earlyExit:    cfg.EarlyExit,
		now:          time.Now,
	}
}

// Position returns a snapshot of the current position.
func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.pos.State = s
	e.mu.Unlock()
}

// Execute runs one admitted signal through the full lifecycle and blocks
// until settlement. All brokerage failures come back as typed outcomes;
// this method never panics the cycle loop.
func (e *Engine) Execute(ctx context.Context, sig strategy.Signal) (*risk.TradeResult, error) {
	if !sig.Actionable() {
		return nil, fmt.Errorf("%w: signal is NONE", ErrOrderRejected)
	}

	// R:R enforced again at order time; prices may have drifted since the
	// risk gate ran.
	riskDist := math.Abs(sig.EntryPrice - sig.StopLoss)
	if riskDist == 0 || math.Abs(sig.TakeProfit-sig.EntryPrice)/riskDist < sig.MinRiskReward {
		return nil, fmt.Errorf("%w: R:R below %.2f at order time", ErrOrderRejected, sig.MinRiskReward)
	}

	acct, err := e.account.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: account query failed: %v", ErrOrderRejected, err)
	}

	in := e.instruments.Lookup(sig.Symbol)
	stake := SizeStake(acct.Balance, e.maxRiskPct, riskDist, e.fixedLot, in)
	tpAmount := e.limitAmount(sig.EntryPrice, sig.TakeProfit, stake, in.Multiplier)
	slAmount := e.limitAmount(sig.EntryPrice, sig.StopLoss, stake, in.Multiplier)
	if slAmount > stake {
		slAmount = stake // cannot lose more than the stake on a multiplier
	}

	e.mu.Lock()
	e.pos = Position{
		TradeID:    uuid.NewString(),
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Stake:      stake,
		CurrentSL:  sig.StopLoss,
		CurrentTP:  sig.TakeProfit,
		RiskReward: sig.RiskReward,
		State:      StatePending,
	}
	tradeID := e.pos.TradeID
	e.mu.Unlock()

	contract, err := e.broker.OpenContract(ctx, OpenRequest{
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Stake:      stake,
		Multiplier: in.Multiplier,
		TakeProfit: tpAmount,
		StopLoss:   slAmount,
	})
	if err != nil {
		e.setState(StateNone)
		log.Printf("engine: open %s %s rejected: %v", sig.Symbol, sig.Direction, err)
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	openTime := e.now()
	e.mu.Lock()
	e.pos.ContractID = contract.ContractID
	e.pos.EntryPrice = contract.FillPrice
	e.pos.OpenTime = openTime
	e.pos.State = StateOpen
	pos := e.pos
	e.mu.Unlock()

	info := risk.TradeInfo{
		TradeID:    tradeID,
		ContractID: fmt.Sprintf("%d", contract.ContractID),
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Stake:      stake,
		EntryPrice: contract.FillPrice,
		TakeProfit: sig.TakeProfit,
		StopLoss:   sig.StopLoss,
		RiskReward: sig.RiskReward,
		OpenedAt:   openTime,
	}
	if err := e.riskMgr.RecordTradeOpen(info); err != nil {
		// The fill exists but the slot does not; close immediately rather
		// than run an untracked position.
		if _, closeErr := e.broker.CloseContract(ctx, contract.ContractID); closeErr != nil {
			log.Printf("engine: emergency close of %d failed: %v", contract.ContractID, closeErr)
		}
		e.setState(StateNone)
		return nil, err
	}

	log.Printf("engine: opened %s %s contract=%d stake=%.2f entry=%.4f",
		sig.Symbol, sig.Direction, contract.ContractID, stake, contract.FillPrice)
	if e.bus != nil {
		e.bus.Publish(events.EventTradeOpened, info)
	}

	result := e.monitor(ctx, pos, info)

	if err := e.riskMgr.RecordTradeClosed(result); err != nil {
		log.Printf("engine: record close: %v", err)
	}
	e.persist(result)
	e.setState(StateNone)
	if e.bus != nil {
		e.bus.Publish(events.EventTradeClosed, result)
	}
	return &result, nil
}

// limitAmount converts a price-level TP/SL into the account-currency
// amount the contract API expects.
func (e *Engine) limitAmount(entry, level, stake float64, multiplier int) float64 {
	if entry == 0 {
		return 0
	}
	return math.Abs(level-entry) / entry * stake * float64(multiplier)
}

func (e *Engine) persist(res risk.TradeResult) {
	if e.store == nil {
		return
	}
	row := db.Trade{
		ID:               res.TradeID,
		ContractID:       res.ContractID,
		Symbol:           res.Symbol,
		Direction:        res.Direction.String(),
		Strategy:         e.strategyName,
		Stake:            res.Stake,
		EntryPrice:       res.EntryPrice,
		ExitPrice:        res.ExitPrice,
		TakeProfit:       res.TakeProfit,
		StopLoss:         res.StopLoss,
		PnL:              res.PnL,
		SettlementStatus: res.SettlementStatus,
		OpenedAt:         res.OpenedAt,
		ClosedAt:         res.ClosedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.InsertTrade(ctx, row); err != nil {
		log.Printf("engine: store trade: %v", err)
	}
}
