package trade

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
)

type fakeAccount struct{ balance float64 }

func (f fakeAccount) Account(context.Context) (market.AccountInfo, error) {
	return market.AccountInfo{Balance: f.balance, Currency: "USD"}, nil
}

// fakeBroker scripts fills and a status sequence; the last status repeats.
type fakeBroker struct {
	openErr  error
	contract Contract
	statuses []ContractState
	statusAt int
	soldFor  float64
	closeErr error
	closed   bool
	stops    []float64
}

func (f *fakeBroker) OpenContract(context.Context, OpenRequest) (Contract, error) {
	if f.openErr != nil {
		return Contract{}, f.openErr
	}
	return f.contract, nil
}

func (f *fakeBroker) ContractStatus(context.Context, int64) (ContractState, error) {
	if len(f.statuses) == 0 {
		return ContractState{}, fmt.Errorf("no status scripted")
	}
	st := f.statuses[f.statusAt]
	if f.statusAt < len(f.statuses)-1 {
		f.statusAt++
	}
	return st, nil
}

func (f *fakeBroker) UpdateStops(_ context.Context, _ int64, slAmount float64, _ bool) error {
	f.stops = append(f.stops, slAmount)
	return nil
}

func (f *fakeBroker) CloseContract(context.Context, int64) (float64, error) {
	f.closed = true
	return f.soldFor, f.closeErr
}

func testEngine(t *testing.T, broker Broker, mgr risk.Manager) *Engine {
	t.Helper()
	params := config.DefaultBot().Trade
	params.MonitorIntervalSec = 1
	return NewEngine(Config{
		Broker:       broker,
		Account:      fakeAccount{balance: 1000},
		RiskMgr:      mgr,
		Params:       params,
		MaxRiskPct:   2.0,
		FixedLot:     1.0,
		StrategyName: "conservative",
		EarlyExit:    true,
	})
}

func buySignal() strategy.Signal {
	return strategy.Signal{
		Symbol:        "R_25",
		Direction:     strategy.Buy,
		Score:         8,
		EntryPrice:    100,
		TakeProfit:    103,
		StopLoss:      98,
		RiskReward:    1.5,
		MinRiskReward: 1.5,
	}
}

func newRiskManager() *risk.ConservativeManager {
	params := config.DefaultBot().Risk
	params.CooldownSec = 0
	return risk.NewConservativeManager(params, nil, nil)
}

func TestExecuteWinningLifecycle(t *testing.T) {
	broker := &fakeBroker{
		contract: Contract{ContractID: 77, FillPrice: 100},
		statuses: []ContractState{
			{Status: "open", Profit: 1, CurrentSpot: 101},
			{Settled: true, Status: "won", Profit: 3, ExitPrice: 103},
		},
	}
	mgr := newRiskManager()
	eng := testEngine(t, broker, mgr)

	res, err := eng.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.PnL != 3 || res.SettlementStatus != risk.SettlementWon {
		t.Fatalf("result = pnl %.2f status %s, want 3.00 won", res.PnL, res.SettlementStatus)
	}
	if mgr.IsTradeActive() {
		t.Fatal("lock still held after settlement")
	}
	if got := eng.Position().State; got != StateNone {
		t.Fatalf("final state = %s, want NONE", got)
	}
	stats := mgr.Stats()
	if stats.Trades != 1 || stats.Wins != 1 || stats.PnL != 3 {
		t.Fatalf("stats = %+v, want one winning trade", stats)
	}
}

func TestExecuteRejectedOrderHasNoLockSideEffects(t *testing.T) {
	broker := &fakeBroker{openErr: fmt.Errorf("insufficient balance")}
	mgr := newRiskManager()
	eng := testEngine(t, broker, mgr)

	_, err := eng.Execute(context.Background(), buySignal())
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("err = %v, want ErrOrderRejected", err)
	}
	if mgr.IsTradeActive() {
		t.Fatal("lock taken for a rejected order")
	}
	if got := mgr.Stats().Trades; got != 0 {
		t.Fatalf("trades counted for rejected order: %d", got)
	}
	if got := eng.Position().State; got != StateNone {
		t.Fatalf("state = %s after reject, want NONE", got)
	}
}

func TestExecuteRechecksRiskRewardAtOrderTime(t *testing.T) {
	broker := &fakeBroker{contract: Contract{ContractID: 1, FillPrice: 100}}
	eng := testEngine(t, broker, newRiskManager())

	sig := buySignal()
	sig.TakeProfit = 102.6 // R:R 1.3 against min 1.5
	_, err := eng.Execute(context.Background(), sig)
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("err = %v, want ErrOrderRejected", err)
	}
}

// Hard timeout with no definitive settlement: the position settles
// conservatively as a loss, distinctly flagged, and the lock comes back.
func TestHardTimeoutReleasesLock(t *testing.T) {
	broker := &fakeBroker{
		contract: Contract{ContractID: 9, FillPrice: 100},
		statuses: []ContractState{{Status: "open", Profit: 0.5, CurrentSpot: 100.5}},
		closeErr: fmt.Errorf("sell unavailable"),
	}
	mgr := newRiskManager()
	eng := testEngine(t, broker, mgr)
	eng.params.HardTimeoutSec = 1

	res, err := eng.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.SettlementStatus != risk.SettlementTimeout {
		t.Fatalf("status = %s, want %s", res.SettlementStatus, risk.SettlementTimeout)
	}
	if res.PnL >= 0 {
		t.Fatalf("timeout settlement pnl = %.2f, want conservative loss", res.PnL)
	}
	if !broker.closed {
		t.Fatal("no close attempted at hard timeout")
	}
	if mgr.IsTradeActive() {
		t.Fatal("lock not released after timeout settlement")
	}
	if got := mgr.Stats().ConsecutiveLosses; got != 1 {
		t.Fatalf("ConsecutiveLosses = %d, want 1", got)
	}
}

// Exit thresholds read the contract's currency PnL against the stake, not
// the raw price move: the multiplier amplifies price into PnL, so a tiny
// spot drift can already be a deep drawdown of the stake.
func TestShouldStagnationExit(t *testing.T) {
	eng := testEngine(t, &fakeBroker{}, newRiskManager())
	eng.params.StagnationWindowSec = 75
	eng.params.StagnationLossPct = 3.0
	eng.params.StagnationGraceRR = 2.5
	eng.params.StagnationGraceSec = 45

	pos := Position{Direction: strategy.Buy, EntryPrice: 100, Stake: 10, RiskReward: 1.5}

	tests := []struct {
		name   string
		profit float64
		age    time.Duration
		rr     float64
		want   bool
	}{
		{name: "inside window", profit: -5, age: 60 * time.Second, rr: 1.5, want: false},
		// Half the stake gone and well past the window; the spot itself has
		// barely moved at a 100x multiplier.
		{name: "past window at loss", profit: -5, age: 10 * time.Minute, rr: 1.5, want: true},
		{name: "past window small loss", profit: -0.2, age: 80 * time.Second, rr: 1.5, want: false},
		{name: "past window in profit", profit: 2, age: 80 * time.Second, rr: 1.5, want: false},
		{name: "at threshold", profit: -0.3, age: 80 * time.Second, rr: 1.5, want: true},
		{name: "grace extension holds", profit: -5, age: 100 * time.Second, rr: 3.0, want: false},
		{name: "past grace extension", profit: -5, age: 130 * time.Second, rr: 3.0, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pos
			p.RiskReward = tt.rr
			if got := eng.shouldStagnationExit(p, tt.profit, tt.age); got != tt.want {
				t.Fatalf("shouldStagnationExit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldEarlyExit(t *testing.T) {
	eng := testEngine(t, &fakeBroker{}, newRiskManager())
	eng.params.EarlyExitWindowSec = 20
	eng.params.EarlyExitLossPct = 1.5

	pos := Position{Direction: strategy.Buy, EntryPrice: 100, Stake: 10}

	// 2% of the stake lost inside the window; spot moved only 0.02%.
	if !eng.shouldEarlyExit(pos, -0.2, 10*time.Second) {
		t.Fatal("sharp stake loss inside window not cut")
	}
	if eng.shouldEarlyExit(pos, -0.2, 30*time.Second) {
		t.Fatal("early exit fired outside its window")
	}
	if eng.shouldEarlyExit(pos, -0.1, 10*time.Second) {
		t.Fatal("early exit fired below loss threshold")
	}

	eng.earlyExit = false // scalping variant
	if eng.shouldEarlyExit(pos, -0.2, 10*time.Second) {
		t.Fatal("early exit fired with the check disabled")
	}
}

func TestLossPctOfStake(t *testing.T) {
	tests := []struct {
		name   string
		profit float64
		stake  float64
		want   float64
	}{
		{name: "half the stake", profit: -5, stake: 10, want: 50},
		{name: "small drawdown", profit: -0.15, stake: 10, want: 1.5},
		{name: "in profit", profit: 3, stake: 10, want: 0},
		{name: "zero stake", profit: -5, stake: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lossPctOfStake(tt.profit, tt.stake); !close2(got, tt.want) {
				t.Fatalf("lossPctOfStake = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

// A successful sale is a confirmed settlement. Even when the status feed
// keeps reporting the contract open, the sale proceeds decide the outcome;
// the trade must not be written down as an assumed loss.
func TestCloseUsesSaleProceedsWhenStatusLags(t *testing.T) {
	broker := &fakeBroker{
		contract: Contract{ContractID: 11, FillPrice: 100},
		statuses: []ContractState{{Status: "open", Profit: 0.3, CurrentSpot: 100.3}},
		soldFor:  13, // stake 10 sold at a 3 profit
	}
	mgr := newRiskManager()
	eng := testEngine(t, broker, mgr)
	eng.params.HardTimeoutSec = 1

	res, err := eng.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.SettlementStatus != risk.SettlementWon {
		t.Fatalf("status = %s, want %s", res.SettlementStatus, risk.SettlementWon)
	}
	if !close2(res.PnL, 3) {
		t.Fatalf("pnl = %.2f, want 3.00 from the sale proceeds", res.PnL)
	}
	if mgr.IsTradeActive() {
		t.Fatal("lock not released after sale settlement")
	}
	if got := mgr.Stats().ConsecutiveLosses; got != 0 {
		t.Fatalf("ConsecutiveLosses = %d after a winning sale, want 0", got)
	}
}
