package trade

import (
	"context"
	"fmt"
	"sync"

	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/internal/strategy"
)

// SimBroker simulates contract execution against live candle data for
// dry-run mode: fills at the latest close, marks profit to market on each
// status poll and settles when a TP/SL amount is crossed.
type SimBroker struct {
	Fetcher market.Fetcher

	mu        sync.Mutex
	nextID    int64
	contracts map[int64]*simContract
}

type simContract struct {
	req     OpenRequest
	entry   float64
	settled bool
	profit  float64
	exit    float64
}

func NewSimBroker(fetcher market.Fetcher) *SimBroker {
	return &SimBroker{Fetcher: fetcher, contracts: make(map[int64]*simContract)}
}

func (b *SimBroker) spot(ctx context.Context, symbol string) (float64, error) {
	cs, err := b.Fetcher.FetchCandles(ctx, symbol, market.Gran1m, 2)
	if err != nil {
		return 0, err
	}
	if len(cs) == 0 {
		return 0, fmt.Errorf("sim: no candles for %s", symbol)
	}
	return cs[len(cs)-1].Close, nil
}

func (b *SimBroker) OpenContract(ctx context.Context, req OpenRequest) (Contract, error) {
	price, err := b.spot(ctx, req.Symbol)
	if err != nil {
		return Contract{}, fmt.Errorf("sim: fill price: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.contracts[id] = &simContract{req: req, entry: price}
	return Contract{ContractID: id, FillPrice: price, BuyPrice: req.Stake}, nil
}

func (b *SimBroker) ContractStatus(ctx context.Context, contractID int64) (ContractState, error) {
	b.mu.Lock()
	c, ok := b.contracts[contractID]
	b.mu.Unlock()
	if !ok {
		return ContractState{}, fmt.Errorf("sim: unknown contract %d", contractID)
	}
	if c.settled {
		status := "lost"
		if c.profit > 0 {
			status = "won"
		}
		return ContractState{Settled: true, Status: status, Profit: c.profit, ExitPrice: c.exit}, nil
	}

	price, err := b.spot(ctx, c.req.Symbol)
	if err != nil {
		return ContractState{}, err
	}

	move := (price - c.entry) / c.entry
	if c.req.Direction == strategy.Sell {
		move = -move
	}
	profit := move * c.req.Stake * float64(c.req.Multiplier)

	b.mu.Lock()
	defer b.mu.Unlock()
	if c.req.TakeProfit > 0 && profit >= c.req.TakeProfit {
		c.settled, c.profit, c.exit = true, c.req.TakeProfit, price
		return ContractState{Settled: true, Status: "won", Profit: c.profit, ExitPrice: price}, nil
	}
	if c.req.StopLoss > 0 && profit <= -c.req.StopLoss {
		c.settled, c.profit, c.exit = true, -c.req.StopLoss, price
		return ContractState{Settled: true, Status: "lost", Profit: c.profit, ExitPrice: price}, nil
	}
	return ContractState{Status: "open", Profit: profit, CurrentSpot: price}, nil
}

func (b *SimBroker) UpdateStops(_ context.Context, contractID int64, stopLossAmount float64, dropTP bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contracts[contractID]
	if !ok {
		return fmt.Errorf("sim: unknown contract %d", contractID)
	}
	c.req.StopLoss = stopLossAmount
	if dropTP {
		c.req.TakeProfit = 0
	}
	return nil
}

func (b *SimBroker) CloseContract(ctx context.Context, contractID int64) (float64, error) {
	st, err := b.ContractStatus(ctx, contractID)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.contracts[contractID]
	if !c.settled {
		c.settled, c.profit, c.exit = true, st.Profit, st.CurrentSpot
	}
	return c.req.Stake + c.profit, nil
}
