package trade

import (
	"context"
	"time"

	"github.com/devpro-denny/R-25V1/internal/strategy"
)

// State is the position lifecycle stage.
type State int

const (
	StateNone State = iota
	StatePending
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "NONE"
	}
}

// Position is the single authoritative record of in-flight risk, owned
// exclusively by the engine. The risk manager sees only a lock mirror.
type Position struct {
	TradeID    string
	ContractID int64
	Symbol     string
	Direction  strategy.Direction
	Stake      float64
	EntryPrice float64
	OpenTime   time.Time
	CurrentSL  float64
	CurrentTP  float64
	RiskReward float64

	// Trailing state: tier 0 means inactive, then 1..N into the tier table.
	TrailingTier      int
	TrailingStopPrice float64
	BreakevenApplied  bool

	State State
}

// OpenRequest asks the broker for a position.
type OpenRequest struct {
	Symbol     string
	Direction  strategy.Direction
	Stake      float64
	Multiplier int
	TakeProfit float64 // account-currency amount
	StopLoss   float64 // account-currency amount
}

// Contract is a confirmed fill.
type Contract struct {
	ContractID int64
	FillPrice  float64
	BuyPrice   float64
	StartTime  time.Time
}

// ContractState is a settlement/monitoring snapshot.
type ContractState struct {
	Settled     bool
	Status      string // open, won, lost, sold
	Profit      float64
	CurrentSpot float64
	ExitPrice   float64
}

// Broker is the order-execution collaborator. The deriv adapter implements
// it; tests use a scripted fake.
type Broker interface {
	OpenContract(ctx context.Context, req OpenRequest) (Contract, error)
	ContractStatus(ctx context.Context, contractID int64) (ContractState, error)
	// UpdateStops replaces the stop-loss amount; dropTP removes the take
	// profit (done when trailing takes over exit management).
	UpdateStops(ctx context.Context, contractID int64, stopLossAmount float64, dropTP bool) error
	CloseContract(ctx context.Context, contractID int64) (soldFor float64, err error)
}
