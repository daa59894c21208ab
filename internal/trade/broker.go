package trade

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/deriv"
)

// DerivBroker adapts the websocket client to the Broker interface, adding
// the proposal/buy handshake and a bounded price-moved retry.
type DerivBroker struct {
	Client      *deriv.Client
	BuyRetries  int
	MaxPricePct float64 // accept ask up to this percent above the quote
}

func NewDerivBroker(client *deriv.Client, buyRetries int, maxPricePct float64) *DerivBroker {
	return &DerivBroker{Client: client, BuyRetries: buyRetries, MaxPricePct: maxPricePct}
}

func (b *DerivBroker) OpenContract(ctx context.Context, req OpenRequest) (Contract, error) {
	contractType := "MULTUP"
	if req.Direction == strategy.Sell {
		contractType = "MULTDOWN"
	}
	limits := &deriv.LimitOrder{TakeProfit: req.TakeProfit, StopLoss: req.StopLoss}

	var lastErr error
	attempts := b.BuyRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		prop, err := b.Client.ProposeMultiplier(ctx, req.Symbol, contractType, req.Stake, req.Multiplier, limits)
		if err != nil {
			return Contract{}, fmt.Errorf("propose: %w", err)
		}
		maxPrice := prop.AskPrice * (1 + b.MaxPricePct/100)
		bought, err := b.Client.Buy(ctx, prop.ID, maxPrice)
		if err == nil {
			return Contract{
				ContractID: bought.ContractID,
				FillPrice:  prop.Spot,
				BuyPrice:   bought.BuyPrice,
				StartTime:  time.Unix(bought.StartTime, 0).UTC(),
			}, nil
		}
		lastErr = err
		if !priceMoved(err) || attempt == attempts {
			break
		}
		log.Printf("broker: price moved on %s, re-quoting (attempt %d/%d)", req.Symbol, attempt, attempts)
	}
	return Contract{}, fmt.Errorf("buy: %w", lastErr)
}

func (b *DerivBroker) ContractStatus(ctx context.Context, contractID int64) (ContractState, error) {
	st, err := b.Client.Status(ctx, contractID)
	if err != nil {
		return ContractState{}, err
	}
	return ContractState{
		Settled:     st.IsSold == 1 || st.Status == "won" || st.Status == "lost",
		Status:      st.Status,
		Profit:      st.Profit,
		CurrentSpot: st.CurrentSpot,
		ExitPrice:   st.SellPrice,
	}, nil
}

func (b *DerivBroker) UpdateStops(ctx context.Context, contractID int64, stopLossAmount float64, dropTP bool) error {
	return b.Client.UpdateLimits(ctx, contractID, deriv.LimitOrder{StopLoss: stopLossAmount}, dropTP)
}

func (b *DerivBroker) CloseContract(ctx context.Context, contractID int64) (float64, error) {
	return b.Client.Sell(ctx, contractID)
}

// priceMoved matches the brokerage's moved-price rejection, the only buy
// failure worth re-quoting.
func priceMoved(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "price") && (strings.Contains(msg, "moved") || strings.Contains(msg, "changed"))
}
