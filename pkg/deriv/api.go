package deriv

import (
	"context"
	"fmt"
	"time"
)

// Candle is one OHLC bar from ticks_history, oldest-first in responses.
type Candle struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Epoch int64   `json:"epoch"`
}

// Proposal is a priced contract quote.
type Proposal struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Spot     float64 `json:"spot"`
}

// BoughtContract is the result of accepting a proposal.
type BoughtContract struct {
	ContractID int64   `json:"contract_id"`
	BuyPrice   float64 `json:"buy_price"`
	StartTime  int64   `json:"start_time"`
}

// ContractStatus is a snapshot of an open or settled contract.
type ContractStatus struct {
	ContractID  int64   `json:"contract_id"`
	Status      string  `json:"status"` // open, won, lost, sold
	IsSold      int     `json:"is_sold"`
	Profit      float64 `json:"profit"`
	CurrentSpot float64 `json:"current_spot"`
	EntrySpot   float64 `json:"entry_spot"`
	SellPrice   float64 `json:"sell_price"`
	BuyPrice    float64 `json:"buy_price"`
}

// LimitOrder carries TP/SL expressed as account-currency amounts, the way
// multiplier contracts take them.
type LimitOrder struct {
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
}

// Candles fetches count OHLC bars at the given granularity (seconds).
func (c *Client) Candles(ctx context.Context, symbol string, granularity, count int) ([]Candle, error) {
	var resp struct {
		Candles []Candle `json:"candles"`
	}
	err := c.call(ctx, map[string]any{
		"ticks_history": symbol,
		"style":         "candles",
		"granularity":   granularity,
		"count":         count,
		"end":           "latest",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("candles %s: %w", symbol, err)
	}
	return resp.Candles, nil
}

// Balance returns the current account balance.
func (c *Client) Balance(ctx context.Context) (float64, string, error) {
	var resp struct {
		Balance struct {
			Balance  float64 `json:"balance"`
			Currency string  `json:"currency"`
		} `json:"balance"`
	}
	if err := c.call(ctx, map[string]any{"balance": 1}, &resp); err != nil {
		return 0, "", fmt.Errorf("balance: %w", err)
	}
	return resp.Balance.Balance, resp.Balance.Currency, nil
}

// ProposeMultiplier quotes a multiplier contract. contractType is MULTUP or
// MULTDOWN.
func (c *Client) ProposeMultiplier(ctx context.Context, symbol, contractType string, stake float64, multiplier int, limits *LimitOrder) (Proposal, error) {
	req := map[string]any{
		"proposal":      1,
		"amount":        stake,
		"basis":         "stake",
		"contract_type": contractType,
		"currency":      "USD",
		"symbol":        symbol,
		"multiplier":    multiplier,
	}
	if limits != nil {
		req["limit_order"] = limits
	}
	var resp struct {
		Proposal Proposal `json:"proposal"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return Proposal{}, fmt.Errorf("proposal %s %s: %w", symbol, contractType, err)
	}
	return resp.Proposal, nil
}

// Buy accepts a proposal at up to maxPrice.
func (c *Client) Buy(ctx context.Context, proposalID string, maxPrice float64) (BoughtContract, error) {
	var resp struct {
		Buy BoughtContract `json:"buy"`
	}
	if err := c.call(ctx, map[string]any{"buy": proposalID, "price": maxPrice}, &resp); err != nil {
		return BoughtContract{}, fmt.Errorf("buy: %w", err)
	}
	return resp.Buy, nil
}

// Status polls a contract. Settled contracts report is_sold=1 with a final
// status.
func (c *Client) Status(ctx context.Context, contractID int64) (ContractStatus, error) {
	var resp struct {
		Contract ContractStatus `json:"proposal_open_contract"`
	}
	err := c.call(ctx, map[string]any{
		"proposal_open_contract": 1,
		"contract_id":            contractID,
	}, &resp)
	if err != nil {
		return ContractStatus{}, fmt.Errorf("contract status %d: %w", contractID, err)
	}
	return resp.Contract, nil
}

// UpdateLimits replaces the TP/SL limit orders on an open contract.
// Removing the take profit is done by passing a zero TakeProfit with
// dropTP set.
func (c *Client) UpdateLimits(ctx context.Context, contractID int64, limits LimitOrder, dropTP bool) error {
	lo := map[string]any{}
	if limits.StopLoss != 0 {
		lo["stop_loss"] = limits.StopLoss
	}
	if dropTP {
		lo["take_profit"] = nil
	} else if limits.TakeProfit != 0 {
		lo["take_profit"] = limits.TakeProfit
	}
	err := c.call(ctx, map[string]any{
		"contract_update": 1,
		"contract_id":     contractID,
		"limit_order":     lo,
	}, nil)
	if err != nil {
		return fmt.Errorf("contract update %d: %w", contractID, err)
	}
	return nil
}

// Sell closes a contract at market.
func (c *Client) Sell(ctx context.Context, contractID int64) (float64, error) {
	var resp struct {
		Sell struct {
			SoldFor float64 `json:"sold_for"`
		} `json:"sell"`
	}
	if err := c.call(ctx, map[string]any{"sell": contractID, "price": 0}, &resp); err != nil {
		return 0, fmt.Errorf("sell %d: %w", contractID, err)
	}
	return resp.Sell.SoldFor, nil
}

// CandleTime converts an epoch to time.Time.
func CandleTime(epoch int64) time.Time { return time.Unix(epoch, 0).UTC() }
