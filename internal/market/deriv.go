package market

import (
	"context"
	"fmt"

	"github.com/devpro-denny/R-25V1/pkg/deriv"
)

// DerivSource adapts the websocket client to the Fetcher and AccountReader
// interfaces the core consumes.
type DerivSource struct {
	Client *deriv.Client
}

func NewDerivSource(client *deriv.Client) *DerivSource {
	return &DerivSource{Client: client}
}

func (s *DerivSource) FetchCandles(ctx context.Context, symbol string, gran Granularity, count int) ([]Candle, error) {
	raw, err := s.Client.Candles(ctx, symbol, int(gran), count)
	if err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	out := make([]Candle, len(raw))
	for i, c := range raw {
		out[i] = Candle{
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
			Time:  deriv.CandleTime(c.Epoch),
		}
	}
	return out, nil
}

func (s *DerivSource) Account(ctx context.Context) (AccountInfo, error) {
	balance, currency, err := s.Client.Balance(ctx)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("market: %w", err)
	}
	return AccountInfo{Balance: balance, Currency: currency}, nil
}
