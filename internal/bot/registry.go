package bot

import (
	"fmt"

	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// Bundle pairs a strategy with its risk manager variant.
type Bundle struct {
	Strategy strategy.Strategy
	Risk     risk.Manager
	// EarlyExit enables the fast-failure close check in the trade engine;
	// only the conservative variant uses it.
	EarlyExit bool
}

// Build resolves a strategy name from config into a constructed bundle.
// Called once at startup; unknown names fail fast.
func Build(name string, fetcher market.Fetcher, cfg *config.Bot, database *db.Database, bus *events.Bus) (Bundle, error) {
	switch name {
	case "conservative":
		return Bundle{
			Strategy:  strategy.NewConservative(fetcher, cfg.Conservative, cfg.Symbols, cfg.BlockedSymbols),
			Risk:      risk.NewConservativeManager(cfg.Risk, database, bus),
			EarlyExit: true,
		}, nil
	case "scalping":
		return Bundle{
			Strategy: strategy.NewScalping(fetcher, cfg.Scalping, cfg.Symbols, cfg.BlockedSymbols),
			Risk:     risk.NewScalpingManager(cfg.Risk, database, bus),
		}, nil
	default:
		return Bundle{}, fmt.Errorf("bot: unknown strategy %q (want conservative or scalping)", name)
	}
}
