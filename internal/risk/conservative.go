package risk

import (
	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// ConservativeManager gates the top-down strategy. It runs the strict
// single-trade configuration: one position system-wide, halt on any lock
// violation, watchdog release of stale locks.
type ConservativeManager struct {
	*core
}

func NewConservativeManager(cfg config.RiskParams, database *db.Database, bus *events.Bus) *ConservativeManager {
	return &ConservativeManager{core: newCore(cfg, database, bus)}
}

// CanOpenTrade runs the ordered admission checks; the first failure
// short-circuits with its reason. Cheapest and most global checks first.
func (m *ConservativeManager) CanOpenTrade(symbol string, sig strategy.Signal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDailyResetLocked()

	if d := m.checkHaltLocked(); !d.Allowed {
		return d
	}
	if d := m.checkLockLocked(); !d.Allowed {
		return d
	}
	if d := m.checkCircuitBreakerLocked(); !d.Allowed {
		return d
	}
	if d := m.checkDailyCapLocked(); !d.Allowed {
		return d
	}
	if d := m.checkCooldownsLocked(symbol); !d.Allowed {
		return d
	}
	return m.checkRiskRewardLocked(sig)
}
