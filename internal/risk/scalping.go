package risk

import (
	"fmt"

	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/strategy"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// ScalpingManager gates the EMA-cross strategy. Same lock semantics as the
// conservative variant, plus a per-symbol ceiling and runaway protection
// against trade bursts.
type ScalpingManager struct {
	*core
}

func NewScalpingManager(cfg config.RiskParams, database *db.Database, bus *events.Bus) *ScalpingManager {
	return &ScalpingManager{core: newCore(cfg, database, bus)}
}

func (m *ScalpingManager) CanOpenTrade(symbol string, sig strategy.Signal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDailyResetLocked()

	if d := m.checkHaltLocked(); !d.Allowed {
		return d
	}
	if d := m.checkLockLocked(); !d.Allowed {
		return d
	}
	if d := m.checkSymbolCeilingLocked(symbol); !d.Allowed {
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
	if d := m.checkRunawayLocked(); !d.Allowed {
		return d
	}
	return m.checkRiskRewardLocked(sig)
}

// checkSymbolCeilingLocked bounds in-flight positions per symbol from its
// own open count. Under the strict single-trade lock it is shadowed by the
// global check; the independent count keeps it binding if the global
// ceiling is ever raised above one.
func (m *ScalpingManager) checkSymbolCeilingLocked(symbol string) Decision {
	if m.cfg.PerSymbolCeiling > 0 && m.symbolOpen[symbol] >= m.cfg.PerSymbolCeiling {
		return reject(fmt.Sprintf("per-symbol ceiling reached for %s", symbol))
	}
	return allow()
}
