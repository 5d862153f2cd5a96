package engine

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/flexlev/flm/internal/types"
)

// Two-party mutual confirmation for the most sensitive changes: replacing a
// principal. The first principal to call records a pending action keyed by a
// content hash of (action, argument); the change is applied only when the
// other principal confirms with identical arguments before the entry
// expires. No single principal can unilaterally redirect control.

const mutualUpgradeTTL = 24 * time.Hour

type pendingUpgrade struct {
	confirmedBy string
	expires     time.Time
}

// ReplaceOperator proposes or confirms replacing the operator principal.
// Returns true once the change has been applied.
func (e *Engine) ReplaceOperator(caller, newOperator string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, err := e.mutualUpgrade(caller, "replace_operator", newOperator)
	if err != nil || !applied {
		return false, err
	}
	e.principals.Operator = newOperator
	e.log.Warn().Str("newOperator", newOperator).Msg("Operator replaced by mutual upgrade")
	return true, nil
}

// ReplaceMethodologist proposes or confirms replacing the methodologist.
func (e *Engine) ReplaceMethodologist(caller, newMethodologist string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, err := e.mutualUpgrade(caller, "replace_methodologist", newMethodologist)
	if err != nil || !applied {
		return false, err
	}
	e.principals.Methodologist = newMethodologist
	e.log.Warn().Str("newMethodologist", newMethodologist).Msg("Methodologist replaced by mutual upgrade")
	return true, nil
}

// mutualUpgrade runs the two-phase commit. Callers hold the engine lock.
func (e *Engine) mutualUpgrade(caller, action, argument string) (bool, error) {
	if caller != e.principals.Operator && caller != e.principals.Methodologist {
		return false, fmt.Errorf("%w: %s is neither operator nor methodologist", types.ErrUnauthorized, caller)
	}

	key := sha256.Sum256([]byte(action + "|" + argument))
	now := e.now()
	e.expirePendingUpgrades(now)

	pending, ok := e.pendingUpgrades[key]
	if !ok {
		e.pendingUpgrades[key] = pendingUpgrade{
			confirmedBy: caller,
			expires:     now.Add(mutualUpgradeTTL),
		}
		e.log.Info().
			Str("action", action).
			Str("proposedBy", caller).
			Time("expires", now.Add(mutualUpgradeTTL)).
			Msg("Mutual upgrade proposed, awaiting second confirmation")
		return false, nil
	}

	if pending.confirmedBy == caller {
		// Re-confirmation by the same principal extends nothing and applies
		// nothing.
		return false, nil
	}

	delete(e.pendingUpgrades, key)
	return true, nil
}

func (e *Engine) expirePendingUpgrades(now time.Time) {
	for key, pending := range e.pendingUpgrades {
		if now.After(pending.expires) {
			delete(e.pendingUpgrades, key)
		}
	}
}
