package engine

import (
	"fmt"

	"github.com/flexlev/flm/internal/exchange"
	"github.com/flexlev/flm/internal/types"
)

// Settings mutators. Each is operator-gated, revalidates every cross-field
// invariant against the other current settings and applies atomically: a
// rejected update leaves the prior settings intact. Risk-changing mutators
// are additionally blocked while a rebalance is in progress unless the
// override escape hatch is set.

// SetMethodologySettings replaces the leverage band and recentering policy.
func (e *Engine) SetMethodologySettings(caller string, m types.MethodologySettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	if err := types.ValidateSettings(m, e.execution, e.incentive); err != nil {
		return err
	}

	e.methodology = m
	e.log.Info().
		Str("target", m.TargetLeverageRatio.String()).
		Str("min", m.MinLeverageRatio.String()).
		Str("max", m.MaxLeverageRatio.String()).
		Str("recenteringSpeed", m.RecenteringSpeed.String()).
		Dur("rebalanceInterval", m.RebalanceInterval).
		Msg("Methodology settings updated")
	return nil
}

// SetExecutionSettings replaces slippage, cooldown and safety-margin knobs.
func (e *Engine) SetExecutionSettings(caller string, ex types.ExecutionSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	if err := types.ValidateSettings(e.methodology, ex, e.incentive); err != nil {
		return err
	}

	e.execution = ex
	e.log.Info().
		Str("slippageTolerance", ex.SlippageTolerance.String()).
		Dur("twapCooldown", ex.TwapCooldownPeriod).
		Str("unutilizedLeverage", ex.UnutilizedLeveragePercentage.String()).
		Msg("Execution settings updated")
	return nil
}

// SetIncentiveSettings replaces the ripcord threshold and reward parameters.
func (e *Engine) SetIncentiveSettings(caller string, in types.IncentiveSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	if err := types.ValidateSettings(e.methodology, e.execution, in); err != nil {
		return err
	}

	e.incentive = in
	e.log.Info().
		Str("incentivizedRatio", in.IncentivizedLeverageRatio.String()).
		Str("etherReward", in.EtherReward.String()).
		Msg("Incentive settings updated")
	return nil
}

// AddEnabledExchange registers a new exchange with its trade adapter. The
// last-trade timestamp starts at zero so the new exchange is immediately
// usable.
func (e *Engine) AddEnabledExchange(caller, name string, settings types.ExchangeSettings, adapter exchange.TradeAdapter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	return e.registry.Add(name, settings, adapter)
}

// UpdateEnabledExchange replaces the settings of an enabled exchange. Blocked
// mid-rebalance: shrinking a cap under a running TWAP changes its step count.
func (e *Engine) UpdateEnabledExchange(caller, name string, settings types.ExchangeSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	return e.registry.Update(name, settings)
}

// RemoveEnabledExchange disables an exchange.
func (e *Engine) RemoveEnabledExchange(caller, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	return e.registry.Remove(name)
}

// SetEModeCategory forwards an efficiency-mode category switch to the lending
// market. Blocked mid-rebalance: it changes the collateral factor the chunk
// bounds are computed from.
func (e *Engine) SetEModeCategory(caller string, category uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return err
	}
	if err := e.lending.SetEModeCategory(category); err != nil {
		return fmt.Errorf("failed to set e-mode category: %w", err)
	}
	e.log.Info().Uint8("category", category).Msg("E-mode category updated")
	return nil
}

// SetOverrideNoRebalanceInProgress toggles the escape hatch that lets
// settings be changed while a TWAP is in flight.
func (e *Engine) SetOverrideNoRebalanceInProgress(caller string, override bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.overrideNoRebalanceInProgress = override
	e.log.Warn().Bool("override", override).Msg("Rebalance-in-progress override toggled")
	return nil
}
