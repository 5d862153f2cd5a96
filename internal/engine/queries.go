package engine

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/exchange"
	"github.com/flexlev/flm/internal/leverage"
	"github.com/flexlev/flm/internal/types"
)

// GetCurrentLeverageRatio reads the position and returns the measured ratio.
func (e *Engine) GetCurrentLeverageRatio() (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLeverageRatio()
}

func (e *Engine) currentLeverageRatio() (sdkmath.LegacyDec, error) {
	ai, err := e.createActionInfo()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return leverage.CurrentLeverageRatio(ai.collateralValue, ai.borrowValue)
}

// ExchangeAction pairs an enabled exchange with the action a keeper should
// take on it right now.
type ExchangeAction struct {
	ExchangeName string                `json:"exchange_name"`
	Action       types.RebalanceAction `json:"action"`
}

// ShouldRebalance returns, per enabled exchange in insertion order, which
// operation (if any) is currently valid. Read-only; automation polls this.
func (e *Engine) ShouldRebalance() ([]ExchangeAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shouldRebalance(e.methodology.MinLeverageRatio, e.methodology.MaxLeverageRatio)
}

// ShouldRebalanceWithBounds is ShouldRebalance with caller-supplied leverage
// bounds, letting keepers act earlier than the methodology band. Overrides
// must be at least as wide as the methodology band.
func (e *Engine) ShouldRebalanceWithBounds(minOverride, maxOverride sdkmath.LegacyDec) ([]ExchangeAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minOverride.GT(e.methodology.MinLeverageRatio) || maxOverride.LT(e.methodology.MaxLeverageRatio) {
		return nil, fmt.Errorf("%w: custom bounds must be valid", types.ErrInvalidMethodology)
	}
	return e.shouldRebalance(minOverride, maxOverride)
}

func (e *Engine) shouldRebalance(min, max sdkmath.LegacyDec) ([]ExchangeAction, error) {
	current, err := e.currentLeverageRatio()
	if err != nil {
		return nil, err
	}
	now := e.now()

	names := e.registry.EnabledExchanges()
	actions := make([]ExchangeAction, 0, len(names))
	for _, name := range names {
		settings, _, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}
		action := types.ActionNone
		sinceExchange := now.Sub(settings.ExchangeLastTradeTimestamp)
		switch {
		case current.GTE(e.incentive.IncentivizedLeverageRatio) &&
			sinceExchange >= e.incentive.IncentivizedTwapCooldownPeriod:
			action = types.ActionRipcord
		case !e.twapLeverageRatio.IsZero() && sinceExchange >= e.execution.TwapCooldownPeriod:
			action = types.ActionIterate
		case e.twapLeverageRatio.IsZero() && current.LT(e.incentive.IncentivizedLeverageRatio) &&
			(now.Sub(e.globalLastTradeTimestamp) >= e.methodology.RebalanceInterval ||
				current.GT(max) || current.LT(min)):
			action = types.ActionRebalance
		}
		actions = append(actions, ExchangeAction{ExchangeName: name, Action: action})
	}
	return actions, nil
}

// GetChunkRebalanceNotional is a pure query returning, for each named
// exchange, the bounded notional it would trade right now and the trade
// direction. Keepers use it to pick an exchange and size gas/slippage.
func (e *Engine) GetChunkRebalanceNotional(exchangeNames []string) ([]types.ChunkNotional, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ai, err := e.createActionInfo()
	if err != nil {
		return nil, err
	}
	current, err := leverage.CurrentLeverageRatio(ai.collateralValue, ai.borrowValue)
	if err != nil {
		return nil, err
	}

	ripcord := current.GTE(e.incentive.IncentivizedLeverageRatio)
	var newRatio sdkmath.LegacyDec
	switch {
	case ripcord:
		newRatio = e.methodology.MaxLeverageRatio
	case !e.twapLeverageRatio.IsZero():
		newRatio = e.twapLeverageRatio
	default:
		newRatio = leverage.NewLeverageRatio(
			current,
			e.methodology.TargetLeverageRatio,
			e.methodology.MinLeverageRatio,
			e.methodology.MaxLeverageRatio,
			e.methodology.RecenteringSpeed,
		)
	}

	total, err := leverage.CollateralRebalanceUnits(current, newRatio, ai.collateralBalance, ai.totalSupply)
	if err != nil {
		return nil, err
	}
	isLever := newRatio.GT(current)

	var bound sdkmath.Int
	if isLever {
		collateralFactor, err := e.lending.CollateralFactor()
		if err != nil {
			return nil, fmt.Errorf("failed to read collateral factor: %w", err)
		}
		bound = leverage.MaxBorrowForLever(
			ai.collateralValue, ai.borrowValue,
			collateralFactor, e.execution.UnutilizedLeveragePercentage,
			ai.collateralPrice, e.strategy.CollateralDecimals)
	} else {
		liqThreshold, err := e.lending.LiquidationThreshold()
		if err != nil {
			return nil, fmt.Errorf("failed to read liquidation threshold: %w", err)
		}
		bound = leverage.MaxBorrowForDelever(
			ai.collateralValue, ai.borrowValue,
			liqThreshold, e.execution.UnutilizedLeveragePercentage,
			ai.collateralBalance)
	}

	sellAsset, buyAsset := e.strategy.CollateralAsset, e.strategy.BorrowAsset
	if isLever {
		sellAsset, buyAsset = e.strategy.BorrowAsset, e.strategy.CollateralAsset
	}

	out := make([]types.ChunkNotional, 0, len(exchangeNames))
	for _, name := range exchangeNames {
		settings, _, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}
		cap := settings.TwapMaxTradeSize
		if ripcord {
			cap = settings.IncentivizedTwapMaxTradeSize
		}
		chunk, _ := exchange.BoundedChunk(total, cap, bound)
		out = append(out, types.ChunkNotional{
			ExchangeName: name,
			Notional:     chunk,
			SellAsset:    sellAsset,
			BuyAsset:     buyAsset,
		})
	}
	return out, nil
}

// TwapLeverageRatio returns the stored in-flight TWAP target; zero when Idle.
func (e *Engine) TwapLeverageRatio() sdkmath.LegacyDec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.twapLeverageRatio
}

// GlobalLastTradeTimestamp returns the last time any exchange traded.
func (e *Engine) GlobalLastTradeTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalLastTradeTimestamp
}

// Settings returns copies of the current mutable settings.
func (e *Engine) Settings() (types.MethodologySettings, types.ExecutionSettings, types.IncentiveSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.methodology, e.execution, e.incentive
}

// Strategy returns the immutable strategy settings.
func (e *Engine) Strategy() types.StrategySettings {
	return e.strategy
}

// EnabledExchanges returns the enabled exchange names in insertion order.
func (e *Engine) EnabledExchanges() []string {
	return e.registry.EnabledExchanges()
}
