package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// StrategySettings are fixed per deployment: which assets the position holds
// and how their native decimals reconcile with the common 18-decimal scale.
type StrategySettings struct {
	// CollateralAsset is the asset supplied to the lending market.
	CollateralAsset string
	// BorrowAsset is the asset borrowed against the collateral.
	BorrowAsset string
	// Native decimals of each asset. Amounts are carried in base units and
	// normalized to 18-decimal values with these.
	CollateralDecimals uint8
	BorrowDecimals     uint8
}

// Validate checks the strategy is well formed.
func (s StrategySettings) Validate() error {
	if s.CollateralAsset == "" || s.BorrowAsset == "" {
		return fmt.Errorf("strategy assets must be set")
	}
	if s.CollateralAsset == s.BorrowAsset {
		return fmt.Errorf("collateral and borrow asset must differ")
	}
	if s.CollateralDecimals > 18 || s.BorrowDecimals > 18 {
		return fmt.Errorf("asset decimals must be <= 18")
	}
	return nil
}

// MethodologySettings define the leverage band the engine keeps the position
// inside and how aggressively each rebalance moves toward the target.
type MethodologySettings struct {
	TargetLeverageRatio sdkmath.LegacyDec `json:"target_leverage_ratio"`
	MinLeverageRatio    sdkmath.LegacyDec `json:"min_leverage_ratio"`
	MaxLeverageRatio    sdkmath.LegacyDec `json:"max_leverage_ratio"`
	// RecenteringSpeed is the fraction of the gap to target closed per
	// rebalance call. In (0, 1].
	RecenteringSpeed sdkmath.LegacyDec `json:"recentering_speed"`
	// RebalanceInterval is the minimum time between non-emergency rebalances
	// while the ratio is inside [min, max].
	RebalanceInterval time.Duration `json:"rebalance_interval"`
}

// ExecutionSettings control trade execution on the non-emergency paths.
type ExecutionSettings struct {
	// UnutilizedLeveragePercentage is the safety margin kept unborrowed when
	// sizing against the lending market's limits. Fraction < 1.
	UnutilizedLeveragePercentage sdkmath.LegacyDec `json:"unutilized_leverage_percentage"`
	TwapCooldownPeriod           time.Duration     `json:"twap_cooldown_period"`
	SlippageTolerance            sdkmath.LegacyDec `json:"slippage_tolerance"`
}

// IncentiveSettings govern the emergency ripcord path.
type IncentiveSettings struct {
	// IncentivizedLeverageRatio is the stress threshold above which ripcord
	// becomes callable. Must exceed MaxLeverageRatio.
	IncentivizedLeverageRatio      sdkmath.LegacyDec `json:"incentivized_leverage_ratio"`
	IncentivizedSlippageTolerance  sdkmath.LegacyDec `json:"incentivized_slippage_tolerance"`
	IncentivizedTwapCooldownPeriod time.Duration     `json:"incentivized_twap_cooldown_period"`
	// EtherReward is paid to the ripcord caller, capped by the reward pool
	// balance held by the engine.
	EtherReward sdkmath.LegacyDec `json:"ether_reward"`
}

// ExchangeSettings carry the per-exchange trade caps, the exchange's own
// cooldown clock and opaque routing payloads handed to the trade adapter.
type ExchangeSettings struct {
	TwapMaxTradeSize             sdkmath.Int `json:"twap_max_trade_size"`
	IncentivizedTwapMaxTradeSize sdkmath.Int `json:"incentivized_twap_max_trade_size"`
	ExchangeLastTradeTimestamp   time.Time   `json:"exchange_last_trade_timestamp"`
	LeverExchangeData            []byte      `json:"lever_exchange_data,omitempty"`
	DeleverExchangeData          []byte      `json:"delever_exchange_data,omitempty"`
}

// Validate rejects exchange settings that would stall the TWAP loop.
func (s ExchangeSettings) Validate() error {
	if s.TwapMaxTradeSize.IsNil() || s.TwapMaxTradeSize.IsZero() || s.TwapMaxTradeSize.IsNegative() {
		return ErrZeroTradeSize
	}
	if s.IncentivizedTwapMaxTradeSize.IsNil() || s.IncentivizedTwapMaxTradeSize.IsZero() || s.IncentivizedTwapMaxTradeSize.IsNegative() {
		return fmt.Errorf("%w: incentivized trade size", ErrZeroTradeSize)
	}
	return nil
}

// ValidateSettings checks every cross-field invariant over the three mutable
// settings structs. Called on initialization and after every mutator so a
// partial update can never leave the engine with an inconsistent rule set.
func ValidateSettings(m MethodologySettings, e ExecutionSettings, i IncentiveSettings) error {
	one := sdkmath.LegacyOneDec()

	if m.MinLeverageRatio.GT(m.TargetLeverageRatio) || m.MinLeverageRatio.LT(one) {
		return fmt.Errorf("%w: must be valid min leverage", ErrInvalidMethodology)
	}
	if m.MaxLeverageRatio.LT(m.TargetLeverageRatio) {
		return fmt.Errorf("%w: must be valid max leverage", ErrInvalidMethodology)
	}
	if !m.RecenteringSpeed.IsPositive() || m.RecenteringSpeed.GT(one) {
		return fmt.Errorf("%w: must be valid recentering speed", ErrInvalidMethodology)
	}
	if m.RebalanceInterval < e.TwapCooldownPeriod {
		return fmt.Errorf("%w: rebalance interval must be greater than TWAP cooldown period", ErrInvalidMethodology)
	}
	if e.UnutilizedLeveragePercentage.IsNegative() || e.UnutilizedLeveragePercentage.GTE(one) {
		return fmt.Errorf("%w: unutilized leverage must be <100%%", ErrInvalidExecution)
	}
	if e.SlippageTolerance.IsNegative() || e.SlippageTolerance.GTE(one) {
		return fmt.Errorf("%w: slippage must be <100%%", ErrInvalidExecution)
	}
	if i.IncentivizedSlippageTolerance.IsNegative() || i.IncentivizedSlippageTolerance.GTE(one) {
		return fmt.Errorf("%w: incentivized slippage must be <100%%", ErrInvalidIncentive)
	}
	if i.IncentivizedLeverageRatio.LTE(m.MaxLeverageRatio) {
		return fmt.Errorf("%w: incentivized leverage ratio must be > max leverage ratio", ErrInvalidIncentive)
	}
	if e.TwapCooldownPeriod < i.IncentivizedTwapCooldownPeriod {
		return fmt.Errorf("%w: TWAP cooldown must be greater than incentivized TWAP cooldown", ErrInvalidExecution)
	}
	if i.EtherReward.IsNil() || i.EtherReward.IsNegative() {
		return fmt.Errorf("%w: ether reward must not be negative", ErrInvalidIncentive)
	}
	return nil
}
