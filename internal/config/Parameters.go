/*

This file contains the default settings for the leverage manager.

These defaults describe a conservative 2x ETH/USDC strategy. Each value has
been chosen to keep the position comfortably away from liquidation while
keeping trade sizes small enough to avoid material price impact.

*/

package config

import (
	sdkmath "cosmossdk.io/math"
	"time"

	"github.com/flexlev/flm/internal/types"
)

// DefaultConfigName identifies the settings row loaded from and saved to the
// database when no explicit configuration name is given.
const DefaultConfigName = "default_flm_strategy"

// DefaultConfigVersion is the version written when the defaults are first
// persisted.
const DefaultConfigVersion = 1

// DefaultStrategySettings describe an 18-decimal collateral asset borrowed
// against a 6-decimal stable asset.
var DefaultStrategySettings = types.StrategySettings{
	CollateralAsset:    "WETH",
	BorrowAsset:        "USDC",
	CollateralDecimals: 18,
	BorrowDecimals:     6,
}

// DefaultMethodologySettings provide a baseline leverage band.
// These values are used if no active settings are found in the database
// during initialization.
var DefaultMethodologySettings = types.MethodologySettings{
	TargetLeverageRatio: sdkmath.LegacyNewDec(2), // Hold 2x exposure.
	// Rationale: 2x doubles returns while leaving a wide margin below the
	// lending market's liquidation threshold under normal volatility.

	MinLeverageRatio: sdkmath.LegacyMustNewDecFromStr("1.7"), // Recenter when below 1.7x.
	// Rationale: drifting under 1.7x gives up too much upside capture.
	// Anything inside [1.7, 2.3] is close enough that waiting for the
	// interval is cheaper than trading immediately.

	MaxLeverageRatio: sdkmath.LegacyMustNewDecFromStr("2.3"), // Recenter when above 2.3x.
	// Rationale: above 2.3x a further 15% collateral drawdown starts to
	// threaten the liquidation threshold. Recentering here keeps a healthy
	// buffer without churning on every small move.

	RecenteringSpeed: sdkmath.LegacyMustNewDecFromStr("0.05"), // Close 5% of the gap per rebalance.
	// Rationale: slow recentering smooths entry prices across many
	// rebalances and keeps each individual trade small.

	RebalanceInterval: 24 * time.Hour, // At most one scheduled rebalance per day.
	// Rationale: inside the band there is no urgency. A daily cadence keeps
	// trading costs low; band breaches bypass this interval anyway.
}

// DefaultExecutionSettings control ordinary trade execution.
var DefaultExecutionSettings = types.ExecutionSettings{
	UnutilizedLeveragePercentage: sdkmath.LegacyMustNewDecFromStr("0.10"), // Keep 10% of borrow power unused.
	// Rationale: sizing borrows against 90% of the market limit leaves room
	// for interest accrual and oracle noise between rebalances.

	TwapCooldownPeriod: 3 * time.Minute, // Wait 3 minutes between TWAP chunks.
	// Rationale: long enough for the market to absorb the previous chunk,
	// short enough that a multi-chunk rebalance completes within the hour.

	SlippageTolerance: sdkmath.LegacyMustNewDecFromStr("0.02"), // Accept at most 2% slippage.
	// Rationale: 2% bounds the cost of any single chunk. Worse fills are
	// rejected and retried on the next cooldown.
}

// DefaultIncentiveSettings govern the emergency ripcord path.
var DefaultIncentiveSettings = types.IncentiveSettings{
	IncentivizedLeverageRatio: sdkmath.LegacyMustNewDecFromStr("2.7"), // Ripcord arms at 2.7x.
	// Rationale: well above the 2.3x recentering bound so the ordinary path
	// gets a chance first, well below the point where liquidation is near.

	IncentivizedSlippageTolerance: sdkmath.LegacyMustNewDecFromStr("0.05"), // Accept up to 5% slippage in emergencies.
	// Rationale: when deleveraging away from liquidation, speed matters
	// more than execution quality.

	IncentivizedTwapCooldownPeriod: 1 * time.Minute, // Faster chunk cadence in emergencies.

	EtherReward: sdkmath.LegacyMustNewDecFromStr("1.0"), // Pay 1 unit of the reward asset per ripcord call.
	// Rationale: enough to cover a caller's costs with a premium, small
	// relative to the capital the ripcord protects.
}

// DefaultExchangeSettings provide baseline trade caps for a newly added
// exchange. Sizes are in base units of the asset being sold.
var DefaultExchangeSettings = types.ExchangeSettings{
	TwapMaxTradeSize:             sdkmath.NewInt(500_000_000_000_000_000), // 0.5 units at 18 decimals per chunk.
	IncentivizedTwapMaxTradeSize: sdkmath.NewInt(2_000_000_000_000_000_000),
	// Rationale: emergency chunks are 4x ordinary ones. Deleveraging fast
	// beats minimizing impact once the ripcord threshold is crossed.
}
