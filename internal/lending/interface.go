package lending

import sdkmath "cosmossdk.io/math"

// PositionAccessor is the narrow view of the lending market the engine needs:
// the position's balances, the market's risk parameters, and the four
// position-changing actions issued during a rebalance. Amounts are in the
// asset's native base units.
type PositionAccessor interface {
	SupplyBalance(asset string) (sdkmath.Int, error)
	BorrowBalance(asset string) (sdkmath.Int, error)

	// CollateralFactor is the maximum loan-to-value for new borrows.
	CollateralFactor() (sdkmath.LegacyDec, error)
	// LiquidationThreshold is the LTV at which the position becomes
	// liquidatable. Always >= CollateralFactor.
	LiquidationThreshold() (sdkmath.LegacyDec, error)

	Supply(asset string, amount sdkmath.Int) error
	RedeemCollateral(asset string, amount sdkmath.Int) error
	Borrow(asset string, amount sdkmath.Int) error
	Repay(asset string, amount sdkmath.Int) error

	// SetEModeCategory switches the position's efficiency-mode category,
	// which changes the effective collateral factor and liquidation
	// threshold. Category 0 is the default market parameters.
	SetEModeCategory(category uint8) error
}
