/*
Package leverage holds the pure arithmetic of the rebalancing engine: the
leverage-ratio definition, the damped recentering policy and the trade-size
bounds imposed by the lending market. Everything is 18-decimal fixed point
(cosmossdk.io/math LegacyDec); raw asset amounts are sdkmath.Int in native
base units and normalized here.
*/
package leverage

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/types"
)

// AssetValue normalizes a base-unit balance to an 18-decimal value using the
// asset's oracle price and native decimals.
func AssetValue(balance sdkmath.Int, price sdkmath.LegacyDec, decimals uint8) sdkmath.LegacyDec {
	return price.Mul(sdkmath.LegacyNewDecFromIntWithPrec(balance, int64(decimals)))
}

// CurrentLeverageRatio returns collateralValue / (collateralValue - borrowValue).
// A ratio of 1.0 means zero debt. The ratio is undefined once debt value
// reaches collateral value; that is a fatal precondition violation and is
// surfaced, never retried.
func CurrentLeverageRatio(collateralValue, borrowValue sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !collateralValue.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: collateral value %s", types.ErrZeroCollateral, collateralValue)
	}
	equity := collateralValue.Sub(borrowValue)
	if !equity.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: collateral %s, borrow %s",
			types.ErrRatioUndefined, collateralValue, borrowValue)
	}
	return collateralValue.Quo(equity), nil
}

// NewLeverageRatio moves current toward target by recenteringSpeed fraction of
// the gap and clamps the result into [min, max]. This is a damped control
// loop, not a snap to target: price shocks are absorbed over multiple calls.
func NewLeverageRatio(current, target, min, max, recenteringSpeed sdkmath.LegacyDec) sdkmath.LegacyDec {
	a := target.Mul(recenteringSpeed)
	b := sdkmath.LegacyOneDec().Sub(recenteringSpeed).Mul(current)
	newRatio := a.Add(b)
	return sdkmath.LegacyMinDec(max, sdkmath.LegacyMaxDec(min, newRatio))
}

// CollateralRebalanceUnits converts a leverage-ratio delta into the absolute
// collateral-asset notional to trade:
//
//	|newRatio - currentRatio| / currentRatio * collateralBalance
//
// The notional is computed per position unit at 18-decimal precision and
// scaled back by totalSupply, so the traded amount is an exact multiple of
// the per-unit delta and dust below the fixed-point scale is truncated.
func CollateralRebalanceUnits(currentRatio, newRatio sdkmath.LegacyDec, collateralBalance, totalSupply sdkmath.Int) (sdkmath.Int, error) {
	if totalSupply.IsNil() || !totalSupply.IsPositive() {
		return sdkmath.Int{}, types.ErrZeroSupply
	}
	if !currentRatio.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: current ratio %s", types.ErrRatioUndefined, currentRatio)
	}
	delta := newRatio.Sub(currentRatio).Abs()
	notional := delta.Quo(currentRatio).MulInt(collateralBalance)

	unitAmount := notional.QuoInt(totalSupply)
	return unitAmount.MulInt(totalSupply).TruncateInt(), nil
}

// MaxBorrowForLever returns the largest collateral-asset notional a lever can
// add, bounded by the lending market's borrow limit less the configured
// safety margin:
//
//	netBorrowLimit = collateralValue * collateralFactor * (1 - unutilized)
//	max            = (netBorrowLimit - borrowValue) / collateralPrice
//
// The result is in collateral base units.
func MaxBorrowForLever(
	collateralValue, borrowValue, collateralFactor, unutilized, collateralPrice sdkmath.LegacyDec,
	collateralDecimals uint8,
) sdkmath.Int {
	netBorrowLimit := collateralValue.
		Mul(collateralFactor).
		Mul(sdkmath.LegacyOneDec().Sub(unutilized))
	if netBorrowLimit.LTE(borrowValue) {
		return sdkmath.ZeroInt()
	}
	headroom := netBorrowLimit.Sub(borrowValue).Quo(collateralPrice)
	return Denormalize(headroom, collateralDecimals)
}

// MaxBorrowForDelever returns the largest collateral-asset amount that can be
// redeemed out of the lending market in one step without the remaining
// position breaching the liquidation threshold (padded by the safety margin):
//
//	netRepayLimit = collateralValue * liquidationThreshold * (1 - unutilized)
//	max           = collateralBalance * (netRepayLimit - borrowValue) / netRepayLimit
func MaxBorrowForDelever(
	collateralValue, borrowValue, liquidationThreshold, unutilized sdkmath.LegacyDec,
	collateralBalance sdkmath.Int,
) sdkmath.Int {
	netRepayLimit := collateralValue.
		Mul(liquidationThreshold).
		Mul(sdkmath.LegacyOneDec().Sub(unutilized))
	if !netRepayLimit.IsPositive() || netRepayLimit.LTE(borrowValue) {
		return sdkmath.ZeroInt()
	}
	frac := netRepayLimit.Sub(borrowValue).Quo(netRepayLimit)
	return frac.MulInt(collateralBalance).TruncateInt()
}

// MaxRedeemForDeleverToZero sizes the full unwind to 1.0x: the collateral that
// must be sold to buy back the entire outstanding debt, padded by the
// slippage tolerance so the repay leg cannot come up short. Result is in
// collateral base units.
func MaxRedeemForDeleverToZero(
	borrowValue, collateralPrice, slippageTolerance sdkmath.LegacyDec,
	collateralDecimals uint8,
) sdkmath.Int {
	if !borrowValue.IsPositive() {
		return sdkmath.ZeroInt()
	}
	padded := borrowValue.Mul(sdkmath.LegacyOneDec().Add(slippageTolerance))
	return Denormalize(padded.Quo(collateralPrice), collateralDecimals)
}

// Denormalize converts an 18-decimal quantity back to base units of an asset
// with the given native decimals, truncating dust.
func Denormalize(quantity sdkmath.LegacyDec, decimals uint8) sdkmath.Int {
	scale := sdkmath.LegacyNewDec(10).Power(uint64(decimals))
	return quantity.Mul(scale).TruncateInt()
}
