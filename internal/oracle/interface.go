package oracle

import sdkmath "cosmossdk.io/math"

// PriceOracle returns a fixed-point price (18 decimals, quote in the common
// value unit) for one whole unit of an asset.
type PriceOracle interface {
	Price(asset string) (sdkmath.LegacyDec, error)
}
