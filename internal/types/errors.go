package types

import "errors"

// Sentinel errors for the rebalancing engine. Every failed operation wraps one
// of these so callers (keeper, web API, tests) can branch with errors.Is
// instead of matching message strings.
var (
	// Validation errors: rejected at the mutator, prior settings untouched.
	ErrInvalidMethodology = errors.New("invalid methodology settings")
	ErrInvalidExecution   = errors.New("invalid execution settings")
	ErrInvalidIncentive   = errors.New("invalid incentive settings")
	ErrZeroTradeSize      = errors.New("max TWAP trade size must not be 0")

	// State errors: wrong engine state for the requested operation.
	ErrInvalidExchange      = errors.New("exchange not enabled")
	ErrExchangeExists       = errors.New("exchange already enabled")
	ErrCooldownNotElapsed   = errors.New("cooldown not elapsed")
	ErrNotInTwap            = errors.New("not in TWAP rebalance")
	ErrTwapInProgress       = errors.New("TWAP rebalance in progress, must call iterate")
	ErrRebalanceInProgress  = errors.New("rebalance in progress")
	ErrOutsideRebalanceWindow = errors.New("inside leverage bounds and rebalance interval not elapsed")

	// Precondition errors: fatal user errors, never retried internally.
	ErrNonZeroDebt            = errors.New("debt must be 0")
	ErrZeroDebt               = errors.New("borrow balance must exist")
	ErrZeroCollateral         = errors.New("collateral balance must be > 0")
	ErrZeroSupply             = errors.New("total supply must be > 0")
	ErrAboveIncentivizedRatio = errors.New("must be below incentivized leverage ratio")
	ErrBelowIncentivizedRatio = errors.New("must be above incentivized leverage ratio")
	ErrRatioUndefined         = errors.New("collateral value must exceed borrow value")

	// Authorization errors.
	ErrUnauthorized = errors.New("caller not authorized")
)
