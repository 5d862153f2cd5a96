package issuance

import sdkmath "cosmossdk.io/math"

// Accountant is the issuance/accounting collaborator: it knows how many
// position units (leveraged tokens) are outstanding and records the per-unit
// debt the engine owes the issuance module after each borrow or repay.
type Accountant interface {
	TotalSupply() (sdkmath.Int, error)

	// RecordExternalDebtPosition stores the per-unit debt of the given asset.
	// Debt is recorded as a negative unit amount per token.
	RecordExternalDebtPosition(asset string, unitsPerToken sdkmath.LegacyDec) error
}
