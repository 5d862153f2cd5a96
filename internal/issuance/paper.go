package issuance

import (
	"sync"

	sdkmath "cosmossdk.io/math"
)

// PaperAccountant is a fixed-supply accountant for paper mode and tests.
type PaperAccountant struct {
	mu     sync.RWMutex
	supply sdkmath.Int
	debt   map[string]sdkmath.LegacyDec
}

func NewPaperAccountant(totalSupply sdkmath.Int) *PaperAccountant {
	return &PaperAccountant{
		supply: totalSupply,
		debt:   make(map[string]sdkmath.LegacyDec),
	}
}

func (a *PaperAccountant) TotalSupply() (sdkmath.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.supply, nil
}

func (a *PaperAccountant) RecordExternalDebtPosition(asset string, unitsPerToken sdkmath.LegacyDec) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debt[asset] = unitsPerToken
	return nil
}

// DebtPosition returns the last recorded per-unit debt for an asset.
func (a *PaperAccountant) DebtPosition(asset string) sdkmath.LegacyDec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if d, ok := a.debt[asset]; ok {
		return d
	}
	return sdkmath.LegacyZeroDec()
}
