package lending

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/logger"
)

// EModeCategory is one efficiency-mode parameter set of the paper market.
type EModeCategory struct {
	CollateralFactor     sdkmath.LegacyDec
	LiquidationThreshold sdkmath.LegacyDec
}

// PaperMarket is an in-memory lending market used in paper mode and in tests.
// It tracks supplied and borrowed balances per asset and enforces nothing
// beyond non-negative balances; risk checks are the engine's job, the same
// division of labor a real lending market has.
type PaperMarket struct {
	mu       sync.RWMutex
	supplied map[string]sdkmath.Int
	borrowed map[string]sdkmath.Int

	categories map[uint8]EModeCategory
	active     uint8
}

// NewPaperMarket creates a market with the given default risk parameters as
// category 0.
func NewPaperMarket(collateralFactor, liquidationThreshold sdkmath.LegacyDec) *PaperMarket {
	return &PaperMarket{
		supplied: make(map[string]sdkmath.Int),
		borrowed: make(map[string]sdkmath.Int),
		categories: map[uint8]EModeCategory{
			0: {CollateralFactor: collateralFactor, LiquidationThreshold: liquidationThreshold},
		},
	}
}

// AddEModeCategory registers an efficiency-mode parameter set.
func (m *PaperMarket) AddEModeCategory(id uint8, cat EModeCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[id] = cat
}

func (m *PaperMarket) SupplyBalance(asset string) (sdkmath.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance(m.supplied, asset), nil
}

func (m *PaperMarket) BorrowBalance(asset string) (sdkmath.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance(m.borrowed, asset), nil
}

func (m *PaperMarket) CollateralFactor() (sdkmath.LegacyDec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categories[m.active].CollateralFactor, nil
}

func (m *PaperMarket) LiquidationThreshold() (sdkmath.LegacyDec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categories[m.active].LiquidationThreshold, nil
}

func (m *PaperMarket) Supply(asset string, amount sdkmath.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount.IsNegative() {
		return fmt.Errorf("supply amount must not be negative: %s", amount)
	}
	m.supplied[asset] = m.balance(m.supplied, asset).Add(amount)
	return nil
}

func (m *PaperMarket) RedeemCollateral(asset string, amount sdkmath.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := m.balance(m.supplied, asset)
	if amount.GT(have) {
		return fmt.Errorf("redeem %s exceeds supplied balance %s of %s", amount, have, asset)
	}
	m.supplied[asset] = have.Sub(amount)
	return nil
}

func (m *PaperMarket) Borrow(asset string, amount sdkmath.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount.IsNegative() {
		return fmt.Errorf("borrow amount must not be negative: %s", amount)
	}
	m.borrowed[asset] = m.balance(m.borrowed, asset).Add(amount)
	return nil
}

func (m *PaperMarket) Repay(asset string, amount sdkmath.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owed := m.balance(m.borrowed, asset)
	if amount.GT(owed) {
		return fmt.Errorf("repay %s exceeds borrowed balance %s of %s", amount, owed, asset)
	}
	m.borrowed[asset] = owed.Sub(amount)
	return nil
}

func (m *PaperMarket) SetEModeCategory(category uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[category]; !ok {
		return fmt.Errorf("unknown e-mode category %d", category)
	}
	m.active = category
	log := logger.GetForComponent("paper_lending")
	log.Info().Uint8("category", category).Msg("E-mode category switched")
	return nil
}

// balance returns the tracked amount, normalizing the zero value. Callers
// hold the lock.
func (m *PaperMarket) balance(book map[string]sdkmath.Int, asset string) sdkmath.Int {
	if v, ok := book[asset]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}
