package oracle

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/logger"
)

// PaperOracle is an in-memory price feed for paper mode. Prices are set by
// the operator (or a test) and held until replaced.
type PaperOracle struct {
	mu     sync.RWMutex
	prices map[string]sdkmath.LegacyDec
}

func NewPaperOracle() *PaperOracle {
	return &PaperOracle{prices: make(map[string]sdkmath.LegacyDec)}
}

// SetPrice replaces the quoted price for an asset.
func (o *PaperOracle) SetPrice(asset string, price sdkmath.LegacyDec) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = price
	log := logger.GetForComponent("paper_oracle")
	log.Debug().Str("asset", asset).Str("price", price.String()).Msg("Price updated")
}

// Price implements PriceOracle.
func (o *PaperOracle) Price(asset string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("no price for asset %s", asset)
	}
	return price, nil
}
