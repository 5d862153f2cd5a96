package exchange

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/oracle"
)

// PaperAdapter simulates swaps at oracle prices minus a fixed haircut. Used
// in paper mode and in tests; orders here never touch a real venue.
type PaperAdapter struct {
	name     string
	oracle   oracle.PriceOracle
	decimals map[string]uint8
	// haircut is the fraction of output lost to simulated slippage and fees.
	haircut sdkmath.LegacyDec
}

func NewPaperAdapter(name string, priceOracle oracle.PriceOracle, decimals map[string]uint8, haircut sdkmath.LegacyDec) *PaperAdapter {
	return &PaperAdapter{
		name:     name,
		oracle:   priceOracle,
		decimals: decimals,
		haircut:  haircut,
	}
}

func (p *PaperAdapter) Name() string { return p.name }

// Trade implements TradeAdapter. Output is amount * sellPrice/buyPrice scaled
// across the assets' native decimals, reduced by the haircut.
func (p *PaperAdapter) Trade(ctx context.Context, sellAsset, buyAsset string, amount, minReceive sdkmath.Int, routingPayload []byte) (sdkmath.Int, error) {
	if err := ctx.Err(); err != nil {
		return sdkmath.Int{}, err
	}
	sellDec, ok := p.decimals[sellAsset]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("paper exchange %s: unknown asset %s", p.name, sellAsset)
	}
	buyDec, ok := p.decimals[buyAsset]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("paper exchange %s: unknown asset %s", p.name, buyAsset)
	}

	sellPrice, err := p.oracle.Price(sellAsset)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("paper exchange %s: %w", p.name, err)
	}
	buyPrice, err := p.oracle.Price(buyAsset)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("paper exchange %s: %w", p.name, err)
	}

	sellValue := sellPrice.Mul(sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(sellDec)))
	outUnits := sellValue.Quo(buyPrice).Mul(sdkmath.LegacyOneDec().Sub(p.haircut))
	received := outUnits.Mul(sdkmath.LegacyNewDec(10).Power(uint64(buyDec))).TruncateInt()

	if received.LT(minReceive) {
		return sdkmath.Int{}, fmt.Errorf("paper exchange %s: received %s below min %s", p.name, received, minReceive)
	}

	log := logger.GetForComponent("paper_exchange")
	log.Debug().
		Str("exchange", p.name).
		Str("sellAsset", sellAsset).
		Str("buyAsset", buyAsset).
		Str("amount", amount.String()).
		Str("received", received.String()).
		Msg("Simulated trade filled")

	return received, nil
}
