package engine

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/leverage"
	"github.com/flexlev/flm/internal/types"
)

// Engage opens the leveraged position from an unlevered start: debt must be
// zero, collateral and token supply positive. It levers toward the target
// ratio; when the full notional exceeds the exchange's chunk cap the engine
// enters TWAP-in-progress with the target as the stored TWAP ratio.
func (e *Engine) Engage(ctx context.Context, caller, exchangeName string) (*types.TradeReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}

	li, err := e.getLeverageInfo(exchangeName, e.execution.SlippageTolerance, false)
	if err != nil {
		return nil, err
	}
	if !li.action.borrowBalance.IsZero() {
		return nil, types.ErrNonZeroDebt
	}

	chunk, _, _, final, err := e.chunkRebalanceNotional(li, e.methodology.TargetLeverageRatio)
	if err != nil {
		return nil, err
	}

	receipt := e.newReceipt("engage", exchangeName, caller, li.currentLeverageRatio)
	receipt.SellAsset = e.strategy.BorrowAsset
	receipt.BuyAsset = e.strategy.CollateralAsset
	receipt.SellAmount, receipt.ReceiveAmount, err = e.lever(ctx, li, chunk)
	if err != nil {
		return nil, err
	}

	now := e.now()
	e.updateTradeTimestamps(exchangeName, now)
	if !final {
		e.twapLeverageRatio = e.methodology.TargetLeverageRatio
	}

	receipt.LeverageAfter = e.measuredLeverageAfter(li.currentLeverageRatio)
	receipt.TwapActive = !e.twapLeverageRatio.IsZero()
	e.finishOperation(receipt)

	e.log.Info().
		Str("exchange", exchangeName).
		Str("chunk", chunk.String()).
		Bool("twap", receipt.TwapActive).
		Str("leverageAfter", receipt.LeverageAfter.String()).
		Msg("Engage executed")
	return &receipt, nil
}

// Rebalance moves the position one damped step toward the target ratio. Only
// valid while Idle; a TWAP in progress must be continued with
// IterateRebalance. Allowed when the current ratio is outside [min, max], or
// inside the band once the rebalance interval has elapsed. Ratios at or above
// the incentivized threshold must go through Ripcord instead.
func (e *Engine) Rebalance(ctx context.Context, caller, exchangeName string) (*types.TradeReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireTrader(caller); err != nil {
		return nil, err
	}
	if !e.twapLeverageRatio.IsZero() {
		return nil, types.ErrTwapInProgress
	}

	li, err := e.getLeverageInfo(exchangeName, e.execution.SlippageTolerance, false)
	if err != nil {
		return nil, err
	}
	if li.currentLeverageRatio.GTE(e.incentive.IncentivizedLeverageRatio) {
		return nil, types.ErrAboveIncentivizedRatio
	}

	outsideBounds := li.currentLeverageRatio.GT(e.methodology.MaxLeverageRatio) ||
		li.currentLeverageRatio.LT(e.methodology.MinLeverageRatio)
	if !outsideBounds && e.now().Sub(e.globalLastTradeTimestamp) < e.methodology.RebalanceInterval {
		return nil, types.ErrOutsideRebalanceWindow
	}

	newRatio := leverage.NewLeverageRatio(
		li.currentLeverageRatio,
		e.methodology.TargetLeverageRatio,
		e.methodology.MinLeverageRatio,
		e.methodology.MaxLeverageRatio,
		e.methodology.RecenteringSpeed,
	)

	receipt, err := e.executeChunk(ctx, "rebalance", caller, li, newRatio)
	if err != nil {
		return nil, err
	}
	if receipt.TwapActive {
		e.twapLeverageRatio = newRatio
	}
	e.finishOperation(*receipt)
	return receipt, nil
}

// IterateRebalance continues a TWAP-in-progress rebalance toward the stored
// TWAP target once the exchange's cooldown has elapsed. If price drift has
// already carried the ratio past the stored target, the TWAP state is cleared
// without trading.
func (e *Engine) IterateRebalance(ctx context.Context, caller, exchangeName string) (*types.TradeReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireTrader(caller); err != nil {
		return nil, err
	}
	if e.twapLeverageRatio.IsZero() {
		return nil, types.ErrNotInTwap
	}
	if err := e.requireExchangeCooldown(exchangeName, e.execution.TwapCooldownPeriod); err != nil {
		return nil, err
	}

	li, err := e.getLeverageInfo(exchangeName, e.execution.SlippageTolerance, false)
	if err != nil {
		return nil, err
	}
	if li.currentLeverageRatio.GTE(e.incentive.IncentivizedLeverageRatio) {
		return nil, types.ErrAboveIncentivizedRatio
	}

	if e.isAdvantageousTwap(li.currentLeverageRatio) {
		// Price moved past the stored target on its own; the continuation is
		// unnecessary. Clear TWAP state and stamp the operation, no trade.
		receipt := e.newReceipt("iterate", exchangeName, caller, li.currentLeverageRatio)
		e.twapLeverageRatio = sdkmath.LegacyZeroDec()
		e.updateTradeTimestamps(exchangeName, e.now())
		e.finishOperation(receipt)
		e.log.Info().Str("exchange", exchangeName).Msg("TWAP cleared without trade: price moved advantageously")
		return &receipt, nil
	}

	target := e.twapLeverageRatio
	receipt, err := e.executeChunk(ctx, "iterate", caller, li, target)
	if err != nil {
		return nil, err
	}
	if !receipt.TwapActive {
		e.twapLeverageRatio = sdkmath.LegacyZeroDec()
	}
	e.finishOperation(*receipt)
	return receipt, nil
}

// Ripcord is the emergency delever: callable by anyone once the ratio reaches
// the incentivized threshold and the incentivized cooldown has elapsed. It
// delevers toward the max leverage ratio, bounded by the incentivized chunk
// cap and the lending market's safety margin, clears any TWAP state and pays
// the caller min(etherReward, pool balance).
func (e *Engine) Ripcord(ctx context.Context, caller, exchangeName string) (*types.TradeReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireExchangeCooldown(exchangeName, e.incentive.IncentivizedTwapCooldownPeriod); err != nil {
		return nil, err
	}

	li, err := e.getLeverageInfo(exchangeName, e.incentive.IncentivizedSlippageTolerance, true)
	if err != nil {
		return nil, err
	}
	if li.currentLeverageRatio.LT(e.incentive.IncentivizedLeverageRatio) {
		return nil, types.ErrBelowIncentivizedRatio
	}

	chunk, _, _, _, err := e.chunkRebalanceNotional(li, e.methodology.MaxLeverageRatio)
	if err != nil {
		return nil, err
	}

	receipt := e.newReceipt("ripcord", exchangeName, caller, li.currentLeverageRatio)
	receipt.SellAsset = e.strategy.CollateralAsset
	receipt.BuyAsset = e.strategy.BorrowAsset
	receipt.SellAmount, receipt.ReceiveAmount, err = e.delever(ctx, li, chunk)
	if err != nil {
		return nil, err
	}

	e.twapLeverageRatio = sdkmath.LegacyZeroDec()
	e.updateTradeTimestamps(exchangeName, e.now())

	receipt.RewardPaid = e.payRipcordReward(caller)
	receipt.LeverageAfter = e.measuredLeverageAfter(li.currentLeverageRatio)
	e.finishOperation(receipt)

	e.log.Warn().
		Str("exchange", exchangeName).
		Str("caller", caller).
		Str("chunk", chunk.String()).
		Str("rewardPaid", receipt.RewardPaid.String()).
		Str("leverageAfter", receipt.LeverageAfter.String()).
		Msg("Ripcord executed")
	return &receipt, nil
}

// Disengage is the operator's manual wind-down to 1.0x (zero debt), chunked
// by the normal trade cap when the full unwind does not fit one call. It does
// not run the TWAP loop; any stored TWAP state is discarded.
func (e *Engine) Disengage(ctx context.Context, caller, exchangeName string) (*types.TradeReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}

	li, err := e.getLeverageInfo(exchangeName, e.execution.SlippageTolerance, false)
	if err != nil {
		return nil, err
	}
	if !li.action.borrowBalance.IsPositive() {
		return nil, types.ErrZeroDebt
	}

	one := sdkmath.LegacyOneDec()
	chunk, total, _, final, err := e.chunkRebalanceNotional(li, one)
	if err != nil {
		return nil, err
	}

	receipt := e.newReceipt("disengage", exchangeName, caller, li.currentLeverageRatio)
	receipt.SellAsset = e.strategy.CollateralAsset
	receipt.BuyAsset = e.strategy.BorrowAsset

	if final {
		// Last step: size the sale to retire the entire debt, padded by the
		// slippage tolerance, so no dust loan is left behind.
		redeem := leverage.MaxRedeemForDeleverToZero(
			li.action.borrowValue, li.action.collateralPrice,
			li.slippageTolerance, e.strategy.CollateralDecimals)
		redeem = sdkmath.MinInt(redeem, li.action.collateralBalance)
		if redeem.GT(total) {
			chunk = redeem
		}
	}
	receipt.SellAmount, receipt.ReceiveAmount, err = e.delever(ctx, li, chunk)
	if err != nil {
		return nil, err
	}

	e.twapLeverageRatio = sdkmath.LegacyZeroDec()
	e.updateTradeTimestamps(exchangeName, e.now())

	receipt.LeverageAfter = e.measuredLeverageAfter(li.currentLeverageRatio)
	e.finishOperation(receipt)

	e.log.Info().
		Str("exchange", exchangeName).
		Str("chunk", chunk.String()).
		Bool("complete", final).
		Str("leverageAfter", receipt.LeverageAfter.String()).
		Msg("Disengage executed")
	return &receipt, nil
}

// executeChunk runs one lever or delever step toward newRatio and stamps the
// trade clocks. The returned receipt's TwapActive reports whether the step
// left the rebalance incomplete.
func (e *Engine) executeChunk(ctx context.Context, operation, caller string, li leverageInfo, newRatio sdkmath.LegacyDec) (*types.TradeReceipt, error) {
	chunk, _, isLever, final, err := e.chunkRebalanceNotional(li, newRatio)
	if err != nil {
		return nil, err
	}

	receipt := e.newReceipt(operation, li.exchangeName, caller, li.currentLeverageRatio)
	if isLever {
		receipt.SellAsset = e.strategy.BorrowAsset
		receipt.BuyAsset = e.strategy.CollateralAsset
		receipt.SellAmount, receipt.ReceiveAmount, err = e.lever(ctx, li, chunk)
	} else {
		receipt.SellAsset = e.strategy.CollateralAsset
		receipt.BuyAsset = e.strategy.BorrowAsset
		receipt.SellAmount, receipt.ReceiveAmount, err = e.delever(ctx, li, chunk)
	}
	if err != nil {
		return nil, err
	}

	e.updateTradeTimestamps(li.exchangeName, e.now())
	receipt.TwapActive = !final
	receipt.LeverageAfter = e.measuredLeverageAfter(li.currentLeverageRatio)

	e.log.Info().
		Str("operation", operation).
		Str("exchange", li.exchangeName).
		Str("newRatio", newRatio.String()).
		Str("chunk", chunk.String()).
		Bool("twap", receipt.TwapActive).
		Str("leverageAfter", receipt.LeverageAfter.String()).
		Msg("Rebalance step executed")
	return &receipt, nil
}

// isAdvantageousTwap reports whether price drift already carried the current
// ratio past the stored TWAP target. The direction of "past" comes from which
// side of the methodology target the stored TWAP ratio sits on; the tie
// (current exactly at the stored target) counts as advantageous.
func (e *Engine) isAdvantageousTwap(current sdkmath.LegacyDec) bool {
	twap := e.twapLeverageRatio
	target := e.methodology.TargetLeverageRatio
	return (twap.LT(target) && current.GTE(twap)) ||
		(twap.GT(target) && current.LTE(twap))
}

func (e *Engine) requireExchangeCooldown(exchangeName string, cooldown time.Duration) error {
	settings, _, err := e.registry.Get(exchangeName)
	if err != nil {
		return err
	}
	if e.now().Sub(settings.ExchangeLastTradeTimestamp) < cooldown {
		return fmt.Errorf("%w: exchange %s", types.ErrCooldownNotElapsed, exchangeName)
	}
	return nil
}
