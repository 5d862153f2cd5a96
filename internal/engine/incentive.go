package engine

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Incentive engine: the ether pool funding ripcord payouts. Anyone may top it
// up; only the operator may drain it, and not while a rebalance is in
// progress so an in-flight emergency cannot have its incentive pulled away.

// DepositEtherReward credits the reward pool. Callable by anyone: treasury
// top-ups are just transfers in.
func (e *Engine) DepositEtherReward(amount sdkmath.LegacyDec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive")
	}
	e.rewardBalance = e.rewardBalance.Add(amount)
	e.log.Info().Str("amount", amount.String()).Str("balance", e.rewardBalance.String()).Msg("Reward pool topped up")
	return nil
}

// GetCurrentEtherIncentive returns what a ripcord caller would be paid right
// now: zero below the incentivized threshold, otherwise the reward capped by
// the pool balance.
func (e *Engine) GetCurrentEtherIncentive() (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentLeverageRatio()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if current.LT(e.incentive.IncentivizedLeverageRatio) {
		return sdkmath.LegacyZeroDec(), nil
	}
	return sdkmath.LegacyMinDec(e.incentive.EtherReward, e.rewardBalance), nil
}

// EtherBalance returns the current reward pool balance.
func (e *Engine) EtherBalance() sdkmath.LegacyDec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewardBalance
}

// WithdrawEtherBalance drains the reward pool to the operator. Blocked while
// a rebalance is in progress unless overridden.
func (e *Engine) WithdrawEtherBalance(caller string) (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if err := e.requireNoRebalanceInProgress(); err != nil {
		return sdkmath.LegacyDec{}, err
	}

	withdrawn := e.rewardBalance
	e.rewardBalance = sdkmath.LegacyZeroDec()
	e.log.Info().Str("amount", withdrawn.String()).Msg("Reward pool withdrawn")
	return withdrawn, nil
}

// payRipcordReward pays min(etherReward, balance) and debits the pool. An
// empty pool pays zero; ripcord is never blocked on funding.
// Callers hold the engine lock.
func (e *Engine) payRipcordReward(caller string) sdkmath.LegacyDec {
	payout := sdkmath.LegacyMinDec(e.incentive.EtherReward, e.rewardBalance)
	if !payout.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	e.rewardBalance = e.rewardBalance.Sub(payout)
	e.log.Info().
		Str("caller", caller).
		Str("payout", payout.String()).
		Str("remaining", e.rewardBalance.String()).
		Msg("Ripcord reward paid")
	return payout
}
