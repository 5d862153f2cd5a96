/*
Package engine implements the leverage rebalancing state machine: engage,
rebalance, TWAP iteration, the emergency ripcord and the operator disengage,
plus the gated settings mutators and the caller-incentive accounting.

The engine has two states, tracked by a single field: Idle when
twapLeverageRatio is zero, TWAP-in-progress otherwise. Every operation is
all-or-nothing: preconditions are validated up front and engine state is only
mutated after the trade and lending actions succeed.
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flexlev/flm/internal/exchange"
	"github.com/flexlev/flm/internal/issuance"
	"github.com/flexlev/flm/internal/lending"
	"github.com/flexlev/flm/internal/leverage"
	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/oracle"
	"github.com/flexlev/flm/internal/types"
)

// Principals are the two parties that govern the engine. The operator runs
// day-to-day settings; replacing either principal needs both to confirm (see
// mutual.go).
type Principals struct {
	Operator      string
	Methodologist string
}

// Recorder persists executed trades and engine state. Persistence failures
// are logged, never allowed to fail an otherwise successful operation.
type Recorder interface {
	RecordTrade(receipt types.TradeReceipt) error
	SaveEngineState(twapLeverageRatio sdkmath.LegacyDec, globalLastTrade time.Time, override bool, rewardBalance sdkmath.LegacyDec) error
}

// Config wires the engine's collaborators and initial settings.
type Config struct {
	Strategy    types.StrategySettings
	Methodology types.MethodologySettings
	Execution   types.ExecutionSettings
	Incentive   types.IncentiveSettings

	Lending  lending.PositionAccessor
	Oracle   oracle.PriceOracle
	Issuance issuance.Accountant
	Registry *exchange.Registry

	Principals Principals
	// AllowedTraders may call rebalance/iterate in addition to the operator.
	// Ripcord is callable by anyone regardless.
	AllowedTraders []string
	// AnyoneTrade opens rebalance/iterate to all callers.
	AnyoneTrade bool

	// Recorder is optional; a nil recorder disables persistence.
	Recorder Recorder
	// Now is the time source, defaulting to time.Now. Tests inject a fake.
	Now func() time.Time
}

// Engine is the rebalancing controller. All operations serialize on one
// mutex: the execution model is a single global ordering of atomic steps,
// with cooldown timestamps and the Idle/TWAP flag as the concurrency
// discipline between competing external callers.
type Engine struct {
	mu  sync.Mutex
	log zerolog.Logger

	strategy    types.StrategySettings
	methodology types.MethodologySettings
	execution   types.ExecutionSettings
	incentive   types.IncentiveSettings

	lending  lending.PositionAccessor
	oracle   oracle.PriceOracle
	issuance issuance.Accountant
	registry *exchange.Registry

	principals     Principals
	allowedTraders map[string]bool
	anyoneTrade    bool

	// twapLeverageRatio is the single source of truth for the engine state:
	// zero means Idle, nonzero holds the in-flight target of a multi-step
	// rebalance.
	twapLeverageRatio             sdkmath.LegacyDec
	globalLastTradeTimestamp      time.Time
	overrideNoRebalanceInProgress bool

	// rewardBalance is the ether pool funding ripcord payouts, topped up via
	// DepositEtherReward from any source.
	rewardBalance sdkmath.LegacyDec

	pendingUpgrades map[[32]byte]pendingUpgrade

	recorder Recorder
	now      func() time.Time
}

// New validates the configuration and returns an Idle engine.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedTraders))
	for _, t := range cfg.AllowedTraders {
		allowed[t] = true
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		log:               logger.GetForComponent("rebalance_engine"),
		strategy:          cfg.Strategy,
		methodology:       cfg.Methodology,
		execution:         cfg.Execution,
		incentive:         cfg.Incentive,
		lending:           cfg.Lending,
		oracle:            cfg.Oracle,
		issuance:          cfg.Issuance,
		registry:          cfg.Registry,
		principals:        cfg.Principals,
		allowedTraders:    allowed,
		anyoneTrade:       cfg.AnyoneTrade,
		twapLeverageRatio: sdkmath.LegacyZeroDec(),
		rewardBalance:     sdkmath.LegacyZeroDec(),
		pendingUpgrades:   make(map[[32]byte]pendingUpgrade),
		recorder:          cfg.Recorder,
		now:               now,
	}

	e.log.Info().
		Str("collateralAsset", cfg.Strategy.CollateralAsset).
		Str("borrowAsset", cfg.Strategy.BorrowAsset).
		Str("targetLeverageRatio", cfg.Methodology.TargetLeverageRatio.String()).
		Msg("Rebalance engine created")

	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Lending == nil {
		return fmt.Errorf("lending accessor cannot be nil")
	}
	if cfg.Oracle == nil {
		return fmt.Errorf("price oracle cannot be nil")
	}
	if cfg.Issuance == nil {
		return fmt.Errorf("issuance accountant cannot be nil")
	}
	if cfg.Registry == nil {
		return fmt.Errorf("exchange registry cannot be nil")
	}
	if cfg.Principals.Operator == "" || cfg.Principals.Methodologist == "" {
		return fmt.Errorf("operator and methodologist principals must be set")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return err
	}
	return types.ValidateSettings(cfg.Methodology, cfg.Execution, cfg.Incentive)
}

// RestoreState reloads persisted runtime state after a restart so cooldowns
// and an in-flight TWAP survive a process bounce.
func (e *Engine) RestoreState(twapLeverageRatio sdkmath.LegacyDec, globalLastTrade time.Time, override bool, rewardBalance sdkmath.LegacyDec) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !twapLeverageRatio.IsNil() {
		e.twapLeverageRatio = twapLeverageRatio
	}
	e.globalLastTradeTimestamp = globalLastTrade
	e.overrideNoRebalanceInProgress = override
	if !rewardBalance.IsNil() {
		e.rewardBalance = rewardBalance
	}
	e.log.Info().
		Str("twapLeverageRatio", e.twapLeverageRatio.String()).
		Time("globalLastTrade", globalLastTrade).
		Msg("Engine state restored from storage")
}

// actionInfo is one consistent read of the position: balances, prices and
// derived 18-decimal values, taken at the start of an operation.
type actionInfo struct {
	collateralBalance sdkmath.Int
	borrowBalance     sdkmath.Int
	collateralPrice   sdkmath.LegacyDec
	borrowPrice       sdkmath.LegacyDec
	collateralValue   sdkmath.LegacyDec
	borrowValue       sdkmath.LegacyDec
	totalSupply       sdkmath.Int
}

func (e *Engine) createActionInfo() (actionInfo, error) {
	var ai actionInfo
	var err error

	if ai.collateralBalance, err = e.lending.SupplyBalance(e.strategy.CollateralAsset); err != nil {
		return ai, fmt.Errorf("failed to read supply balance: %w", err)
	}
	if ai.borrowBalance, err = e.lending.BorrowBalance(e.strategy.BorrowAsset); err != nil {
		return ai, fmt.Errorf("failed to read borrow balance: %w", err)
	}
	if ai.collateralPrice, err = e.oracle.Price(e.strategy.CollateralAsset); err != nil {
		return ai, fmt.Errorf("failed to read collateral price: %w", err)
	}
	if ai.borrowPrice, err = e.oracle.Price(e.strategy.BorrowAsset); err != nil {
		return ai, fmt.Errorf("failed to read borrow price: %w", err)
	}
	if ai.totalSupply, err = e.issuance.TotalSupply(); err != nil {
		return ai, fmt.Errorf("failed to read total supply: %w", err)
	}

	if !ai.collateralBalance.IsPositive() {
		return ai, types.ErrZeroCollateral
	}
	if !ai.totalSupply.IsPositive() {
		return ai, types.ErrZeroSupply
	}

	ai.collateralValue = leverage.AssetValue(ai.collateralBalance, ai.collateralPrice, e.strategy.CollateralDecimals)
	ai.borrowValue = leverage.AssetValue(ai.borrowBalance, ai.borrowPrice, e.strategy.BorrowDecimals)
	return ai, nil
}

// leverageInfo bundles the action snapshot with the per-operation execution
// parameters: slippage tolerance, the acting exchange and its trade cap.
type leverageInfo struct {
	action               actionInfo
	currentLeverageRatio sdkmath.LegacyDec
	slippageTolerance    sdkmath.LegacyDec
	twapMaxTradeSize     sdkmath.Int
	exchangeName         string
	exchangeSettings     types.ExchangeSettings
	adapter              exchange.TradeAdapter
}

func (e *Engine) getLeverageInfo(exchangeName string, slippage sdkmath.LegacyDec, incentivized bool) (leverageInfo, error) {
	settings, adapter, err := e.registry.Get(exchangeName)
	if err != nil {
		return leverageInfo{}, err
	}

	ai, err := e.createActionInfo()
	if err != nil {
		return leverageInfo{}, err
	}

	current, err := leverage.CurrentLeverageRatio(ai.collateralValue, ai.borrowValue)
	if err != nil {
		return leverageInfo{}, err
	}

	maxTradeSize := settings.TwapMaxTradeSize
	if incentivized {
		maxTradeSize = settings.IncentivizedTwapMaxTradeSize
	}

	return leverageInfo{
		action:               ai,
		currentLeverageRatio: current,
		slippageTolerance:    slippage,
		twapMaxTradeSize:     maxTradeSize,
		exchangeName:         exchangeName,
		exchangeSettings:     settings,
		adapter:              adapter,
	}, nil
}

// chunkRebalanceNotional sizes one step toward newLeverageRatio: the total
// collateral notional required, bounded by the exchange's cap and, on the
// delever side, by the lending market's safety margin.
func (e *Engine) chunkRebalanceNotional(li leverageInfo, newLeverageRatio sdkmath.LegacyDec) (chunk, total sdkmath.Int, isLever, final bool, err error) {
	total, err = leverage.CollateralRebalanceUnits(
		li.currentLeverageRatio, newLeverageRatio, li.action.collateralBalance, li.action.totalSupply)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, false, false, err
	}

	isLever = newLeverageRatio.GT(li.currentLeverageRatio)

	var bound sdkmath.Int
	if isLever {
		collateralFactor, cfErr := e.lending.CollateralFactor()
		if cfErr != nil {
			return sdkmath.Int{}, sdkmath.Int{}, false, false, fmt.Errorf("failed to read collateral factor: %w", cfErr)
		}
		bound = leverage.MaxBorrowForLever(
			li.action.collateralValue, li.action.borrowValue,
			collateralFactor, e.execution.UnutilizedLeveragePercentage,
			li.action.collateralPrice, e.strategy.CollateralDecimals)
	} else {
		liqThreshold, ltErr := e.lending.LiquidationThreshold()
		if ltErr != nil {
			return sdkmath.Int{}, sdkmath.Int{}, false, false, fmt.Errorf("failed to read liquidation threshold: %w", ltErr)
		}
		bound = leverage.MaxBorrowForDelever(
			li.action.collateralValue, li.action.borrowValue,
			liqThreshold, e.execution.UnutilizedLeveragePercentage,
			li.action.collateralBalance)
	}

	chunk, final = exchange.BoundedChunk(total, li.twapMaxTradeSize, bound)
	return chunk, total, isLever, final, nil
}

// lever borrows the debt asset, swaps it for collateral and supplies the
// proceeds. chunkCollateral is the collateral notional to acquire. On a trade
// failure the borrow is repaid so the position is left unchanged.
func (e *Engine) lever(ctx context.Context, li leverageInfo, chunkCollateral sdkmath.Int) (sold, received sdkmath.Int, err error) {
	chunkValue := leverage.AssetValue(chunkCollateral, li.action.collateralPrice, e.strategy.CollateralDecimals)
	borrowUnits := leverage.Denormalize(chunkValue.Quo(li.action.borrowPrice), e.strategy.BorrowDecimals)
	if !borrowUnits.IsPositive() {
		// Nothing to borrow at this position's scale. Treat the step as a
		// completed no-op rather than failing a keeper cycle over dust.
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	minReceive := sdkmath.LegacyOneDec().Sub(li.slippageTolerance).MulInt(chunkCollateral).TruncateInt()

	if err := e.lending.Borrow(e.strategy.BorrowAsset, borrowUnits); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("borrow failed: %w", err)
	}

	received, err = li.adapter.Trade(ctx,
		e.strategy.BorrowAsset, e.strategy.CollateralAsset,
		borrowUnits, minReceive, li.exchangeSettings.LeverExchangeData)
	if err != nil {
		if repayErr := e.lending.Repay(e.strategy.BorrowAsset, borrowUnits); repayErr != nil {
			e.log.Error().Err(repayErr).Msg("Failed to unwind borrow after trade failure")
		}
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("lever trade failed: %w", err)
	}

	if err := e.lending.Supply(e.strategy.CollateralAsset, received); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("supply failed: %w", err)
	}

	e.recordDebtUnits(li.action.totalSupply)
	return borrowUnits, received, nil
}

// delever redeems collateral, swaps it for the debt asset and repays. Repay
// is capped at the outstanding debt; any excess proceeds are supplied back to
// the lending market.
func (e *Engine) delever(ctx context.Context, li leverageInfo, chunkCollateral sdkmath.Int) (sold, received sdkmath.Int, err error) {
	if !li.action.borrowBalance.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, types.ErrZeroDebt
	}
	if !chunkCollateral.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	chunkValue := leverage.AssetValue(chunkCollateral, li.action.collateralPrice, e.strategy.CollateralDecimals)
	minReceiveUnits := chunkValue.Quo(li.action.borrowPrice).
		Mul(sdkmath.LegacyOneDec().Sub(li.slippageTolerance))
	minReceive := leverage.Denormalize(minReceiveUnits, e.strategy.BorrowDecimals)

	if err := e.lending.RedeemCollateral(e.strategy.CollateralAsset, chunkCollateral); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("redeem failed: %w", err)
	}

	received, err = li.adapter.Trade(ctx,
		e.strategy.CollateralAsset, e.strategy.BorrowAsset,
		chunkCollateral, minReceive, li.exchangeSettings.DeleverExchangeData)
	if err != nil {
		if supplyErr := e.lending.Supply(e.strategy.CollateralAsset, chunkCollateral); supplyErr != nil {
			e.log.Error().Err(supplyErr).Msg("Failed to restore collateral after trade failure")
		}
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("delever trade failed: %w", err)
	}

	repay := sdkmath.MinInt(received, li.action.borrowBalance)
	if err := e.lending.Repay(e.strategy.BorrowAsset, repay); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("repay failed: %w", err)
	}
	if excess := received.Sub(repay); excess.IsPositive() {
		if err := e.lending.Supply(e.strategy.BorrowAsset, excess); err != nil {
			return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("supply of excess proceeds failed: %w", err)
		}
	}

	e.recordDebtUnits(li.action.totalSupply)
	return chunkCollateral, received, nil
}

// recordDebtUnits reports the post-trade per-unit debt to the issuance
// collaborator. Best effort: accounting lag is tolerable, a failed trade is
// not.
func (e *Engine) recordDebtUnits(totalSupply sdkmath.Int) {
	borrowBalance, err := e.lending.BorrowBalance(e.strategy.BorrowAsset)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to read borrow balance for debt accounting")
		return
	}
	unitsPerToken := sdkmath.LegacyNewDecFromInt(borrowBalance).Neg().QuoInt(totalSupply)
	if err := e.issuance.RecordExternalDebtPosition(e.strategy.BorrowAsset, unitsPerToken); err != nil {
		e.log.Error().Err(err).Msg("Failed to record external debt position")
	}
}

// updateTradeTimestamps advances the global clock and the acting exchange's
// own cooldown clock. Every trading operation calls this exactly once, after
// the trade succeeded.
func (e *Engine) updateTradeTimestamps(exchangeName string, at time.Time) {
	e.globalLastTradeTimestamp = at
	if err := e.registry.RecordTrade(exchangeName, at); err != nil {
		e.log.Error().Err(err).Str("exchange", exchangeName).Msg("Failed to record exchange trade timestamp")
	}
}

// finishOperation persists state and the receipt, best effort.
func (e *Engine) finishOperation(receipt types.TradeReceipt) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordTrade(receipt); err != nil {
		e.log.Error().Err(err).Str("operation", receipt.Operation).Msg("Failed to persist trade receipt")
	}
	if err := e.recorder.SaveEngineState(e.twapLeverageRatio, e.globalLastTradeTimestamp, e.overrideNoRebalanceInProgress, e.rewardBalance); err != nil {
		e.log.Error().Err(err).Msg("Failed to persist engine state")
	}
}

func (e *Engine) newReceipt(operation, exchangeName, caller string, before sdkmath.LegacyDec) types.TradeReceipt {
	return types.TradeReceipt{
		ID:             uuid.New().String(),
		Operation:      operation,
		ExchangeName:   exchangeName,
		Caller:         caller,
		LeverageBefore: before,
		LeverageAfter:  before,
		SellAmount:     sdkmath.ZeroInt(),
		ReceiveAmount:  sdkmath.ZeroInt(),
		RewardPaid:     sdkmath.LegacyZeroDec(),
		Timestamp:      e.now(),
	}
}

// measuredLeverageAfter recomputes the ratio after an operation for the
// receipt. Falls back to the pre-trade ratio on read errors.
func (e *Engine) measuredLeverageAfter(fallback sdkmath.LegacyDec) sdkmath.LegacyDec {
	ai, err := e.createActionInfo()
	if err != nil {
		return fallback
	}
	current, err := leverage.CurrentLeverageRatio(ai.collateralValue, ai.borrowValue)
	if err != nil {
		return fallback
	}
	return current
}

// authorization helpers

func (e *Engine) requireOperator(caller string) error {
	if caller != e.principals.Operator {
		return fmt.Errorf("%w: %s is not the operator", types.ErrUnauthorized, caller)
	}
	return nil
}

func (e *Engine) requireTrader(caller string) error {
	if e.anyoneTrade || caller == e.principals.Operator || e.allowedTraders[caller] {
		return nil
	}
	return fmt.Errorf("%w: %s is not an allowed trader", types.ErrUnauthorized, caller)
}

// requireNoRebalanceInProgress blocks risk-changing mutations mid-TWAP unless
// the operator set the override escape hatch.
func (e *Engine) requireNoRebalanceInProgress() error {
	if !e.twapLeverageRatio.IsZero() && !e.overrideNoRebalanceInProgress {
		return types.ErrRebalanceInProgress
	}
	return nil
}
