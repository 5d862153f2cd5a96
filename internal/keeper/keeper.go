/*
Package keeper is the off-chain automation that keeps the position on target:
it polls the engine's ShouldRebalance query on an interval and invokes
whichever operation each enabled exchange reports as valid. The engine's
preconditions are the source of truth; the keeper just retries on the next
cycle when an operation is rejected.
*/
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flexlev/flm/internal/engine"
	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/metrics"
	"github.com/flexlev/flm/internal/types"
)

// Keeper drives the engine from a polling loop.
type Keeper struct {
	logger zerolog.Logger
	engine *engine.Engine

	// caller is the principal identity the keeper uses on trader-gated
	// operations. It must be in the engine's allowed-traders set.
	caller string

	cycleCount int
}

// Config holds the configuration for creating a new Keeper.
type Config struct {
	Engine *engine.Engine
	Caller string
}

// New creates a keeper with dependency injection.
func New(cfg Config) (*Keeper, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Caller == "" {
		return nil, fmt.Errorf("caller identity cannot be empty")
	}
	return &Keeper{
		logger: logger.GetForComponent("keeper"),
		engine: cfg.Engine,
		caller: cfg.Caller,
	}, nil
}

// RunLoop starts the main keeper loop with the specified interval.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().Dur("interval", interval).Msg("Starting keeper main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	k.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.runCycle(ctx)
		}
	}
}

// runCycle executes one polling cycle: query, dispatch, record.
func (k *Keeper) runCycle(ctx context.Context) {
	k.cycleCount++
	metrics.KeeperCycles.Inc()

	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycle_id", cycleID).Int("cycle", k.cycleCount).Logger()

	actions, err := k.engine.ShouldRebalance()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to query shouldRebalance")
		return
	}

	current, err := k.engine.GetCurrentLeverageRatio()
	if err == nil {
		metrics.SetGauge(metrics.LeverageRatio, current)
	}
	metrics.SetGauge(metrics.TwapTargetRatio, k.engine.TwapLeverageRatio())
	metrics.SetGauge(metrics.RewardPoolBalance, k.engine.EtherBalance())

	for _, action := range actions {
		if action.Action == types.ActionNone {
			continue
		}
		k.dispatch(ctx, cycleLogger, action)
		// One trade per cycle: every operation advances the global cooldown,
		// so further dispatches this cycle would be rejected anyway.
		return
	}

	cycleLogger.Debug().Msg("No rebalancing action required")
}

func (k *Keeper) dispatch(ctx context.Context, cycleLogger zerolog.Logger, action engine.ExchangeAction) {
	cycleLogger.Info().
		Str("exchange", action.ExchangeName).
		Str("action", action.Action.String()).
		Msg("Dispatching engine operation")

	var receipt *types.TradeReceipt
	var err error
	switch action.Action {
	case types.ActionRebalance:
		receipt, err = k.engine.Rebalance(ctx, k.caller, action.ExchangeName)
	case types.ActionIterate:
		receipt, err = k.engine.IterateRebalance(ctx, k.caller, action.ExchangeName)
	case types.ActionRipcord:
		receipt, err = k.engine.Ripcord(ctx, k.caller, action.ExchangeName)
	default:
		return
	}

	if err != nil {
		metrics.OperationErrors.WithLabelValues(action.Action.String()).Inc()
		cycleLogger.Error().Err(err).
			Str("exchange", action.ExchangeName).
			Str("action", action.Action.String()).
			Msg("Engine operation rejected")
		return
	}

	metrics.Operations.WithLabelValues(receipt.Operation, receipt.ExchangeName).Inc()
	metrics.SetGauge(metrics.LeverageRatio, receipt.LeverageAfter)
	metrics.SetGauge(metrics.TwapTargetRatio, k.engine.TwapLeverageRatio())

	cycleLogger.Info().
		Str("receipt_id", receipt.ID).
		Str("operation", receipt.Operation).
		Str("exchange", receipt.ExchangeName).
		Str("leverageBefore", receipt.LeverageBefore.String()).
		Str("leverageAfter", receipt.LeverageAfter.String()).
		Bool("twapActive", receipt.TwapActive).
		Msg("Engine operation executed")
}
