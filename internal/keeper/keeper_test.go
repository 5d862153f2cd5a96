package keeper

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/flexlev/flm/internal/engine"
	"github.com/flexlev/flm/internal/exchange"
	"github.com/flexlev/flm/internal/issuance"
	"github.com/flexlev/flm/internal/lending"
	"github.com/flexlev/flm/internal/oracle"
	"github.com/flexlev/flm/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

// newTestEngine builds an unlevered 100 WETH position. At 1.0x the ratio sits
// below the methodology band, so the first keeper cycle has a rebalance to
// dispatch.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	feed := oracle.NewPaperOracle()
	feed.SetPrice("WETH", dec("2000"))
	feed.SetPrice("USDC", dec("1"))

	market := lending.NewPaperMarket(dec("0.8"), dec("0.85"))
	require.NoError(t, market.Supply("WETH", sdkmath.NewInt(100).Mul(sdkmath.NewInt(1e18))))

	reg := exchange.NewRegistry()
	adapter := exchange.NewPaperAdapter("paper", feed, map[string]uint8{"WETH": 18, "USDC": 6}, sdkmath.LegacyZeroDec())
	cap := sdkmath.NewInt(200).Mul(sdkmath.NewInt(1e18))
	require.NoError(t, reg.Add("paper", types.ExchangeSettings{
		TwapMaxTradeSize:             cap,
		IncentivizedTwapMaxTradeSize: cap,
	}, adapter))

	eng, err := engine.New(engine.Config{
		Strategy: types.StrategySettings{
			CollateralAsset: "WETH", BorrowAsset: "USDC",
			CollateralDecimals: 18, BorrowDecimals: 6,
		},
		Methodology: types.MethodologySettings{
			TargetLeverageRatio: dec("2"),
			MinLeverageRatio:    dec("1.7"),
			MaxLeverageRatio:    dec("2.3"),
			RecenteringSpeed:    dec("1"),
			RebalanceInterval:   time.Hour,
		},
		Execution: types.ExecutionSettings{
			UnutilizedLeveragePercentage: dec("0"),
			TwapCooldownPeriod:           3 * time.Minute,
			SlippageTolerance:            dec("0.02"),
		},
		Incentive: types.IncentiveSettings{
			IncentivizedLeverageRatio:      dec("2.7"),
			IncentivizedSlippageTolerance:  dec("0.05"),
			IncentivizedTwapCooldownPeriod: time.Minute,
			EtherReward:                    dec("1"),
		},
		Lending:        market,
		Oracle:         feed,
		Issuance:       issuance.NewPaperAccountant(sdkmath.NewInt(100)),
		Registry:       reg,
		Principals:     engine.Principals{Operator: "op", Methodologist: "meth"},
		AllowedTraders: []string{"keeper"},
	})
	require.NoError(t, err)
	return eng
}

func TestNewValidatesConfig(t *testing.T) {
	eng := newTestEngine(t)

	_, err := New(Config{Engine: nil, Caller: "keeper"})
	require.Error(t, err)

	_, err = New(Config{Engine: eng, Caller: ""})
	require.Error(t, err)

	k, err := New(Config{Engine: eng, Caller: "keeper"})
	require.NoError(t, err)
	require.NotNil(t, k)
}

func TestRunCycleDispatchesPendingAction(t *testing.T) {
	eng := newTestEngine(t)
	k, err := New(Config{Engine: eng, Caller: "keeper"})
	require.NoError(t, err)

	k.runCycle(context.Background())

	// Full recentering speed aims straight at the target; the borrow limit
	// caps the first chunk so the cycle leaves a TWAP in flight at 1.8x.
	current, err := eng.GetCurrentLeverageRatio()
	require.NoError(t, err)
	require.Equal(t, dec("1.8").String(), current.String())
	require.Equal(t, dec("2").String(), eng.TwapLeverageRatio().String())
}

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	eng := newTestEngine(t)
	k, err := New(Config{Engine: eng, Caller: "keeper"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.RunLoop(ctx, time.Hour)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("keeper loop did not exit after context cancellation")
	}
}

func TestRunCycleToleratesRejectedOperations(t *testing.T) {
	eng := newTestEngine(t)

	// An unauthorized caller is rejected by the engine; the cycle must absorb
	// the error and leave the position untouched.
	k, err := New(Config{Engine: eng, Caller: "imposter"})
	require.NoError(t, err)
	k.runCycle(context.Background())

	current, err := eng.GetCurrentLeverageRatio()
	require.NoError(t, err)
	require.Equal(t, dec("1").String(), current.String())
}
