package exchange

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/oracle"
)

func TestPaperAdapterTrade(t *testing.T) {
	feed := oracle.NewPaperOracle()
	feed.SetPrice("WETH", sdkmath.LegacyNewDec(2000))
	feed.SetPrice("USDC", sdkmath.LegacyOneDec())

	decimals := map[string]uint8{"WETH": 18, "USDC": 6}
	adapter := NewPaperAdapter("paper", feed, decimals, sdkmath.LegacyZeroDec())

	// 160,000 USDC buys exactly 80 WETH at 2000 with no haircut.
	sell := sdkmath.NewInt(160_000_000_000) // 160000 * 1e6
	got, err := adapter.Trade(context.Background(), "USDC", "WETH", sell, sdkmath.ZeroInt(), nil)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	want := sdkmath.NewInt(80).Mul(sdkmath.NewInt(1e18))
	if !got.Equal(want) {
		t.Fatalf("expected %s WETH, got %s", want, got)
	}

	// And back the other way across the decimal gap.
	got, err = adapter.Trade(context.Background(), "WETH", "USDC", want, sdkmath.ZeroInt(), nil)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if !got.Equal(sell) {
		t.Fatalf("expected %s USDC, got %s", sell, got)
	}
}

func TestPaperAdapterHaircutAndMinReceive(t *testing.T) {
	feed := oracle.NewPaperOracle()
	feed.SetPrice("WETH", sdkmath.LegacyNewDec(2000))
	feed.SetPrice("USDC", sdkmath.LegacyOneDec())

	decimals := map[string]uint8{"WETH": 18, "USDC": 6}
	haircut := sdkmath.LegacyMustNewDecFromStr("0.01")
	adapter := NewPaperAdapter("paper", feed, decimals, haircut)

	oneWeth := sdkmath.NewInt(1e18)
	got, err := adapter.Trade(context.Background(), "WETH", "USDC", oneWeth, sdkmath.ZeroInt(), nil)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	want := sdkmath.NewInt(1_980_000_000) // 2000 * 0.99 in 6 decimals
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// A minReceive above the haircut fill must reject the trade.
	if _, err := adapter.Trade(context.Background(), "WETH", "USDC", oneWeth, sdkmath.NewInt(2_000_000_000), nil); err == nil {
		t.Fatal("expected minReceive rejection")
	}

	if _, err := adapter.Trade(context.Background(), "WETH", "DOGE", oneWeth, sdkmath.ZeroInt(), nil); err == nil {
		t.Fatal("expected unknown asset rejection")
	}
}
