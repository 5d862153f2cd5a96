package leverage

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func TestAssetValue(t *testing.T) {
	// 100 units of an 18-decimal asset at price 2000
	v := AssetValue(sdkmath.NewInt(100).Mul(sdkmath.NewInt(1e18)), dec("2000"), 18)
	if !v.Equal(dec("200000")) {
		t.Fatalf("expected 200000, got %s", v)
	}

	// 500 units of a 6-decimal asset at price 1
	v = AssetValue(sdkmath.NewInt(500_000_000), dec("1"), 6)
	if !v.Equal(dec("500")) {
		t.Fatalf("expected 500, got %s", v)
	}
}

func TestCurrentLeverageRatio(t *testing.T) {
	lr, err := CurrentLeverageRatio(dec("400000"), dec("200000"))
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if !lr.Equal(dec("2")) {
		t.Fatalf("expected 2.0, got %s", lr)
	}

	// Zero debt is exactly 1.0x.
	lr, err = CurrentLeverageRatio(dec("200000"), dec("0"))
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if !lr.Equal(dec("1")) {
		t.Fatalf("expected 1.0, got %s", lr)
	}

	if _, err := CurrentLeverageRatio(dec("0"), dec("0")); !errors.Is(err, types.ErrZeroCollateral) {
		t.Fatalf("expected ErrZeroCollateral, got %v", err)
	}

	// Debt at or above collateral makes the ratio undefined.
	if _, err := CurrentLeverageRatio(dec("200000"), dec("200000")); !errors.Is(err, types.ErrRatioUndefined) {
		t.Fatalf("expected ErrRatioUndefined, got %v", err)
	}
	if _, err := CurrentLeverageRatio(dec("200000"), dec("250000")); !errors.Is(err, types.ErrRatioUndefined) {
		t.Fatalf("expected ErrRatioUndefined, got %v", err)
	}
}

func TestNewLeverageRatio(t *testing.T) {
	min, max := dec("1.7"), dec("2.3")

	// Half the gap to target is closed at speed 0.5.
	got := NewLeverageRatio(dec("1.8"), dec("2"), min, max, dec("0.5"))
	if !got.Equal(dec("1.9")) {
		t.Fatalf("expected 1.9, got %s", got)
	}

	// A slow speed from far below target clamps to min.
	got = NewLeverageRatio(dec("1.0"), dec("2"), min, max, dec("0.05"))
	if !got.Equal(min) {
		t.Fatalf("expected clamp to %s, got %s", min, got)
	}

	// And from far above target clamps to max.
	got = NewLeverageRatio(dec("3.0"), dec("2"), min, max, dec("0.05"))
	if !got.Equal(max) {
		t.Fatalf("expected clamp to %s, got %s", max, got)
	}

	// Speed 1 snaps straight to target.
	got = NewLeverageRatio(dec("1.8"), dec("2"), min, max, dec("1"))
	if !got.Equal(dec("2")) {
		t.Fatalf("expected 2.0, got %s", got)
	}
}

func TestCollateralRebalanceUnits(t *testing.T) {
	balance := sdkmath.NewInt(180).Mul(sdkmath.NewInt(1e18))
	supply := sdkmath.NewInt(100)

	// 1.8 -> 2.0 on 180 units trades |0.2|/1.8 of the balance, about 20 units.
	got, err := CollateralRebalanceUnits(dec("1.8"), dec("2"), balance, supply)
	if err != nil {
		t.Fatalf("rebalance units: %v", err)
	}
	want := sdkmath.NewInt(20).Mul(sdkmath.NewInt(1e18))
	if diff := want.Sub(got).Abs(); diff.GT(sdkmath.NewInt(1000)) {
		t.Fatalf("expected ~%s, got %s (diff %s)", want, got, diff)
	}

	// Direction does not matter, only the magnitude of the delta.
	down, err := CollateralRebalanceUnits(dec("1.8"), dec("1.6"), balance, supply)
	if err != nil {
		t.Fatalf("rebalance units: %v", err)
	}
	up, err := CollateralRebalanceUnits(dec("1.8"), dec("2.0"), balance, supply)
	if err != nil {
		t.Fatalf("rebalance units: %v", err)
	}
	if !down.Equal(up) {
		t.Fatalf("expected symmetric notional, got %s vs %s", down, up)
	}

	if _, err := CollateralRebalanceUnits(dec("1.8"), dec("2"), balance, sdkmath.ZeroInt()); !errors.Is(err, types.ErrZeroSupply) {
		t.Fatalf("expected ErrZeroSupply, got %v", err)
	}
	if _, err := CollateralRebalanceUnits(dec("0"), dec("2"), balance, supply); !errors.Is(err, types.ErrRatioUndefined) {
		t.Fatalf("expected ErrRatioUndefined, got %v", err)
	}
}

func TestMaxBorrowForLever(t *testing.T) {
	// Fresh position: headroom is collateralValue * collateralFactor / price.
	got := MaxBorrowForLever(dec("200000"), dec("0"), dec("0.8"), dec("0"), dec("2000"), 18)
	want := sdkmath.NewInt(80).Mul(sdkmath.NewInt(1e18))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// The unutilized margin shrinks the limit.
	got = MaxBorrowForLever(dec("200000"), dec("0"), dec("0.8"), dec("0.1"), dec("2000"), 18)
	want = sdkmath.NewInt(72).Mul(sdkmath.NewInt(1e18))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// At or past the borrow limit nothing more can be levered.
	got = MaxBorrowForLever(dec("200000"), dec("160000"), dec("0.8"), dec("0"), dec("2000"), 18)
	if !got.IsZero() {
		t.Fatalf("expected zero headroom, got %s", got)
	}
}

func TestMaxBorrowForDelever(t *testing.T) {
	balance := sdkmath.NewInt(200).Mul(sdkmath.NewInt(1e18))

	got := MaxBorrowForDelever(dec("300000"), dec("200000"), dec("0.85"), dec("0"), balance)
	// netRepayLimit 255000, fraction 55000/255000 of 200 units
	low := dec("43.1").MulInt64(1e18).TruncateInt()
	high := dec("43.2").MulInt64(1e18).TruncateInt()
	if got.LT(low) || got.GT(high) {
		t.Fatalf("expected bound in [%s, %s], got %s", low, high, got)
	}

	// Debt above the repay limit: no safe redeem at all.
	got = MaxBorrowForDelever(dec("300000"), dec("260000"), dec("0.85"), dec("0"), balance)
	if !got.IsZero() {
		t.Fatalf("expected zero bound, got %s", got)
	}
}

func TestDenormalize(t *testing.T) {
	// 39999.99999999999996 at 6 decimals truncates the sub-unit dust.
	got := Denormalize(dec("39999.99999999999996"), 6)
	if !got.Equal(sdkmath.NewInt(39_999_999_999)) {
		t.Fatalf("expected 39999999999, got %s", got)
	}

	// 18-decimal assets carry the full precision through.
	got = Denormalize(dec("1.5"), 18)
	want := dec("1.5").MulInt64(1e18).TruncateInt()
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestMaxRedeemForDeleverToZero(t *testing.T) {
	got := MaxRedeemForDeleverToZero(dec("200000"), dec("2000"), dec("0.02"), 18)
	want := sdkmath.NewInt(102).Mul(sdkmath.NewInt(1e18))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	if got := MaxRedeemForDeleverToZero(dec("0"), dec("2000"), dec("0.02"), 18); !got.IsZero() {
		t.Fatalf("expected zero redeem for zero debt, got %s", got)
	}
}
