package types

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func validMethodology() MethodologySettings {
	return MethodologySettings{
		TargetLeverageRatio: dec("2"),
		MinLeverageRatio:    dec("1.7"),
		MaxLeverageRatio:    dec("2.3"),
		RecenteringSpeed:    dec("0.05"),
		RebalanceInterval:   24 * time.Hour,
	}
}

func validExecution() ExecutionSettings {
	return ExecutionSettings{
		UnutilizedLeveragePercentage: dec("0.1"),
		TwapCooldownPeriod:           3 * time.Minute,
		SlippageTolerance:            dec("0.02"),
	}
}

func validIncentive() IncentiveSettings {
	return IncentiveSettings{
		IncentivizedLeverageRatio:      dec("2.7"),
		IncentivizedSlippageTolerance:  dec("0.05"),
		IncentivizedTwapCooldownPeriod: time.Minute,
		EtherReward:                    dec("1"),
	}
}

func TestValidateSettingsAccepts(t *testing.T) {
	if err := ValidateSettings(validMethodology(), validExecution(), validIncentive()); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
}

func TestValidateSettingsRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MethodologySettings, *ExecutionSettings, *IncentiveSettings)
		want   error
	}{
		{
			name:   "min above target",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) { m.MinLeverageRatio = dec("2.1") },
			want:   ErrInvalidMethodology,
		},
		{
			name:   "min below one",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) { m.MinLeverageRatio = dec("0.9") },
			want:   ErrInvalidMethodology,
		},
		{
			name:   "max below target",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) { m.MaxLeverageRatio = dec("1.9") },
			want:   ErrInvalidMethodology,
		},
		{
			name:   "zero recentering speed",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) { m.RecenteringSpeed = dec("0") },
			want:   ErrInvalidMethodology,
		},
		{
			name:   "recentering speed above one",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) { m.RecenteringSpeed = dec("1.5") },
			want:   ErrInvalidMethodology,
		},
		{
			name: "rebalance interval below twap cooldown",
			mutate: func(m *MethodologySettings, _ *ExecutionSettings, _ *IncentiveSettings) {
				m.RebalanceInterval = time.Minute
			},
			want: ErrInvalidMethodology,
		},
		{
			name: "unutilized leverage at 100%",
			mutate: func(_ *MethodologySettings, e *ExecutionSettings, _ *IncentiveSettings) {
				e.UnutilizedLeveragePercentage = dec("1")
			},
			want: ErrInvalidExecution,
		},
		{
			name:   "slippage at 100%",
			mutate: func(_ *MethodologySettings, e *ExecutionSettings, _ *IncentiveSettings) { e.SlippageTolerance = dec("1") },
			want:   ErrInvalidExecution,
		},
		{
			name: "incentivized slippage at 100%",
			mutate: func(_ *MethodologySettings, _ *ExecutionSettings, i *IncentiveSettings) {
				i.IncentivizedSlippageTolerance = dec("1")
			},
			want: ErrInvalidIncentive,
		},
		{
			name: "incentivized ratio not above max",
			mutate: func(_ *MethodologySettings, _ *ExecutionSettings, i *IncentiveSettings) {
				i.IncentivizedLeverageRatio = dec("2.3")
			},
			want: ErrInvalidIncentive,
		},
		{
			name: "twap cooldown below incentivized cooldown",
			mutate: func(_ *MethodologySettings, _ *ExecutionSettings, i *IncentiveSettings) {
				i.IncentivizedTwapCooldownPeriod = time.Hour
			},
			want: ErrInvalidExecution,
		},
		{
			name:   "negative ether reward",
			mutate: func(_ *MethodologySettings, _ *ExecutionSettings, i *IncentiveSettings) { i.EtherReward = dec("-1") },
			want:   ErrInvalidIncentive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, e, i := validMethodology(), validExecution(), validIncentive()
			tc.mutate(&m, &e, &i)
			err := ValidateSettings(m, e, i)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExchangeSettingsValidate(t *testing.T) {
	ok := ExchangeSettings{
		TwapMaxTradeSize:             sdkmath.NewInt(100),
		IncentivizedTwapMaxTradeSize: sdkmath.NewInt(400),
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid exchange settings rejected: %v", err)
	}

	zero := ok
	zero.TwapMaxTradeSize = sdkmath.ZeroInt()
	if err := zero.Validate(); !errors.Is(err, ErrZeroTradeSize) {
		t.Fatalf("expected ErrZeroTradeSize, got %v", err)
	}

	var unset ExchangeSettings
	if err := unset.Validate(); !errors.Is(err, ErrZeroTradeSize) {
		t.Fatalf("expected ErrZeroTradeSize for unset sizes, got %v", err)
	}
}

func TestStrategySettingsValidate(t *testing.T) {
	s := StrategySettings{CollateralAsset: "WETH", BorrowAsset: "USDC", CollateralDecimals: 18, BorrowDecimals: 6}
	if err := s.Validate(); err != nil {
		t.Fatalf("valid strategy rejected: %v", err)
	}

	same := s
	same.BorrowAsset = "WETH"
	if err := same.Validate(); err == nil {
		t.Fatal("expected error for identical assets")
	}

	deep := s
	deep.CollateralDecimals = 19
	if err := deep.Validate(); err == nil {
		t.Fatal("expected error for decimals above 18")
	}
}
