package config

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Paper-mode bootstrap configuration loaded from environment variables.
// These seed the simulated oracle, lending market and exchange so a fresh
// deployment can engage immediately. All values have sane defaults and are
// only read when FLM_MODE=paper.
var (
	// PaperCollateralPrice is the starting oracle price of the collateral asset.
	PaperCollateralPrice sdkmath.LegacyDec
	// PaperBorrowPrice is the starting oracle price of the borrow asset.
	PaperBorrowPrice sdkmath.LegacyDec
	// PaperInitialCollateral is the collateral seeded into the lending
	// position, in base units of the collateral asset.
	PaperInitialCollateral sdkmath.Int
	// PaperInitialSupply is the token supply the accountant starts with,
	// in base units.
	PaperInitialSupply sdkmath.Int
	// PaperCollateralFactor is the simulated market's borrow limit fraction.
	PaperCollateralFactor sdkmath.LegacyDec
	// PaperLiquidationThreshold is the simulated market's liquidation bound.
	// Must be >= PaperCollateralFactor.
	PaperLiquidationThreshold sdkmath.LegacyDec
	// PaperTradeHaircut is the price degradation the simulated exchange
	// applies to every fill.
	PaperTradeHaircut sdkmath.LegacyDec
)

// loadPaperConfig loads paper-mode bootstrap values from environment variables.
// This function is called by LoadConfig() in General.go.
func loadPaperConfig() error {
	log.Info().Msg("Loading paper-mode bootstrap configuration...")

	var err error

	PaperCollateralPrice, err = getEnvAsDec("PAPER_COLLATERAL_PRICE", "2000.0")
	if err != nil {
		return err
	}

	PaperBorrowPrice, err = getEnvAsDec("PAPER_BORROW_PRICE", "1.0")
	if err != nil {
		return err
	}

	PaperInitialCollateral, err = getEnvAsInt("PAPER_INITIAL_COLLATERAL", "1000000000000000000000") // 1000 units at 18 decimals
	if err != nil {
		return err
	}

	PaperInitialSupply, err = getEnvAsInt("PAPER_INITIAL_SUPPLY", "1000000000000000000000")
	if err != nil {
		return err
	}

	PaperCollateralFactor, err = getEnvAsDec("PAPER_COLLATERAL_FACTOR", "0.80")
	if err != nil {
		return err
	}

	PaperLiquidationThreshold, err = getEnvAsDec("PAPER_LIQUIDATION_THRESHOLD", "0.85")
	if err != nil {
		return err
	}

	PaperTradeHaircut, err = getEnvAsDec("PAPER_TRADE_HAIRCUT", "0.003")
	if err != nil {
		return err
	}

	if PaperLiquidationThreshold.LT(PaperCollateralFactor) {
		return errors.New("PAPER_LIQUIDATION_THRESHOLD must be >= PAPER_COLLATERAL_FACTOR")
	}

	log.Debug().
		Str("PaperCollateralPrice", PaperCollateralPrice.String()).
		Str("PaperBorrowPrice", PaperBorrowPrice.String()).
		Str("PaperCollateralFactor", PaperCollateralFactor.String()).
		Str("PaperLiquidationThreshold", PaperLiquidationThreshold.String()).
		Msg("Paper-mode configuration loaded successfully.")

	return nil
}

// getEnvAsDec retrieves an environment variable as an 18-decimal fixed-point
// value, falling back to the given default when unset.
func getEnvAsDec(key, fallback string) (sdkmath.LegacyDec, error) {
	valueStr := getEnvWithDefault(key, fallback)
	value, err := sdkmath.LegacyNewDecFromStr(valueStr)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an arbitrary-precision
// integer, falling back to the given default when unset.
func getEnvAsInt(key, fallback string) (sdkmath.Int, error) {
	valueStr := getEnvWithDefault(key, fallback)
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
