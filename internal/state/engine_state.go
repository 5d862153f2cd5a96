package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// EngineState is the persisted snapshot of the engine's mutable runtime
// state, reloaded on restart so cooldowns and an in-flight TWAP survive a
// process bounce.
type EngineState struct {
	TwapLeverageRatio   sdkmath.LegacyDec
	GlobalLastTrade     time.Time
	OverrideNoRebalance bool
	RewardBalance       sdkmath.LegacyDec
}

// LoadEngineState reads the single engine-state row.
func LoadEngineState() (*EngineState, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT twap_leverage_ratio, global_last_trade, override_no_rebalance, reward_balance
		FROM engine_state
		WHERE id = 1;`

	var twapStr, rewardStr string
	var lastTrade sql.NullTime
	var override bool
	if err := DB.QueryRow(query).Scan(&twapStr, &lastTrade, &override, &rewardStr); err != nil {
		return nil, fmt.Errorf("failed to load engine state: %w", err)
	}

	twap, err := parseDec(twapStr)
	if err != nil {
		return nil, err
	}
	reward, err := parseDec(rewardStr)
	if err != nil {
		return nil, err
	}

	st := &EngineState{
		TwapLeverageRatio:   twap,
		OverrideNoRebalance: override,
		RewardBalance:       reward,
	}
	if lastTrade.Valid {
		st.GlobalLastTrade = lastTrade.Time
	}
	return st, nil
}
