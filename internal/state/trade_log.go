package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/flexlev/flm/internal/types"
)

// Store is the engine's persistence hook. It implements engine.Recorder over
// the package-level connection pool.
type Store struct{}

func NewStore() *Store { return &Store{} }

// RecordTrade appends one executed operation to the trade log.
func (s *Store) RecordTrade(r types.TradeReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO trade_log (
			receipt_id, operation, exchange_name, sell_asset, buy_asset,
			sell_amount, receive_amount, leverage_before, leverage_after,
			twap_active, reward_paid, caller, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	_, err := DB.Exec(stmt,
		r.ID, r.Operation, r.ExchangeName, r.SellAsset, r.BuyAsset,
		r.SellAmount.String(), r.ReceiveAmount.String(),
		r.LeverageBefore.String(), r.LeverageAfter.String(),
		r.TwapActive, r.RewardPaid.String(), r.Caller, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade receipt: %w", err)
	}

	log.Debug().Str("receipt_id", r.ID).Str("operation", r.Operation).Msg("Trade receipt persisted")
	return nil
}

// SaveEngineState upserts the single engine-state row.
func (s *Store) SaveEngineState(twapLeverageRatio sdkmath.LegacyDec, globalLastTrade time.Time, override bool, rewardBalance sdkmath.LegacyDec) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		UPDATE engine_state
		SET twap_leverage_ratio = $1,
		    global_last_trade = $2,
		    override_no_rebalance = $3,
		    reward_balance = $4,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(stmt, twapLeverageRatio.String(), globalLastTrade, override, rewardBalance.String())
	if err != nil {
		return fmt.Errorf("failed to save engine state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no engine_state row updated")
	}
	return nil
}

// RecentTrades returns the latest trade receipts, newest first.
func RecentTrades(limit int) ([]types.TradeReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT receipt_id, operation, exchange_name, sell_asset, buy_asset,
		       sell_amount, receive_amount, leverage_before, leverage_after,
		       twap_active, reward_paid, caller, executed_at
		FROM trade_log
		ORDER BY executed_at DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade log: %w", err)
	}
	defer rows.Close()

	var receipts []types.TradeReceipt
	for rows.Next() {
		var r types.TradeReceipt
		var sellAmount, receiveAmount, leverageBefore, leverageAfter, rewardPaid string
		if err := rows.Scan(
			&r.ID, &r.Operation, &r.ExchangeName, &r.SellAsset, &r.BuyAsset,
			&sellAmount, &receiveAmount, &leverageBefore, &leverageAfter,
			&r.TwapActive, &rewardPaid, &r.Caller, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade receipt: %w", err)
		}

		if r.SellAmount, err = parseInt(sellAmount); err != nil {
			return nil, err
		}
		if r.ReceiveAmount, err = parseInt(receiveAmount); err != nil {
			return nil, err
		}
		if r.LeverageBefore, err = parseDec(leverageBefore); err != nil {
			return nil, err
		}
		if r.LeverageAfter, err = parseDec(leverageAfter); err != nil {
			return nil, err
		}
		if r.RewardPaid, err = parseDec(rewardPaid); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func parseInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer amount in trade log: %q", s)
	}
	return v, nil
}

func parseDec(s string) (sdkmath.LegacyDec, error) {
	v, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("invalid decimal in trade log: %q: %w", s, err)
	}
	return v, nil
}
