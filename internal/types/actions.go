package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// RebalanceAction is the action code returned by ShouldRebalance for each
// enabled exchange. Off-chain keepers dispatch on it.
type RebalanceAction int

const (
	ActionNone RebalanceAction = iota
	ActionRebalance
	ActionIterate
	ActionRipcord
)

// String returns the action name for logs and the web API.
func (a RebalanceAction) String() string {
	switch a {
	case ActionRebalance:
		return "rebalance"
	case ActionIterate:
		return "iterate"
	case ActionRipcord:
		return "ripcord"
	default:
		return "none"
	}
}

// ChunkNotional is the pure-query answer for one exchange: how much it would
// trade right now and in which direction.
type ChunkNotional struct {
	ExchangeName string      `json:"exchange_name"`
	Notional     sdkmath.Int `json:"notional"`
	SellAsset    string      `json:"sell_asset"`
	BuyAsset     string      `json:"buy_asset"`
}

// TradeReceipt records one executed engine operation. Receipts are what the
// keeper logs and what the state package persists to the trade log.
type TradeReceipt struct {
	ID            string            `json:"id"`
	Operation     string            `json:"operation"`
	ExchangeName  string            `json:"exchange_name"`
	SellAsset     string            `json:"sell_asset"`
	BuyAsset      string            `json:"buy_asset"`
	SellAmount    sdkmath.Int       `json:"sell_amount"`
	ReceiveAmount sdkmath.Int       `json:"receive_amount"`
	LeverageBefore sdkmath.LegacyDec `json:"leverage_before"`
	LeverageAfter  sdkmath.LegacyDec `json:"leverage_after"`
	TwapActive    bool              `json:"twap_active"`
	RewardPaid    sdkmath.LegacyDec `json:"reward_paid"`
	Caller        string            `json:"caller"`
	Timestamp     time.Time         `json:"timestamp"`
}
