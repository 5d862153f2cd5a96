package exchange

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// TradeAdapter executes one swap on a specific venue. The routing payload is
// opaque to the engine; it is whatever the adapter's venue needs (pool ids,
// path encodings). Returns the amount of buyAsset actually received.
type TradeAdapter interface {
	Name() string
	Trade(ctx context.Context, sellAsset, buyAsset string, amount, minReceive sdkmath.Int, routingPayload []byte) (sdkmath.Int, error)
}
