package exchange

import sdkmath "cosmossdk.io/math"

// Chunk bounds a total rebalance notional by an exchange's trade-size cap.
// final reports whether this chunk completes the rebalance; when it is false
// the caller enters (or stays in) the TWAP continuation.
func Chunk(total, cap sdkmath.Int) (chunk sdkmath.Int, final bool) {
	if total.LTE(cap) {
		return total, true
	}
	return cap, false
}

// BoundedChunk additionally caps the chunk by the lending market's safety
// bound for delever steps. The bound never changes whether the rebalance is
// final: a chunk squeezed by the lending market still leaves the remainder
// for later calls.
func BoundedChunk(total, cap, lendingBound sdkmath.Int) (chunk sdkmath.Int, final bool) {
	chunk, final = Chunk(total, cap)
	if chunk.GT(lendingBound) {
		chunk = lendingBound
		final = false
	}
	return chunk, final
}
