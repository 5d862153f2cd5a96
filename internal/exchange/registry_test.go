package exchange

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/flexlev/flm/internal/types"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Trade(_ context.Context, _, _ string, amount, _ sdkmath.Int, _ []byte) (sdkmath.Int, error) {
	return amount, nil
}

func testSettings() types.ExchangeSettings {
	return types.ExchangeSettings{
		TwapMaxTradeSize:             sdkmath.NewInt(100),
		IncentivizedTwapMaxTradeSize: sdkmath.NewInt(400),
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("uniswap", testSettings(), &stubAdapter{name: "uniswap"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := r.Add("uniswap", testSettings(), &stubAdapter{name: "uniswap"}); !errors.Is(err, types.ErrExchangeExists) {
		t.Fatalf("expected ErrExchangeExists, got %v", err)
	}

	zeroCap := testSettings()
	zeroCap.TwapMaxTradeSize = sdkmath.ZeroInt()
	if err := r.Add("sushi", zeroCap, &stubAdapter{name: "sushi"}); !errors.Is(err, types.ErrZeroTradeSize) {
		t.Fatalf("expected ErrZeroTradeSize, got %v", err)
	}

	if err := r.Add("sushi", testSettings(), nil); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestRegistryOrderAndRemove(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"uniswap", "sushi", "balancer"} {
		if err := r.Add(name, testSettings(), &stubAdapter{name: name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	if got := r.EnabledExchanges(); !reflect.DeepEqual(got, []string{"uniswap", "sushi", "balancer"}) {
		t.Fatalf("unexpected order: %v", got)
	}

	if err := r.Remove("sushi"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := r.EnabledExchanges(); !reflect.DeepEqual(got, []string{"uniswap", "balancer"}) {
		t.Fatalf("unexpected order after remove: %v", got)
	}

	if err := r.Remove("sushi"); !errors.Is(err, types.ErrInvalidExchange) {
		t.Fatalf("expected ErrInvalidExchange, got %v", err)
	}
	if _, _, err := r.Get("sushi"); !errors.Is(err, types.ErrInvalidExchange) {
		t.Fatalf("expected ErrInvalidExchange, got %v", err)
	}
}

func TestRegistryUpdateKeepsCooldownClock(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("uniswap", testSettings(), &stubAdapter{name: "uniswap"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := r.RecordTrade("uniswap", stamp); err != nil {
		t.Fatalf("record trade: %v", err)
	}

	updated := testSettings()
	updated.TwapMaxTradeSize = sdkmath.NewInt(50)
	// An incoming update carries no clock; the running cooldown must survive.
	if err := r.Update("uniswap", updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	s, _, err := r.Get("uniswap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !s.ExchangeLastTradeTimestamp.Equal(stamp) {
		t.Fatalf("cooldown clock reset by update: %v", s.ExchangeLastTradeTimestamp)
	}
	if !s.TwapMaxTradeSize.Equal(sdkmath.NewInt(50)) {
		t.Fatalf("settings not applied: %s", s.TwapMaxTradeSize)
	}

	if err := r.Update("unknown", updated); !errors.Is(err, types.ErrInvalidExchange) {
		t.Fatalf("expected ErrInvalidExchange, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	chunk, final := Chunk(sdkmath.NewInt(80), sdkmath.NewInt(100))
	if !final || !chunk.Equal(sdkmath.NewInt(80)) {
		t.Fatalf("expected final chunk 80, got %s final=%v", chunk, final)
	}

	chunk, final = Chunk(sdkmath.NewInt(250), sdkmath.NewInt(100))
	if final || !chunk.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("expected capped chunk 100, got %s final=%v", chunk, final)
	}

	// Exactly at the cap completes the rebalance.
	chunk, final = Chunk(sdkmath.NewInt(100), sdkmath.NewInt(100))
	if !final || !chunk.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("expected final chunk 100, got %s final=%v", chunk, final)
	}
}

func TestBoundedChunk(t *testing.T) {
	// The lending bound squeezes the chunk and forces a continuation even
	// when the cap alone would have completed the rebalance.
	chunk, final := BoundedChunk(sdkmath.NewInt(80), sdkmath.NewInt(100), sdkmath.NewInt(60))
	if final || !chunk.Equal(sdkmath.NewInt(60)) {
		t.Fatalf("expected squeezed chunk 60, got %s final=%v", chunk, final)
	}

	chunk, final = BoundedChunk(sdkmath.NewInt(80), sdkmath.NewInt(100), sdkmath.NewInt(500))
	if !final || !chunk.Equal(sdkmath.NewInt(80)) {
		t.Fatalf("expected untouched chunk 80, got %s final=%v", chunk, final)
	}
}
