package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/types"
)

// Registry is the ordered set of enabled exchanges. Each entry carries its
// own trade-size caps and cooldown clock, so two exchanges can be alternated
// to halve the observed per-exchange cooldown. Enumeration preserves
// insertion order.
type Registry struct {
	mu       sync.RWMutex
	names    []string
	settings map[string]types.ExchangeSettings
	adapters map[string]TradeAdapter
	log      zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		settings: make(map[string]types.ExchangeSettings),
		adapters: make(map[string]TradeAdapter),
		log:      logger.GetForComponent("exchange_registry"),
	}
}

// Add enables a new exchange. A zero TwapMaxTradeSize is rejected here: it
// would permanently stall the TWAP loop.
func (r *Registry) Add(name string, s types.ExchangeSettings, adapter TradeAdapter) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if adapter == nil {
		return fmt.Errorf("exchange %s: adapter must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settings[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrExchangeExists, name)
	}
	r.names = append(r.names, name)
	r.settings[name] = s
	r.adapters[name] = adapter
	r.log.Info().Str("exchange", name).
		Str("twapMaxTradeSize", s.TwapMaxTradeSize.String()).
		Msg("Exchange enabled")
	return nil
}

// Update replaces the settings of an enabled exchange. The last-trade
// timestamp of the existing entry is kept; settings changes must not reset a
// running cooldown.
func (r *Registry) Update(name string, s types.ExchangeSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.settings[name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidExchange, name)
	}
	s.ExchangeLastTradeTimestamp = prev.ExchangeLastTradeTimestamp
	r.settings[name] = s
	r.log.Info().Str("exchange", name).Msg("Exchange settings updated")
	return nil
}

// Remove disables an exchange.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settings[name]; !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidExchange, name)
	}
	delete(r.settings, name)
	delete(r.adapters, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	r.log.Info().Str("exchange", name).Msg("Exchange removed")
	return nil
}

// Get returns the settings and adapter for an enabled exchange.
func (r *Registry) Get(name string) (types.ExchangeSettings, TradeAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[name]
	if !ok {
		return types.ExchangeSettings{}, nil, fmt.Errorf("%w: %s", types.ErrInvalidExchange, name)
	}
	return s, r.adapters[name], nil
}

// EnabledExchanges returns the exchange names in insertion order.
func (r *Registry) EnabledExchanges() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// RecordTrade advances the exchange's own cooldown clock.
func (r *Registry) RecordTrade(name string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidExchange, name)
	}
	s.ExchangeLastTradeTimestamp = at
	r.settings[name] = s
	return nil
}
