package resilience

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// CircuitBreakerRegistry hands out one breaker per upstream provider.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
	logger   zerolog.Logger
}

// NewCircuitBreakerRegistry creates a registry whose breakers share config.
// Transitions are logged at warn (open) or info.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns or creates a circuit breaker for the given name.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[name]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, r.config)
	cb.OnStateChange(r.logTransition)
	r.breakers[name] = cb
	return cb
}

func (r *CircuitBreakerRegistry) logTransition(name string, from, to CircuitState) {
	event := r.logger.Info()
	if to == CircuitOpen {
		event = r.logger.Warn()
	}
	event.
		Str("event", "circuit_state").
		Str("provider", name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Circuit breaker state changed")
}

// AllStats returns statistics for all circuit breakers, sorted by name.
func (r *CircuitBreakerRegistry) AllStats() []CircuitBreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]CircuitBreakerStats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		stats = append(stats, cb.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ResetAll resets all circuit breakers.
func (r *CircuitBreakerRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
