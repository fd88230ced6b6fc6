package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: a closed breaker stays closed while consecutive failures remain
// below the threshold, no matter how successes and failures interleave.
func TestProperty_BreakerClosedBelowThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("consecutive failures below threshold keep circuit closed", prop.ForAll(
		func(threshold int, outcomes []bool) bool {
			cb := NewCircuitBreaker("p", CircuitBreakerConfig{FailureThreshold: threshold, Cooldown: time.Hour})
			run := 0
			for _, ok := range outcomes {
				if !ok {
					run++
				} else {
					run = 0
				}
				if run >= threshold {
					return true
				}
				_ = cb.Execute(context.Background(), func(context.Context) error {
					if ok {
						return nil
					}
					return errBoom
				})
				if cb.State() != CircuitClosed {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 6),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
