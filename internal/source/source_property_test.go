package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"market-dashboard/internal/models"
)

// Property: the derived start never reaches further back than a year and
// never past now.
func TestProperty_DefaultStartBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	properties.Property("start within (now-365d, now)", prop.ForAll(
		func(token string, amount, limit int) bool {
			res, err := models.ParseResolution(fmt.Sprintf("%d%s", amount, token))
			if err != nil {
				return false
			}
			start := DefaultStart(now, res, limit)
			if !start.Before(now) || now.Sub(start) > MaxLookback {
				return false
			}
			span := float64(res.Duration()) * float64(limit)
			if span > float64(MaxLookback) {
				return now.Sub(start) == MaxLookback
			}
			return now.Sub(start) == res.Duration()*time.Duration(limit)
		},
		gen.OneConstOf("Min", "Hour", "Day", "Week", "Month"),
		gen.IntRange(1, 30),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
