package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"market-dashboard/internal/models"
)

func symbolGen() gopter.Gen {
	return gen.RegexMatch(`^[A-Za-z]{1,5}$`)
}

func resolutionGen() gopter.Gen {
	return gen.OneConstOf("1min", "1Min", "5MIN", "15Min", "1hour", "1Hour", "1day", "1Day", "1Week")
}

// Property: equal inputs yield equal keys, and symbol case never matters.
func TestProperty_KeyDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("bars key ignores symbol and resolution case", prop.ForAll(
		func(sym, res string, limit int) bool {
			a, errA := Key(EntityBars, KeyParams{Symbol: strings.ToLower(sym), Resolution: res, Limit: limit})
			b, errB := Key(EntityBars, KeyParams{Symbol: strings.ToUpper(sym), Resolution: strings.ToLower(res), Limit: limit})
			return errA == nil && errB == nil && a == b
		},
		symbolGen(),
		resolutionGen(),
		gen.IntRange(1, 1000),
	))

	properties.Property("quote and profile keys are case-insensitive and pure", prop.ForAll(
		func(sym string) bool {
			return QuoteKey(sym) == QuoteKey(strings.ToUpper(sym)) &&
				QuoteKey(sym) == QuoteKey(" "+sym+" ") &&
				ProfileKey(sym) == ProfileKey(strings.ToLower(sym)) &&
				QuoteKey(sym) != ProfileKey(sym)
		},
		symbolGen(),
	))

	properties.Property("search key lowercases the query", prop.ForAll(
		func(q string) bool {
			return SearchKey(q) == SearchKey(strings.ToUpper(q))
		},
		gen.AlphaString(),
	))

	properties.Property("explicit range never collides with latest-N", prop.ForAll(
		func(sym string, limit int, startSec int64) bool {
			start := time.Unix(startSec, 0)
			latest := BarsKey(sym, models.OneDay, limit)
			ranged := RangeBarsKey(sym, models.OneDay, limit, start, time.Time{})
			return latest != ranged && strings.HasPrefix(ranged, latest+":range:")
		},
		symbolGen(),
		gen.IntRange(1, 1000),
		gen.Int64Range(1, 2_000_000_000),
	))

	properties.Property("distinct limits give distinct keys", prop.ForAll(
		func(sym string, a, b int) bool {
			if a == b {
				return true
			}
			return BarsKey(sym, models.FiveMinutes, a) != BarsKey(sym, models.FiveMinutes, b)
		},
		symbolGen(),
		gen.IntRange(1, 500),
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}
