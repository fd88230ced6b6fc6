package market

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_GetQuotesSubsetInFirstSeenOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	pool := []string{"AAPL", "MSFT", "SPY", "QQQ", "NOPE", "ZZZ"}

	properties.Property("batch quotes are a deduplicated ordered subset", prop.ForAll(
		func(picks []int) bool {
			f := newFixture(midweek)
			symbols := make([]string, len(picks))
			for i, p := range picks {
				symbols[i] = pool[p]
			}
			quotes := f.svc.GetQuotes(context.Background(), symbols)

			var want []string
			seen := map[string]bool{}
			for _, s := range symbols {
				if seen[s] {
					continue
				}
				seen[s] = true
				if _, ok := f.prices.quotes[s]; ok {
					want = append(want, s)
				}
			}
			if len(quotes) != len(want) {
				return false
			}
			for i := range want {
				if quotes[i].Symbol != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(pool)-1)),
	))

	properties.TestingRun(t)
}
