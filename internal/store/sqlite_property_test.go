package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_WatchlistHoldsDistinctSymbolsInOrder(t *testing.T) {
	s := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOGL", "TSLA", "SPY"}
	run := 0

	properties.Property("adding symbols keeps first-insertion order without duplicates", prop.ForAll(
		func(picks []int) bool {
			ctx := context.Background()
			run++
			user := fmt.Sprintf("user_%d", run)

			var want []string
			seen := map[string]bool{}
			for _, p := range picks {
				sym := symbols[p]
				if _, err := s.AddItem(ctx, user, "", sym); err != nil {
					t.Logf("AddItem: %v", err)
					return false
				}
				if !seen[sym] {
					seen[sym] = true
					want = append(want, sym)
				}
			}

			items, err := s.Items(ctx, user, "")
			if err != nil || len(items) != len(want) {
				return false
			}
			for i := range want {
				if items[i].Symbol != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(symbols)-1)),
	))

	properties.TestingRun(t)
}
