package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"market-dashboard/internal/cache"
)

// addCacheCommands adds cache maintenance commands.
func addCacheCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance",
		Long:  "Inspect, invalidate and flush the shared market data cache.",
	}

	cmd.AddCommand(newCacheStatusCmd(app))
	cmd.AddCommand(newCacheInvalidateCmd(app))
	cmd.AddCommand(newCacheFlushCmd(app))

	rootCmd.AddCommand(cmd)
}

func newCacheStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cache connection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			defer app.Close()

			state := app.Service().Store().State()
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"backend": app.Config.Cache.Backend,
					"state":   string(state),
				})
			}
			output.Printf("Backend: %s\n", app.Config.Cache.Backend)
			line := output.Warning
			if state == cache.StateConnected {
				line = output.Success
			}
			line("State:   %s", state)
			return nil
		},
	}
}

func newCacheInvalidateCmd(app *App) *cobra.Command {
	entities := make([]string, len(cache.Entities))
	for i, e := range cache.Entities {
		entities[i] = string(e)
	}

	cmd := &cobra.Command{
		Use:   "invalidate <entity> [symbol]",
		Short: "Delete one cached entry",
		Long: fmt.Sprintf(`Delete the cache entry addressed by an entity and its parameters.

Entities: %s`, strings.Join(entities, ", ")),
		Example: `  marketdash cache invalidate quote AAPL
  marketdash cache invalidate bars AAPL --resolution 1Day --limit 100
  marketdash cache invalidate search --query apple
  marketdash cache invalidate indices`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: entities,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			p := cache.KeyParams{}
			if len(args) > 1 {
				p.Symbol = args[1]
			}
			p.Resolution, _ = cmd.Flags().GetString("resolution")
			p.Limit, _ = cmd.Flags().GetInt("limit")
			p.Query, _ = cmd.Flags().GetString("query")
			p.Category, _ = cmd.Flags().GetString("category")
			p.Count, _ = cmd.Flags().GetInt("count")
			var err error
			if p.Start, err = dateFlag(cmd, "start"); err != nil {
				return errorf(output, "%w", err)
			}
			if p.End, err = dateFlag(cmd, "end"); err != nil {
				return errorf(output, "%w", err)
			}

			entity := cache.Entity(strings.ToLower(args[0]))
			key, err := cache.Key(entity, p)
			if err != nil {
				return errorf(output, "%w", err)
			}
			if err := app.Service().Invalidate(ctx, entity, p); err != nil {
				return errorf(output, "%w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"invalidated": key})
			}
			output.Success("✓ Invalidated %s", key)
			return nil
		},
	}

	cmd.Flags().String("resolution", "", "bar resolution for bars and details")
	cmd.Flags().Int("limit", 0, "bar count for bars and details")
	cmd.Flags().String("query", "", "search query")
	cmd.Flags().String("category", "", "news category")
	cmd.Flags().Int("count", 0, "movers count")
	cmd.Flags().String("start", "", "range start for bars")
	cmd.Flags().String("end", "", "range end for bars")

	return cmd
}

func newCacheFlushCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Clear the whole cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errorf(output, "refusing to flush without --yes")
			}
			if err := app.Service().FlushAll(ctx); err != nil {
				return errorf(output, "flush cache: %w", err)
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"flushed": true})
			}
			output.Success("✓ Cache flushed")
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "confirm the flush")

	return cmd
}
