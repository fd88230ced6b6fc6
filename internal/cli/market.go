package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/market"
	"market-dashboard/internal/models"
	"market-dashboard/pkg/utils"
)

const commandTimeout = 30 * time.Second

// addMarketCommands adds the read-only market data commands.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newDetailsCmd(app))
	rootCmd.AddCommand(newIndicesCmd(app))
	rootCmd.AddCommand(newMoversCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newNewsCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func timeoutContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), commandTimeout)
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <symbol> [symbols...]",
		Short: "Get the latest quote for one or more symbols",
		Long: `Fetch the latest trade snapshot for a symbol.

With several symbols the quotes are fetched concurrently; symbols with no
data are left out of the table.`,
		Example: `  marketdash quote AAPL
  marketdash quote AAPL MSFT NVDA --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()
			svc := app.Service()

			if len(args) == 1 {
				quote, err := svc.GetQuote(ctx, args[0])
				if err != nil {
					return errorf(output, "quote %s: %w", strings.ToUpper(args[0]), err)
				}
				if quote == nil {
					return errorf(output, "stock %s not found", strings.ToUpper(args[0]))
				}
				if output.IsJSON() {
					return output.JSON(quote)
				}
				displayQuote(output, quote)
				return nil
			}

			quotes := svc.GetQuotes(ctx, args)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"quotes": quotes})
			}
			table := NewTable(output, "SYMBOL", "PRICE", "CHANGE", "VOLUME")
			for _, q := range quotes {
				table.AddRow(q.Symbol, utils.FormatUSD(q.Price), output.FormatChange(q.Change, q.ChangePercent), utils.FormatVolume(q.Volume))
			}
			table.Render()
			if missing := len(uniqueUpper(args)) - len(quotes); missing > 0 {
				output.Dim("%d symbol(s) had no data", missing)
			}
			return nil
		},
	}
}

func displayQuote(output *Output, q *models.Quote) {
	output.Bold("%s", q.Symbol)
	output.Printf("  Price:  %s  %s\n", utils.FormatUSD(q.Price), output.FormatChange(q.Change, q.ChangePercent))
	output.Printf("  Open:   %s\n", utils.FormatUSD(q.Open))
	output.Printf("  High:   %s\n", output.Green(utils.FormatUSD(q.High)))
	output.Printf("  Low:    %s\n", output.Red(utils.FormatUSD(q.Low)))
	output.Printf("  Close:  %s\n", utils.FormatUSD(q.Close))
	output.Printf("  Volume: %s\n", utils.FormatVolume(q.Volume))
	if q.Timestamp != "" {
		output.Dim("  Updated: %s", q.Timestamp)
	}
}

func uniqueUpper(symbols []string) map[string]struct{} {
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			seen[s] = struct{}{}
		}
	}
	return seen
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <symbol>",
		Short: "Get historical bars",
		Long: `Fetch OHLCV bars for a symbol. Without --start the window is derived
from the timeframe and limit. An empty series is not an error.`,
		Example: `  marketdash history AAPL
  marketdash history TSLA --timeframe 15Min --limit 50
  marketdash history SPY --start 2026-09-01 --end 2026-09-30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			timeframe, _ := cmd.Flags().GetString("timeframe")
			limit, _ := cmd.Flags().GetInt("limit")
			q := market.BarsQuery{Symbol: args[0], Resolution: timeframe, Limit: limit}
			var err error
			if q.Start, err = dateFlag(cmd, "start"); err != nil {
				return errorf(output, "%w", err)
			}
			if q.End, err = dateFlag(cmd, "end"); err != nil {
				return errorf(output, "%w", err)
			}

			series, err := app.Service().GetBars(ctx, q)
			if err != nil {
				return errorf(output, "history %s: %w", strings.ToUpper(args[0]), err)
			}
			if output.IsJSON() {
				return output.JSON(series)
			}
			displaySeries(output, series)
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "1Day", "bar resolution (1Min, 5Min, 15Min, 1Hour, 1Day, 1Week)")
	cmd.Flags().IntP("limit", "n", market.DefaultBarsLimit, "number of bars")
	cmd.Flags().String("start", "", "window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().String("end", "", "window end (YYYY-MM-DD or RFC3339)")

	return cmd
}

func displaySeries(output *Output, series *models.BarSeries) {
	output.Bold("%s %s", series.Symbol, series.Timeframe)
	if series.Empty() {
		output.Warning("No bars available")
		return
	}
	table := NewTable(output, "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, b := range series.Bars {
		table.AddRow(
			b.Timestamp.UTC().Format("2006-01-02 15:04"),
			utils.FormatUSD(b.Open),
			utils.FormatUSD(b.High),
			utils.FormatUSD(b.Low),
			utils.FormatUSD(b.Close),
			utils.FormatVolume(b.Volume),
		)
	}
	table.Render()
	output.Dim("%d bars", len(series.Bars))
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD or RFC3339", name, raw)
	}
	return t, nil
}

func newDetailsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "details <symbol>",
		Short: "Show profile, quote and history together",
		Long: `Fetch the stock detail view: company profile, latest quote and a bar
history. Short intraday views fall back to the last session when the
market is closed.`,
		Example: `  marketdash details AAPL
  marketdash details NVDA --timeframe 1Hour --limit 24`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			timeframe, _ := cmd.Flags().GetString("timeframe")
			limit, _ := cmd.Flags().GetInt("limit")
			d, err := app.Service().GetDetails(ctx, args[0], timeframe, limit)
			if err != nil {
				return errorf(output, "details %s: %w", strings.ToUpper(args[0]), err)
			}
			if output.IsJSON() {
				return output.JSON(d)
			}

			if p := d.Profile; p != nil {
				output.Bold("%s  %s", p.Symbol, p.Name)
				output.Printf("  Exchange: %s  Industry: %s  Country: %s\n", p.Exchange, p.Industry, p.Country)
				output.Printf("  Market cap: %s\n", utils.FormatCompact(p.MarketCap*1e6))
				if p.Website != "" {
					output.Dim("  %s", p.Website)
				}
				output.Println()
			}
			if d.Quote != nil {
				displayQuote(output, d.Quote)
				output.Println()
			}
			displaySeries(output, &d.History)
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "1Day", "bar resolution")
	cmd.Flags().IntP("limit", "n", market.DefaultBarsLimit, "number of bars")

	return cmd
}

func newIndicesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Show the major index snapshots",
		Long: `Show the S&P 500, Dow Jones, Nasdaq Composite and Russell 2000 with
their tradable ETF proxies. Use --refresh to bypass the cached bundle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			refresh, _ := cmd.Flags().GetBool("refresh")
			var bundle *models.IndexBundle
			if refresh {
				bundle = app.Service().RefreshIndices(ctx)
			} else {
				bundle = app.Service().GetIndexSnapshots(ctx)
			}
			if output.IsJSON() {
				return output.JSON(bundle)
			}

			table := NewTable(output, "INDEX", "VALUE", "CHANGE", "ETF", "ETF PRICE", "POINTS")
			for _, snap := range bundle.Indices {
				value, change := "n/a", output.DimText("n/a")
				if snap.Value != nil {
					value = fmt.Sprintf("%.2f", *snap.Value)
				}
				if snap.Change != nil && snap.ChangePercent != nil {
					change = output.FormatChange(*snap.Change, *snap.ChangePercent)
				}
				etfPrice := "n/a"
				if snap.ETF.Price != nil {
					etfPrice = utils.FormatUSD(*snap.ETF.Price)
				}
				table.AddRow(snap.Name, value, change, snap.ETF.Symbol, etfPrice, fmt.Sprintf("%d", len(snap.Data)))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "rebuild the snapshot bundle")

	return cmd
}

func newMoversCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movers",
		Short: "Show top gainers and losers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			top, _ := cmd.Flags().GetInt("top")
			movers := app.Service().GetTopMovers(ctx, top)
			if output.IsJSON() {
				return output.JSON(movers)
			}

			render := func(title string, list []models.Mover) {
				output.Bold("%s", title)
				if len(list) == 0 {
					output.Dim("  none")
					return
				}
				table := NewTable(output, "SYMBOL", "PRICE", "CHANGE", "VOLUME")
				for _, m := range list {
					table.AddRow(m.Symbol, utils.FormatUSD(m.Price), output.FormatChange(m.Change, m.PercentChange), utils.FormatVolume(m.Volume))
				}
				table.Render()
			}
			render("Gainers", movers.Gainers)
			output.Println()
			render("Losers", movers.Losers)
			return nil
		},
	}

	cmd.Flags().Int("top", market.DefaultMoversCount, "entries per side (max 50)")

	return cmd
}

func newSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>",
		Short:   "Search for symbols",
		Example: `  marketdash search apple`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			results := app.Service().SearchSymbols(ctx, strings.Join(args, " "))
			if output.IsJSON() {
				return output.JSON(results)
			}
			if len(results) == 0 {
				output.Warning("No matches")
				return nil
			}
			table := NewTable(output, "SYMBOL", "NAME", "TYPE", "EXCHANGE")
			for _, r := range results {
				table.AddRow(r.Symbol, r.Name, r.Type, r.Exchange)
			}
			table.Render()
			return nil
		},
	}
}

func newHoldingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holdings <etf|index>",
		Short: "Show ETF holdings or index constituents",
		Long: `Show the holdings of an ETF by weight. Given a supported index symbol
(^GSPC, ^DJI, ^IXIC, ^RUT) the constituents of its proxy ETF are paged.`,
		Example: `  marketdash holdings QQQ
  marketdash holdings ^GSPC --limit 10 --offset 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()
			svc := app.Service()

			var holdings []models.EtfHolding
			if _, ok := market.LookupIndex(args[0]); ok {
				limit, _ := cmd.Flags().GetInt("limit")
				offset, _ := cmd.Flags().GetInt("offset")
				page, err := svc.GetIndexConstituents(ctx, args[0], limit, offset)
				if err != nil {
					return errorf(output, "%w", err)
				}
				if output.IsJSON() {
					return output.JSON(page)
				}
				output.Bold("%s via %s (%d holdings)", page.Index, page.ETF, page.Total)
				holdings = page.Constituents
			} else {
				holdings = svc.GetEtfHoldings(ctx, args[0])
				if output.IsJSON() {
					return output.JSON(holdings)
				}
				output.Bold("%s (%d holdings)", strings.ToUpper(args[0]), len(holdings))
			}

			table := NewTable(output, "SYMBOL", "NAME", "WEIGHT")
			for _, h := range holdings {
				weight := "n/a"
				if h.Weight != nil {
					weight = fmt.Sprintf("%.2f%%", *h.Weight)
				}
				table.AddRow(h.Symbol, h.Name, weight)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", market.DefaultConstituentLimit, "page size for index constituents (max 100)")
	cmd.Flags().Int("offset", 0, "page offset for index constituents")

	return cmd
}

func newNewsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Show market news headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			category, _ := cmd.Flags().GetString("category")
			items := app.Service().GetMarketNews(ctx, category)
			if output.IsJSON() {
				return output.JSON(items)
			}
			if len(items) == 0 {
				output.Warning("No news")
				return nil
			}
			for _, n := range items {
				output.Bold("%s", n.Headline)
				output.Dim("  %s · %s", n.Source, time.Unix(n.Datetime, 0).UTC().Format("Jan 02 15:04"))
				if n.URL != "" {
					output.Dim("  %s", n.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("category", "c", market.DefaultNewsCategory, "news category (general, forex, crypto, merger)")

	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the market is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			defer app.Close()

			clock, err := app.Service().GetMarketStatus(ctx)
			if err == nil && clock == nil {
				err = apperrors.ErrDataNotFound
			}
			if err != nil {
				if apperrors.IsAbsence(err) {
					output.Warning("Market clock unavailable")
				}
				return errorf(output, "market status: %w", err)
			}
			if output.IsJSON() {
				return output.JSON(clock)
			}

			output.Printf("Market: %s\n", output.MarketStatus(clock.IsOpen))
			if clock.IsOpen {
				output.Printf("  Closes: %s\n", clock.NextClose.In(utils.NewYork).Format("Mon Jan 02 15:04 MST"))
			} else {
				output.Printf("  Opens:  %s\n", clock.NextOpen.In(utils.NewYork).Format("Mon Jan 02 15:04 MST"))
			}
			return nil
		},
	}
}
