package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"market-dashboard/internal/models"
	"market-dashboard/pkg/utils"
)

// summaryOrder is the display order of the market summary groups.
var summaryOrder = []string{"indices", "stocks", "crypto"}

// addMarketCommands adds market data and narrative commands.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCategoriesCmd(app))
	rootCmd.AddCommand(newTickersCmd(app))
	rootCmd.AddCommand(newChartCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newAskCmd(app))
	rootCmd.AddCommand(newCatalystCmd(app))
}

func newCategoriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List market categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			categories := dash.Catalog().Categories()
			if output.IsJSON() {
				return output.JSON(categories)
			}
			for _, c := range categories {
				output.Println(c)
			}
			return nil
		},
	}
}

func newTickersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "tickers <category>",
		Short:   "List the instruments of a category",
		Example: "  dashboard tickers crypto",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			category, ok := dash.Catalog().Category(args[0])
			if !ok {
				err := fmt.Errorf("category %s not found", args[0])
				output.Error("%v", err)
				return err
			}
			if output.IsJSON() {
				tickers, _ := dash.Catalog().Tickers(args[0])
				return output.JSON(tickers)
			}

			table := NewTable(output, "Name", "Symbol")
			for _, e := range category.Entries {
				table.AddRow(e.Name, e.Symbol)
			}
			table.Render()
			return nil
		},
	}
}

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <symbol>",
		Short: "Show price bars for a symbol",
		Example: `  dashboard chart AAPL --period 1mo
  dashboard chart BTC-USD --period 1d --rows 24`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			period, _ := cmd.Flags().GetString("period")
			rows, _ := cmd.Flags().GetInt("rows")

			ctx, cancel := commandContext(app)
			defer cancel()

			data, err := dash.MarketData(ctx, models.NormalizeSymbol(args[0]), period)
			if err != nil {
				output.Error("Failed to fetch market data: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(data)
			}

			bars := data.Prices
			if rows > 0 && rows < len(bars) {
				bars = bars[len(bars)-rows:]
			}

			output.Bold("%s  %s  (%d bars)", data.Ticker, data.Period, len(data.Prices))
			table := NewTable(output, "Date", "Open", "High", "Low", "Close", "Volume")
			for _, b := range bars {
				table.AddRow(
					b.Timestamp.Format("2006-01-02 15:04"),
					utils.FormatPrice(b.Open),
					utils.FormatPrice(b.High),
					utils.FormatPrice(b.Low),
					utils.FormatPrice(b.Close),
					utils.FormatVolume(b.Volume),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "chart period (default 3mo)")
	cmd.Flags().Int("rows", 20, "number of bars to show, 0 for all")

	return cmd
}

func newSummaryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Market summary for indices, stocks and crypto",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			period, _ := cmd.Flags().GetString("period")

			ctx, cancel := commandContext(app)
			defer cancel()

			summary := dash.Summary(ctx, period)
			if output.IsJSON() {
				return output.JSON(summary)
			}

			for _, group := range summaryOrder {
				quotes := summary[group]
				if len(quotes) == 0 {
					continue
				}
				output.Bold(strings.ToUpper(group))
				table := NewTable(output, "Name", "Symbol", "Price", "Change", "Volume")
				for _, q := range quotes {
					table.AddRow(
						q.Name,
						q.Symbol,
						utils.FormatPrice(q.Price),
						output.Change(q.Change, utils.FormatPercent(q.ChangePercent)),
						utils.FormatVolume(q.Volume),
					)
				}
				table.Render()
				output.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "summary period (default 1d)")

	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show market session and component health",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(app)
			defer cancel()

			health := dash.Health(ctx)
			session := utils.GetMarketStatus(time.Now())
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market_status": session,
					"provider":      dash.ProviderName(),
					"health":        health,
				})
			}

			output.Printf("US market: %s\n", output.MarketStatus(session))
			output.Printf("Provider:  %s\n", dash.ProviderName())
			output.Printf("Health:    %s\n", health.Status)
			output.Println()

			table := NewTable(output, "Component", "Status", "Message")
			for _, c := range health.Components {
				table.AddRow(c.Name, string(c.Status), c.Message)
			}
			table.Render()
			return nil
		},
	}
}

func newAskCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the market copilot a question",
		Example: `  dashboard ask "what is the trend on AAPL this week?"
  dashboard ask "how are markets doing today"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(app)
			defer cancel()

			resp, err := dash.Narrator().Copilot(ctx, strings.Join(args, " "))
			if err != nil {
				output.Error("Copilot failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(resp)
			}

			output.Println(resp.Response)
			if sym := resp.QueryInfo.Symbol; sym != "" {
				output.Println()
				output.Dim("symbol: %s  timeframe: %s", sym, resp.QueryInfo.Timeframe)
			}
			return nil
		},
	}
}

func newCatalystCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "catalyst <symbol>",
		Short: "Catalyst outlook for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(app)
			defer cancel()

			rep, err := dash.Narrator().CatalystSummary(ctx, models.NormalizeSymbol(args[0]))
			if err != nil {
				output.Error("Catalyst summary failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(rep)
			}

			output.Bold("%s  %s", rep.Symbol, output.DimText(rep.Date))
			output.Println(rep.Analysis)
			if rep.Fallback {
				output.Println()
				output.Warning("Language model unavailable; showing the price based outlook.")
			}
			return nil
		},
	}
}
