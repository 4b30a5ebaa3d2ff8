package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/analysis/mtf"
	"market-dashboard/internal/analysis/report"
	"market-dashboard/internal/analysis/signals"
	"market-dashboard/internal/models"
	"market-dashboard/pkg/utils"
)

// addAnalysisCommands adds analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newSignalCmd(app))
	rootCmd.AddCommand(newMTFCmd(app))
	rootCmd.AddCommand(newPivotsCmd(app))
	rootCmd.AddCommand(newIndicatorCmd(app))
	rootCmd.AddCommand(newReportsCmd(app))
}

// buildReport runs the technical report for the first argument.
func buildReport(cmd *cobra.Command, app *App, symbol string) (*report.Report, error) {
	dash, err := app.Dashboard()
	if err != nil {
		return nil, err
	}
	period, _ := cmd.Flags().GetString("period")

	ctx, cancel := commandContext(app)
	defer cancel()
	return dash.TechnicalReport(ctx, models.NormalizeSymbol(symbol), period)
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Full technical analysis for a symbol",
		Long: `Compute the full technical report for a symbol:
- Trend indicators (SMA 20/50/200, EMA 12/26, MACD, ADX)
- Momentum (RSI) and volatility (Bollinger Bands, ATR)
- Volume (OBV)
- Pivot points with support and resistance
- Trend verdicts on 5m, 15m, 1h, 1d and 1mo
- Signals and the overall vote

The report is stored and can be listed later with 'dashboard reports'.`,
		Example: `  dashboard analyze AAPL
  dashboard analyze BTC-USD --period 6mo
  dashboard analyze SPY --rows 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rep, err := buildReport(cmd, app, args[0])
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(rep)
			}

			rows, _ := cmd.Flags().GetInt("rows")
			displayLatest(output, rep)
			displayIndicators(output, rep.Indicators, rows)
			displaySignals(output, rep.Signals)
			displayTimeframes(output, rep.TimeframeAnalysis)
			displayPivots(output, rep.TimeframeAnalysis)
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period (1d, 5d, 1mo, 3mo, 6mo, ytd, 1y, 5y)")
	cmd.Flags().Int("rows", 5, "number of indicator rows to show")

	return cmd
}

func newSignalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal <symbol>",
		Short: "Show trading signals for a symbol",
		Example: `  dashboard signal AAPL
  dashboard signal ETH-USD --period 1y`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rep, err := buildReport(cmd, app, args[0])
			if err != nil {
				output.Error("Signal generation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(rep.Signals)
			}

			output.Bold("%s Signals", rep.Symbol)
			output.Println()
			displaySignals(output, rep.Signals)
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period")

	return cmd
}

func newMTFCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mtf <symbol>",
		Aliases: []string{"trend"},
		Short:   "Multi-timeframe trend analysis",
		Long: `Classify the trend of a symbol on 5m, 15m, 1h, 1d and 1mo bars and
report how many timeframes agree. Timeframes without enough data are
shown as degraded.`,
		Example: `  dashboard mtf AAPL
  dashboard trend BTC-USD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rep, err := buildReport(cmd, app, args[0])
			if err != nil {
				output.Error("Multi-timeframe analysis failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(rep.TimeframeAnalysis)
			}

			output.Bold("%s Multi-Timeframe Analysis", rep.Symbol)
			output.Println()
			displayTimeframes(output, rep.TimeframeAnalysis)
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period")

	return cmd
}

func newPivotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivots <symbol>",
		Short: "Pivot points, key levels and strategies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rep, err := buildReport(cmd, app, args[0])
			if err != nil {
				output.Error("Pivot calculation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"pivot_points": rep.TimeframeAnalysis.PivotPoints,
					"key_levels":   rep.TimeframeAnalysis.KeyLevels,
					"strategies":   rep.TimeframeAnalysis.Strategies,
				})
			}

			output.Bold("%s Pivot Points", rep.Symbol)
			output.Println()
			displayPivots(output, rep.TimeframeAnalysis)
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period")

	return cmd
}

func newIndicatorCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicator <symbol> [name]",
		Short: "One indicator series, or the list of indicators",
		Example: `  dashboard indicator AAPL
  dashboard indicator AAPL rsi --rows 10
  dashboard indicator ETH-USD macd_12_26_9 --period 6mo`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				names := dash.Indicators()
				if output.IsJSON() {
					return output.JSON(names)
				}
				output.Bold("Indicators")
				for _, name := range names {
					output.Println("  " + name)
				}
				return nil
			}

			period, _ := cmd.Flags().GetString("period")
			ctx, cancel := commandContext(app)
			defer cancel()
			data, err := dash.Indicator(ctx, args[0], args[1], period)
			if err != nil {
				output.Error("Indicator failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(data)
			}

			keys := make([]string, 0, len(data.Values))
			for key := range data.Values {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			output.Bold("%s %s (%s)", data.Ticker, data.Indicator, data.Period)
			table := NewTable(output, append([]string{"Date"}, keys...)...)
			rows, _ := cmd.Flags().GetInt("rows")
			start := len(data.Dates) - rows
			if start < 0 || rows <= 0 {
				start = 0
			}
			for i := start; i < len(data.Dates); i++ {
				cells := []string{FormatDateTime(data.Dates[i])}
				for _, key := range keys {
					cells = append(cells, FormatOptional(data.Values[key][i]))
				}
				table.AddRow(cells...)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period (1d, 5d, 1mo, 3mo, 6mo, ytd, 1y, 5y)")
	cmd.Flags().Int("rows", 10, "number of rows to show")

	return cmd
}

func newReportsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports <symbol>",
		Short: "List stored reports for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := models.NormalizeSymbol(args[0])
			records, err := dash.RecentReports(ctx, symbol, limit, false)
			if err != nil {
				output.Error("Failed to list reports: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Info("No stored reports for %s", symbol)
				return nil
			}

			table := NewTable(output, "Generated", "Period", "Signal", "Confluence", "ID")
			for _, rec := range records {
				table.AddRow(
					FormatDateTime(rec.CreatedAt),
					rec.Period,
					rec.OverallSignal,
					rec.Confluence,
					output.DimText(TruncateString(rec.ID, 13)),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "maximum number of reports")

	return cmd
}

func displayLatest(output *Output, rep *report.Report) {
	l := rep.Latest
	output.Bold("%s  %s", rep.Symbol, output.DimText(rep.Period))
	output.Printf("Close: %s  %s\n",
		utils.FormatPrice(l.Close),
		output.Change(l.Change, fmt.Sprintf("%s (%s)", utils.FormatChange(l.Change), utils.FormatPercent(l.ChangePct))),
	)
	output.Printf("Volume: %s   Date: %s\n", utils.FormatVolume(l.Volume), l.Date.Format("2006-01-02"))
	output.Println()
}

func displayIndicators(output *Output, rows []indicators.Row, n int) {
	if n <= 0 || len(rows) == 0 {
		return
	}
	if n > len(rows) {
		n = len(rows)
	}

	output.Bold("Indicators")
	table := NewTable(output, "Date", "Close", "SMA20", "SMA50", "RSI", "MACD", "ADX", "ATR%")
	for _, row := range rows[len(rows)-n:] {
		table.AddRow(
			row.Date.Format("2006-01-02"),
			utils.FormatPrice(row.Close),
			FormatOptional(row.SMA20),
			FormatOptional(row.SMA50),
			FormatOptional(row.RSI),
			FormatOptional(row.MACD),
			FormatOptional(row.ADX),
			FormatOptional(row.ATRPercent),
		)
	}
	table.Render()
	output.Println()
}

func displaySignals(output *Output, set signals.SignalSet) {
	named := set.Map()
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	table := NewTable(output, "Signal", "Value")
	for _, name := range names {
		table.AddRow(name, output.Signal(named[name]))
	}
	table.Render()
	output.Println()
	output.Printf("Overall: %s  %s\n",
		output.Signal(set.OverallSignal),
		output.DimText(fmt.Sprintf("(%d buy / %d sell)", set.BuyCount, set.SellCount)),
	)
	output.Println()
}

func displayTimeframes(output *Output, ta report.TimeframeAnalysis) {
	degraded := make(map[string]bool, len(ta.Degraded))
	for _, tf := range ta.Degraded {
		degraded[tf] = true
	}

	table := NewTable(output, "Timeframe", "Direction", "Strength", "Volume", "SMA20")
	for _, tf := range mtf.AllTimeframes() {
		v, ok := ta.Trends[string(tf)]
		if !ok {
			continue
		}
		above := "-"
		if v.IsAboveSMA20 != nil {
			above = "below"
			if *v.IsAboveSMA20 {
				above = "above"
			}
		}
		label := string(tf)
		if degraded[label] {
			label += output.DimText(" (degraded)")
		}
		table.AddRow(label, output.Direction(v.Direction), string(v.Strength), string(v.Volume), above)
	}
	table.Render()
	output.Println()
	output.Printf("Confluence: %s\n", output.Confluence(ta.Confluence))
	output.Println()
}

func displayPivots(output *Output, ta report.TimeframeAnalysis) {
	p := ta.PivotPoints
	table := NewTable(output, "Level", "Price")
	table.AddRow(output.Red("R3"), utils.FormatPrice(p.R3))
	table.AddRow(output.Red("R2"), utils.FormatPrice(p.R2))
	table.AddRow(output.Red("R1"), utils.FormatPrice(p.R1))
	table.AddRow(output.BoldText("Pivot"), utils.FormatPrice(p.Pivot))
	table.AddRow(output.Green("S1"), utils.FormatPrice(p.S1))
	table.AddRow(output.Green("S2"), utils.FormatPrice(p.S2))
	table.AddRow(output.Green("S3"), utils.FormatPrice(p.S3))
	table.Render()
	output.Println()

	output.Printf("Strong support: %s\n", joinPrices(ta.KeyLevels.StrongSupport))
	output.Printf("Key resistance: %s\n", joinPrices(ta.KeyLevels.KeyResistance))
	output.Println()

	output.Bold("Strategies")
	output.Printf("  Intraday: %s\n", ta.Strategies.Intraday)
	output.Printf("  Weekly:   %s\n", ta.Strategies.Weekly)
	output.Printf("  Monthly:  %s\n", ta.Strategies.Monthly)
}

func joinPrices(levels []float64) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = utils.FormatPrice(l)
	}
	return strings.Join(parts, ", ")
}
