package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/models"
)

// BarRecord is one exported OHLCV row.
type BarRecord struct {
	Date   string `csv:"date" json:"date"`
	Open   string `csv:"open" json:"open"`
	High   string `csv:"high" json:"high"`
	Low    string `csv:"low" json:"low"`
	Close  string `csv:"close" json:"close"`
	Volume string `csv:"volume" json:"volume"`
}

// IndicatorRecord is one exported indicator row. Undefined values are empty.
type IndicatorRecord struct {
	Date       string `csv:"date"`
	Close      string `csv:"close"`
	SMA20      string `csv:"sma20"`
	SMA50      string `csv:"sma50"`
	SMA200     string `csv:"sma200"`
	EMA12      string `csv:"ema12"`
	EMA26      string `csv:"ema26"`
	UpperBand  string `csv:"upper_band"`
	MiddleBand string `csv:"middle_band"`
	LowerBand  string `csv:"lower_band"`
	RSI        string `csv:"rsi"`
	MACD       string `csv:"macd"`
	Signal     string `csv:"signal"`
	Histogram  string `csv:"histogram"`
	ADX        string `csv:"adx"`
	ATR        string `csv:"atr"`
	OBV        string `csv:"obv"`
}

// BarRecords converts bars for export.
func BarRecords(bars models.BarSeries) []*BarRecord {
	out := make([]*BarRecord, len(bars))
	for i, b := range bars {
		out[i] = &BarRecord{
			Date:   b.Timestamp.UTC().Format(time.RFC3339),
			Open:   fmt.Sprintf("%.2f", b.Open),
			High:   fmt.Sprintf("%.2f", b.High),
			Low:    fmt.Sprintf("%.2f", b.Low),
			Close:  fmt.Sprintf("%.2f", b.Close),
			Volume: fmt.Sprintf("%.0f", b.Volume),
		}
	}
	return out
}

// IndicatorRecords converts indicator rows for export.
func IndicatorRecords(rows []indicators.Row) []*IndicatorRecord {
	cell := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.2f", *v)
	}

	out := make([]*IndicatorRecord, len(rows))
	for i, r := range rows {
		out[i] = &IndicatorRecord{
			Date:       r.Date.UTC().Format(time.RFC3339),
			Close:      fmt.Sprintf("%.2f", r.Close),
			SMA20:      cell(r.SMA20),
			SMA50:      cell(r.SMA50),
			SMA200:     cell(r.SMA200),
			EMA12:      cell(r.EMA12),
			EMA26:      cell(r.EMA26),
			UpperBand:  cell(r.UpperBand),
			MiddleBand: cell(r.MiddleBand),
			LowerBand:  cell(r.LowerBand),
			RSI:        cell(r.RSI),
			MACD:       cell(r.MACD),
			Signal:     cell(r.Signal),
			Histogram:  cell(r.Histogram),
			ADX:        cell(r.ADX),
			ATR:        cell(r.ATR),
			OBV:        cell(r.OBV),
		}
	}
	return out
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data to files",
		Long:  "Export price bars or indicator rows to CSV or JSON files.",
	}

	barsCmd := &cobra.Command{
		Use:     "bars <symbol>",
		Short:   "Export price bars",
		Example: "  dashboard export bars AAPL --period 1y --output aapl.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dash, err := app.Dashboard()
			if err != nil {
				return err
			}
			period, _ := cmd.Flags().GetString("period")

			ctx, cancel := commandContext(app)
			defer cancel()

			data, err := dash.MarketData(ctx, models.NormalizeSymbol(args[0]), period)
			if err != nil {
				output.Error("Failed to fetch bars: %v", err)
				return err
			}
			return writeExport(cmd, output, data.Ticker, "bars", BarRecords(data.Prices))
		},
	}
	barsCmd.Flags().StringP("period", "p", "", "chart period (default 3mo)")

	indicatorsCmd := &cobra.Command{
		Use:     "indicators <symbol>",
		Short:   "Export indicator rows",
		Example: "  dashboard export indicators MSFT --format json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rep, err := buildReport(cmd, app, args[0])
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return writeExport(cmd, output, rep.Symbol, "indicators", rep.Indicators)
			}
			return writeExport(cmd, output, rep.Symbol, "indicators", IndicatorRecords(rep.Indicators))
		},
	}
	indicatorsCmd.Flags().StringP("period", "p", "", "lookback period")

	for _, sub := range []*cobra.Command{barsCmd, indicatorsCmd} {
		sub.Flags().StringP("format", "f", "csv", "output format (csv, json)")
		sub.Flags().StringP("output", "o", "", "output file, - for stdout")
		cmd.AddCommand(sub)
	}

	return cmd
}

// writeExport writes records in the requested format to the output file.
func writeExport(cmd *cobra.Command, output *Output, symbol, kind string, records interface{}) error {
	format, _ := cmd.Flags().GetString("format")
	outFile, _ := cmd.Flags().GetString("output")

	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}
	if outFile == "" {
		safe := strings.NewReplacer("/", "-", "^", "", "=", "-").Replace(symbol)
		outFile = fmt.Sprintf("%s_%s.%s", strings.ToLower(safe), kind, format)
	}

	var w io.Writer = cmd.OutOrStdout()
	if outFile != "-" {
		file, err := os.Create(outFile)
		if err != nil {
			output.Error("Failed to create file: %v", err)
			return err
		}
		defer file.Close()
		w = file
	}

	var err error
	if format == "csv" {
		err = gocsv.Marshal(records, w)
	} else {
		err = newOutput(w, true, false).JSON(records)
	}
	if err != nil {
		return fmt.Errorf("write %s export: %w", kind, err)
	}

	if outFile != "-" && !output.IsJSON() {
		output.Success("✓ Exported %s %s to %s", symbol, kind, outFile)
	}
	return nil
}
