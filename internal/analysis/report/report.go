// Package report assembles indicator rows, pivots, timeframe trends and
// signals into the technical analysis report served to clients.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-dashboard/internal/analysis"
	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/analysis/mtf"
	"market-dashboard/internal/analysis/signals"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Report is the full technical analysis of one symbol.
type Report struct {
	ID                string            `json:"id"`
	Symbol            string            `json:"ticker"`
	Period            string            `json:"period"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Latest            Latest            `json:"latest"`
	Indicators        []indicators.Row  `json:"indicators"`
	Signals           signals.SignalSet `json:"signals"`
	TimeframeAnalysis TimeframeAnalysis `json:"timeframe_analysis"`
}

// Latest summarises the most recent bar.
type Latest struct {
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	Volume    float64   `json:"volume"`
}

// TimeframeAnalysis groups the multi-timeframe view of the report.
type TimeframeAnalysis struct {
	Trends      map[string]analysis.TrendVerdict `json:"trends"`
	Strategies  Strategies                       `json:"strategies"`
	KeyLevels   indicators.KeyLevels             `json:"key_levels"`
	PivotPoints indicators.PivotSet              `json:"pivot_points"`
	Confluence  mtf.ConfluenceLevel              `json:"confluence"`
	Degraded    []string                         `json:"degraded,omitempty"`
}

// Strategies are plain-language trade plans derived from the pivot levels.
type Strategies struct {
	Weekly   string `json:"weekly"`
	Monthly  string `json:"monthly"`
	Intraday string `json:"intraday"`
}

// Request carries the inputs of one report.
type Request struct {
	Symbol  string
	Period  string
	Bars    models.BarSeries
	Fetcher mtf.Fetcher
}

// Builder composes reports.
type Builder struct {
	aggregator *mtf.Aggregator
	engine     *indicators.Engine
	signals    *signals.Aggregator
	logger     zerolog.Logger
	now        func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEngine computes indicators on the given engine instead of the shared
// default one.
func WithEngine(e *indicators.Engine) BuilderOption {
	return func(b *Builder) { b.engine = e }
}

// WithThresholds overrides the signal rule levels.
func WithThresholds(t signals.Thresholds) BuilderOption {
	return func(b *Builder) { b.signals = signals.NewAggregatorWithThresholds(t) }
}

// NewBuilder creates a report builder.
func NewBuilder(aggregator *mtf.Aggregator, logger zerolog.Logger, opts ...BuilderOption) *Builder {
	if aggregator == nil {
		aggregator = mtf.NewAggregator(mtf.WithLogger(logger))
	}
	b := &Builder{
		aggregator: aggregator,
		signals:    signals.NewAggregator(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the report. It fails only when the base series is empty.
// A nil fetcher leaves every timeframe degraded.
func (b *Builder) Build(ctx context.Context, req Request) (*Report, error) {
	if len(req.Bars) == 0 {
		return nil, apperrors.NewDataError("bars", req.Symbol, "cannot compute indicators", apperrors.ErrNoData)
	}

	var (
		bundle *indicators.Bundle
		err    error
	)
	if b.engine != nil {
		bundle, err = b.engine.Compute(ctx, req.Bars)
	} else {
		bundle, err = indicators.ComputeIndicatorsContext(ctx, req.Bars)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to compute indicators for %s", req.Symbol)
	}

	fetcher := req.Fetcher
	if fetcher == nil {
		fetcher = mtf.FetcherFunc(func(context.Context, mtf.Timeframe) (models.BarSeries, error) {
			return nil, apperrors.ErrNoData
		})
	}
	tfResult := b.aggregator.Aggregate(ctx, fetcher)

	pivots := indicators.ComputePivotsFromSeries(req.Bars)
	sigs := b.signals.Evaluate(signals.InputsFromBundle(bundle))

	var degraded []string
	for _, tf := range mtf.AllTimeframes() {
		if r := tfResult.Get(tf); r != nil && r.Degraded() {
			degraded = append(degraded, string(tf))
		}
	}

	report := &Report{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Period:      req.Period,
		GeneratedAt: b.now().UTC(),
		Latest:      latest(req.Bars),
		Indicators:  bundle.Rows(),
		Signals:     sigs,
		TimeframeAnalysis: TimeframeAnalysis{
			Trends:      tfResult.Trends(),
			Strategies:  BuildStrategies(pivots, tfResult),
			KeyLevels:   pivots.KeyLevels(),
			PivotPoints: pivots,
			Confluence:  tfResult.Confluence,
			Degraded:    degraded,
		},
	}

	b.logger.Debug().
		Str("symbol", req.Symbol).
		Str("period", req.Period).
		Int("bars", len(req.Bars)).
		Str("overall_signal", string(sigs.OverallSignal)).
		Msg("Report built")

	return report, nil
}

func latest(bars models.BarSeries) Latest {
	last, _ := bars.Last()
	out := Latest{
		Date:   last.Timestamp,
		Close:  indicators.Round2(last.Close),
		Volume: last.Volume,
	}
	if len(bars) < 2 {
		return out
	}
	prev := bars[len(bars)-2].Close
	out.Change = indicators.Round2(last.Close - prev)
	if prev != 0 {
		out.ChangePct = indicators.Round2((last.Close - prev) / prev * 100)
	}
	return out
}

// BuildStrategies phrases trade plans around the pivot levels. The weekly
// bias follows the daily trend and the intraday plan follows timeframe
// agreement. All-zero pivots produce no plans.
func BuildStrategies(p indicators.PivotSet, tf *mtf.Result) Strategies {
	if p.IsZero() {
		return Strategies{}
	}

	bias := "Bullish"
	if tf != nil {
		if day := tf.Get(mtf.Timeframe1Day); day != nil && !day.Degraded() && day.Verdict.Direction == analysis.Bearish {
			bias = "Bearish"
		}
	}

	var weekly string
	if bias == "Bullish" {
		weekly = fmt.Sprintf("Bullish bias above $%.2f; a close above $%.2f could extend toward $%.2f.",
			p.S1, p.R1, p.R2)
	} else {
		weekly = fmt.Sprintf("Bearish bias below $%.2f; a close under $%.2f could extend toward $%.2f.",
			p.R1, p.S1, p.S2)
	}

	monthly := fmt.Sprintf("Sustained closes above $%.2f open a test of $%.2f; below $%.2f momentum could reverse sharply.",
		p.R2, p.R3, p.S2)

	var intraday string
	if tf != nil && (tf.Confluence == mtf.ConfluenceStrong || tf.Confluence == mtf.ConfluenceModerate) {
		intraday = fmt.Sprintf("Timeframes agree on a %s trend: trade with it from $%.2f, first target $%.2f, invalidation at $%.2f.",
			tf.OverallTrend, p.Pivot, targetFor(tf.OverallTrend, p), stopFor(tf.OverallTrend, p))
	} else {
		intraday = fmt.Sprintf("Mixed signals across timeframes: longs on bounces above $%.2f targeting $%.2f and $%.2f, "+
			"shorts on breaks below $%.2f toward $%.2f. Keep stops tight.",
			p.Pivot, p.R1, p.R2, p.Pivot, p.S1)
	}

	return Strategies{Weekly: weekly, Monthly: monthly, Intraday: intraday}
}

func targetFor(d analysis.Direction, p indicators.PivotSet) float64 {
	if d == analysis.Bearish {
		return p.S1
	}
	return p.R1
}

func stopFor(d analysis.Direction, p indicators.PivotSet) float64 {
	if d == analysis.Bearish {
		return p.R1
	}
	return p.S1
}
