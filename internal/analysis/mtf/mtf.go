// Package mtf provides multi-timeframe trend analysis.
package mtf

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"market-dashboard/internal/analysis"
	"market-dashboard/internal/analysis/trend"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Timeframe represents an analysis timeframe.
type Timeframe string

const (
	Timeframe5Min   Timeframe = "5m"
	Timeframe15Min  Timeframe = "15m"
	Timeframe1Hour  Timeframe = "1h"
	Timeframe1Day   Timeframe = "1d"
	Timeframe1Month Timeframe = "1mo"
)

// AllTimeframes returns all supported timeframes, finest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{Timeframe5Min, Timeframe15Min, Timeframe1Hour, Timeframe1Day, Timeframe1Month}
}

// Fetcher supplies the raw bars for a timeframe. For 5m and 15m it returns
// minute bars, for 1mo daily bars.
type Fetcher interface {
	FetchBars(ctx context.Context, tf Timeframe) (models.BarSeries, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, tf Timeframe) (models.BarSeries, error)

// FetchBars calls f.
func (f FetcherFunc) FetchBars(ctx context.Context, tf Timeframe) (models.BarSeries, error) {
	return f(ctx, tf)
}

// Observer is notified of every timeframe outcome.
type Observer interface {
	ObserveTimeframe(tf string, status string)
}

// Status marks whether a timeframe was classified from real data.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// ConfluenceLevel represents the level of timeframe agreement.
type ConfluenceLevel string

const (
	ConfluenceStrong   ConfluenceLevel = "STRONG"   // 4+ agree
	ConfluenceModerate ConfluenceLevel = "MODERATE" // 3 agree
	ConfluenceWeak     ConfluenceLevel = "WEAK"     // 2 agree
	ConfluenceNone     ConfluenceLevel = "NONE"
)

// timeframeSpec describes how raw bars become a classifiable series.
type timeframeSpec struct {
	stride        int
	minRaw        int
	monthly       bool
	minAggregates int
}

var specs = map[Timeframe]timeframeSpec{
	Timeframe5Min:   {stride: 5, minRaw: 5},
	Timeframe15Min:  {stride: 15, minRaw: 15},
	Timeframe1Hour:  {stride: 1, minRaw: 5},
	Timeframe1Day:   {stride: 1, minRaw: 5},
	Timeframe1Month: {monthly: true, minRaw: 30, minAggregates: 2},
}

// TimeframeResult holds the outcome for one timeframe. A failed or short
// timeframe carries the degraded verdict and the reason.
type TimeframeResult struct {
	Timeframe Timeframe             `json:"timeframe"`
	Verdict   analysis.TrendVerdict `json:"verdict"`
	Status    Status                `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	Points    int                   `json:"points"`
	Err       error                 `json:"-"`
}

// Degraded reports whether the timeframe fell back to the neutral verdict.
func (r *TimeframeResult) Degraded() bool {
	return r.Status == StatusDegraded
}

// Result contains the complete multi-timeframe analysis result.
type Result struct {
	Timeframes    map[Timeframe]*TimeframeResult `json:"timeframes"`
	Confluence    ConfluenceLevel                `json:"confluence"`
	OverallTrend  analysis.Direction             `json:"overall_trend"`
	BullishCount  int                            `json:"bullish_count"`
	BearishCount  int                            `json:"bearish_count"`
	DegradedCount int                            `json:"degraded_count"`
}

// Aggregator classifies every timeframe independently.
type Aggregator struct {
	classifier *trend.Classifier
	monthly    *trend.Classifier
	timeframes []Timeframe
	logger     zerolog.Logger
	observer   Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for degraded timeframes.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithTimeframes restricts the aggregator to a subset of timeframes.
func WithTimeframes(tfs ...Timeframe) Option {
	return func(a *Aggregator) { a.timeframes = tfs }
}

// NewAggregator creates a new multi-timeframe aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		classifier: trend.NewClassifier(),
		monthly:    trend.NewMonthlyClassifier(),
		timeframes: AllTimeframes(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches and classifies all timeframes concurrently. It always
// returns an entry for every configured timeframe.
func (a *Aggregator) Aggregate(ctx context.Context, fetcher Fetcher) *Result {
	result := &Result{
		Timeframes: make(map[Timeframe]*TimeframeResult, len(a.timeframes)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, tf := range a.timeframes {
		wg.Add(1)
		go func(tf Timeframe) {
			defer wg.Done()

			tfResult := a.analyzeTimeframe(ctx, fetcher, tf)

			mu.Lock()
			result.Timeframes[tf] = tfResult
			mu.Unlock()
		}(tf)
	}

	wg.Wait()

	for _, tf := range a.timeframes {
		r := result.Timeframes[tf]
		if r.Degraded() {
			a.logger.Debug().
				Str("timeframe", string(tf)).
				Str("reason", r.Reason).
				Msg("Timeframe degraded to neutral verdict")
		}
		if a.observer != nil {
			a.observer.ObserveTimeframe(string(tf), string(r.Status))
		}
	}

	calculateConfluence(result)
	return result
}

// AggregateSeries classifies pre-fetched series. Missing timeframes degrade.
func (a *Aggregator) AggregateSeries(ctx context.Context, seriesByTimeframe map[Timeframe]models.BarSeries) *Result {
	return a.Aggregate(ctx, FetcherFunc(func(_ context.Context, tf Timeframe) (models.BarSeries, error) {
		bars, ok := seriesByTimeframe[tf]
		if !ok {
			return nil, apperrors.ErrNoData
		}
		return bars, nil
	}))
}

// analyzeTimeframe fetches data and classifies a single timeframe. Panics
// from the fetcher are contained here.
func (a *Aggregator) analyzeTimeframe(ctx context.Context, fetcher Fetcher, tf Timeframe) (result *TimeframeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = degraded(tf, 0, fmt.Errorf("panic while analysing %s: %v", tf, r))
		}
	}()

	spec, ok := specs[tf]
	if !ok {
		return degraded(tf, 0, fmt.Errorf("unknown timeframe %q", tf))
	}

	raw, err := fetcher.FetchBars(ctx, tf)
	if err != nil {
		return degraded(tf, 0, fmt.Errorf("failed to fetch %s data: %w", tf, err))
	}
	if len(raw) < spec.minRaw {
		return degraded(tf, len(raw), fmt.Errorf("%w for %s: got %d bars, need at least %d",
			apperrors.ErrInsufficientData, tf, len(raw), spec.minRaw))
	}

	classifier := a.classifier
	var series models.BarSeries
	if spec.monthly {
		series = ResampleMonthly(raw)
		if len(series) < spec.minAggregates {
			return degraded(tf, len(series), fmt.Errorf("%w for %s: got %d monthly bars, need at least %d",
				apperrors.ErrInsufficientData, tf, len(series), spec.minAggregates))
		}
		classifier = a.monthly
	} else {
		series = Stride(raw, spec.stride)
	}

	if len(series) < classifier.MinPoints {
		return degraded(tf, len(series), fmt.Errorf("%w for %s: got %d points, need at least %d",
			apperrors.ErrInsufficientData, tf, len(series), classifier.MinPoints))
	}

	return &TimeframeResult{
		Timeframe: tf,
		Verdict:   classifier.Classify(series),
		Status:    StatusOK,
		Points:    len(series),
	}
}

func degraded(tf Timeframe, points int, err error) *TimeframeResult {
	return &TimeframeResult{
		Timeframe: tf,
		Verdict:   analysis.DegradedVerdict(),
		Status:    StatusDegraded,
		Reason:    err.Error(),
		Points:    points,
		Err:       err,
	}
}

// calculateConfluence counts agreeing timeframes. Degraded timeframes do
// not vote.
func calculateConfluence(result *Result) {
	bullish, bearish, degradedCount := 0, 0, 0

	for _, r := range result.Timeframes {
		if r == nil || r.Degraded() {
			degradedCount++
			continue
		}
		switch r.Verdict.Direction {
		case analysis.Bullish:
			bullish++
		case analysis.Bearish:
			bearish++
		}
	}

	result.BullishCount = bullish
	result.BearishCount = bearish
	result.DegradedCount = degradedCount

	maxAgreement := bullish
	if bearish > maxAgreement {
		maxAgreement = bearish
	}

	switch {
	case maxAgreement >= 4:
		result.Confluence = ConfluenceStrong
	case maxAgreement == 3:
		result.Confluence = ConfluenceModerate
	case maxAgreement == 2:
		result.Confluence = ConfluenceWeak
	default:
		result.Confluence = ConfluenceNone
	}

	switch {
	case bullish > bearish:
		result.OverallTrend = analysis.Bullish
	case bearish > bullish:
		result.OverallTrend = analysis.Bearish
	default:
		result.OverallTrend = analysis.Neutral
	}
}

// Trends returns the timeframe-label to verdict mapping.
func (r *Result) Trends() map[string]analysis.TrendVerdict {
	trends := make(map[string]analysis.TrendVerdict, len(r.Timeframes))
	for tf, tfResult := range r.Timeframes {
		trends[string(tf)] = tfResult.Verdict
	}
	return trends
}

// Get returns the result for a specific timeframe.
func (r *Result) Get(tf Timeframe) *TimeframeResult {
	if r.Timeframes == nil {
		return nil
	}
	return r.Timeframes[tf]
}

// FormatResult formats the result for terminal display.
func (r *Result) FormatResult(symbol string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Multi-Timeframe Trends: %s\n", symbol))
	sb.WriteString(strings.Repeat("─", 60) + "\n")
	sb.WriteString(fmt.Sprintf("%-10s %-10s %-10s %-12s %-8s\n",
		"Timeframe", "Trend", "Strength", "Volume", "Points"))
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for _, tf := range AllTimeframes() {
		tfResult := r.Timeframes[tf]
		if tfResult == nil {
			continue
		}
		line := fmt.Sprintf("%-10s %-10s %-10s %-12s %-8d",
			tf,
			tfResult.Verdict.Direction,
			tfResult.Verdict.Strength,
			tfResult.Verdict.Volume,
			tfResult.Points,
		)
		if tfResult.Degraded() {
			line += " (no data)"
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(strings.Repeat("─", 60) + "\n")
	sb.WriteString(fmt.Sprintf("  Confluence:    %s\n", r.Confluence))
	sb.WriteString(fmt.Sprintf("  Overall Trend: %s\n", r.OverallTrend))
	sb.WriteString(fmt.Sprintf("  Bullish/Bearish/Degraded: %d/%d/%d\n",
		r.BullishCount, r.BearishCount, r.DegradedCount))

	return sb.String()
}
