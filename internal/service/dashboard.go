// Package service wires market data, analysis, persistence and narration
// into the operations exposed by the HTTP server and the CLI.
package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"market-dashboard/internal/agents"
	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/analysis/report"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/market"
	"market-dashboard/internal/models"
	"market-dashboard/internal/observability"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/store"
)

// Default periods of the dashboard operations.
const (
	DefaultChartPeriod   = "3mo"
	DefaultSummaryPeriod = "1d"
	DefaultReportPeriod  = "3mo"
)

// catalystLookbackDays is the daily history handed to the catalyst summary.
const catalystLookbackDays = 10

// PriceData is the chart payload for one symbol.
type PriceData struct {
	Ticker string           `json:"ticker"`
	Period string           `json:"period"`
	Prices models.BarSeries `json:"prices"`
}

// Dashboard implements the dashboard operations.
type Dashboard struct {
	provider      market.Provider
	catalog       *market.Catalog
	summarizer    *market.Summarizer
	builder       *report.Builder
	engine        *indicators.Engine
	store         store.DataStore
	metrics       *observability.Metrics
	narrator      *agents.Narrator
	health        *resilience.HealthChecker
	defaultPeriod string
	logger        zerolog.Logger
	now           func() time.Time
}

// Deps are the collaborators of a Dashboard. Provider is required; Store,
// Metrics and Health may be nil.
type Deps struct {
	Provider      market.Provider
	Catalog       *market.Catalog
	Builder       *report.Builder
	Engine        *indicators.Engine
	Store         store.DataStore
	Metrics       *observability.Metrics
	Health        *resilience.HealthChecker
	LLM           agents.LLMClient
	NarratorOpts  []agents.Option
	DefaultPeriod string
	Logger        zerolog.Logger
}

// NewDashboard creates a dashboard. The narrator is wired to read reports,
// summaries and daily bars through the dashboard itself.
func NewDashboard(deps Deps) *Dashboard {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}
	builder := deps.Builder
	if builder == nil {
		builder = report.NewBuilder(nil, deps.Logger)
	}
	engine := deps.Engine
	if engine == nil {
		engine = indicators.NewDefaultEngine(0)
	}
	period := deps.DefaultPeriod
	if period == "" {
		period = DefaultReportPeriod
	}

	d := &Dashboard{
		provider:      deps.Provider,
		catalog:       catalog,
		summarizer:    market.NewSummarizer(deps.Provider, catalog, deps.Logger),
		builder:       builder,
		engine:        engine,
		store:         deps.Store,
		metrics:       deps.Metrics,
		health:        deps.Health,
		defaultPeriod: period,
		logger:        deps.Logger,
		now:           time.Now,
	}

	opts := []agents.Option{
		agents.WithLogger(deps.Logger),
		agents.WithSources(agents.Sources{
			Reports:   d.TechnicalReport,
			Summary:   d.Summary,
			DailyBars: d.DailyBars,
		}),
	}
	if deps.Metrics != nil {
		opts = append(opts, agents.WithRecorder(deps.Metrics))
	}
	opts = append(opts, deps.NarratorOpts...)
	d.narrator = agents.NewNarrator(deps.LLM, opts...)

	return d
}

// Narrator returns the language model layer.
func (d *Dashboard) Narrator() *agents.Narrator {
	return d.narrator
}

// Catalog returns the instrument catalog.
func (d *Dashboard) Catalog() *market.Catalog {
	return d.catalog
}

// ProviderName names the configured provider chain.
func (d *Dashboard) ProviderName() string {
	return d.provider.Name()
}

// Health runs the registered health checks. Without a checker the system
// reports healthy with no components.
func (d *Dashboard) Health(ctx context.Context) resilience.SystemHealth {
	if d.health == nil {
		return resilience.SystemHealth{Status: resilience.HealthStatusHealthy, Components: []resilience.ComponentHealth{}}
	}
	return d.health.Check(ctx)
}

// MarketData returns chart bars for a symbol. The fetch window is padded
// and then trimmed back to the period.
func (d *Dashboard) MarketData(ctx context.Context, ticker, period string) (*PriceData, error) {
	symbol := models.NormalizeSymbol(ticker)
	if symbol == "" {
		return nil, apperrors.NewValidationError("ticker", ticker, "ticker is required")
	}
	if period == "" {
		period = DefaultChartPeriod
	}
	if err := market.ValidatePeriod(period); err != nil {
		return nil, err
	}

	now := d.now()
	rng := market.ChartRange(period, now)
	bars, err := d.provider.GetBars(ctx, models.HistoricalRequest{
		Symbol:     symbol,
		AssetClass: d.catalog.AssetClassOf(symbol),
		Interval:   rng.Interval,
		From:       rng.From,
		To:         rng.To,
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewDataError("bars", symbol, "no data found", apperrors.ErrNoData)
	}

	return &PriceData{
		Ticker: symbol,
		Period: period,
		Prices: market.FilterToPeriod(bars, period, now),
	}, nil
}

// Summary returns the quotes of every listed instrument grouped by
// category.
func (d *Dashboard) Summary(ctx context.Context, period string) map[string][]models.Quote {
	if period == "" {
		period = DefaultSummaryPeriod
	}
	return d.summarizer.Summary(ctx, period)
}

// TechnicalReport builds and persists the technical analysis of a symbol.
// A failed save is logged and does not fail the request.
func (d *Dashboard) TechnicalReport(ctx context.Context, ticker, period string) (*report.Report, error) {
	symbol := models.NormalizeSymbol(ticker)
	if symbol == "" {
		return nil, apperrors.NewValidationError("ticker", ticker, "ticker is required")
	}
	if period == "" {
		period = d.defaultPeriod
	}
	if err := market.ValidatePeriod(period); err != nil {
		return nil, err
	}

	logger := logging.WithOperation(logging.WithSymbol(d.logger, symbol), "technical_report")
	start := time.Now()
	class := d.catalog.AssetClassOf(symbol)
	bars, err := d.baseBars(ctx, symbol, class, period)
	if err != nil {
		logger.Debug().Err(err).Msg("Base bars unavailable")
		return nil, err
	}

	rep, err := d.builder.Build(ctx, report.Request{
		Symbol: symbol,
		Period: period,
		Bars:   bars,
		Fetcher: &market.TimeframeFetcher{
			Provider:   d.provider,
			Symbol:     symbol,
			AssetClass: class,
			Now:        d.now,
		},
	})
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if d.metrics != nil {
		d.metrics.RecordReport(string(rep.Signals.OverallSignal), duration)
	}
	logging.LogReport(logger, period, string(rep.Signals.OverallSignal), len(rep.TimeframeAnalysis.Degraded), duration)

	d.saveReport(ctx, logger, rep)
	return rep, nil
}

func (d *Dashboard) baseBars(ctx context.Context, symbol string, class models.AssetClass, period string) (models.BarSeries, error) {
	rng := market.DateRange(period, d.now())
	return d.provider.GetBars(ctx, models.HistoricalRequest{
		Symbol:     symbol,
		AssetClass: class,
		Interval:   rng.Interval,
		From:       rng.From,
		To:         rng.To,
	})
}

// IndicatorData is one indicator computed over the report history of a
// symbol. Undefined values are null.
type IndicatorData struct {
	Ticker    string                `json:"ticker"`
	Period    string                `json:"period"`
	Indicator string                `json:"indicator"`
	Dates     []time.Time           `json:"dates"`
	Values    map[string][]*float64 `json:"values"`
}

// Indicators lists the registered indicator names.
func (d *Dashboard) Indicators() []string {
	names := append(d.engine.ListIndicators(), d.engine.ListMultiIndicators()...)
	sort.Strings(names)
	return names
}

// Indicator computes a single registered indicator over the same history
// a technical report uses.
func (d *Dashboard) Indicator(ctx context.Context, ticker, name, period string) (*IndicatorData, error) {
	symbol := models.NormalizeSymbol(ticker)
	if symbol == "" {
		return nil, apperrors.NewValidationError("ticker", ticker, "ticker is required")
	}
	if period == "" {
		period = d.defaultPeriod
	}
	if err := market.ValidatePeriod(period); err != nil {
		return nil, err
	}

	bars, err := d.baseBars(ctx, symbol, d.catalog.AssetClassOf(symbol), period)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewDataError("bars", symbol, "no data found", apperrors.ErrNoData)
	}

	series, err := d.engine.Lookup(ctx, name, bars)
	if err != nil {
		return nil, err
	}

	data := &IndicatorData{
		Ticker:    symbol,
		Period:    period,
		Indicator: name,
		Dates:     make([]time.Time, len(bars)),
		Values:    make(map[string][]*float64, len(series)),
	}
	for i, bar := range bars {
		data.Dates[i] = bar.Timestamp
	}
	for key, values := range series {
		out := make([]*float64, len(values))
		for i, v := range values {
			out[i] = indicators.Display(v)
		}
		data.Values[key] = out
	}
	return data, nil
}

func (d *Dashboard) saveReport(ctx context.Context, logger zerolog.Logger, rep *report.Report) {
	if d.store == nil {
		return
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode report")
		return
	}
	err = d.store.SaveReport(ctx, &store.ReportRecord{
		ID:            rep.ID,
		Symbol:        rep.Symbol,
		Period:        rep.Period,
		OverallSignal: string(rep.Signals.OverallSignal),
		Confluence:    string(rep.TimeframeAnalysis.Confluence),
		CreatedAt:     rep.GeneratedAt,
		Payload:       payload,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to save report")
	}
}

// RecentReports lists stored reports, newest first. An empty ticker lists
// every symbol.
func (d *Dashboard) RecentReports(ctx context.Context, ticker string, limit int, includePayload bool) ([]store.ReportRecord, error) {
	if d.store == nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseError, "report history is not available")
	}
	return d.store.RecentReports(ctx, store.ReportFilter{
		Symbol:         models.NormalizeSymbol(ticker),
		Limit:          limit,
		IncludePayload: includePayload,
	})
}

// DailyBars returns the last few days of daily bars for a symbol.
func (d *Dashboard) DailyBars(ctx context.Context, ticker string) (models.BarSeries, error) {
	symbol := models.NormalizeSymbol(ticker)
	now := d.now()
	return d.provider.GetBars(ctx, models.HistoricalRequest{
		Symbol:     symbol,
		AssetClass: d.catalog.AssetClassOf(symbol),
		Interval:   models.IntervalDay,
		From:       now.AddDate(0, 0, -catalystLookbackDays),
		To:         now,
	})
}
