package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/agents"
	"market-dashboard/internal/config"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/market"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/store"
)

type cannedLLM struct {
	reply string
}

func (c *cannedLLM) Complete(context.Context, string, agents.CompletionOptions) (string, error) {
	return c.reply, nil
}

func (c *cannedLLM) CompleteWithSystem(context.Context, string, string, agents.CompletionOptions) (string, error) {
	return c.reply, nil
}

func (c *cannedLLM) CompleteJSON(context.Context, string, string, agents.CompletionOptions) (string, error) {
	return `{"request_type":"general","symbol":"","timeframe":"","intent":"","is_specific_asset":false}`, nil
}

func newTestDashboard(t *testing.T) (*Dashboard, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "dashboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	d := NewDashboard(Deps{
		Provider: market.NewMockProvider(),
		Store:    st,
		LLM:      &cannedLLM{reply: "Momentum is constructive."},
		Logger:   zerolog.Nop(),
	})
	return d, st
}

func TestMarketData(t *testing.T) {
	d, _ := newTestDashboard(t)

	data, err := d.MarketData(context.Background(), "spy", "")
	require.NoError(t, err)
	assert.Equal(t, "SPY", data.Ticker)
	assert.Equal(t, DefaultChartPeriod, data.Period)
	require.NotEmpty(t, data.Prices)
	for i := 1; i < len(data.Prices); i++ {
		assert.True(t, data.Prices[i].Timestamp.After(data.Prices[i-1].Timestamp))
	}

	crypto, err := d.MarketData(context.Background(), "btc-usd", "5d")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", crypto.Ticker)
}

func TestMarketDataValidation(t *testing.T) {
	d, _ := newTestDashboard(t)

	_, err := d.MarketData(context.Background(), "SPY", "2w")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = d.MarketData(context.Background(), "  ", "1mo")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSummaryDefaultsToOneDay(t *testing.T) {
	d, _ := newTestDashboard(t)

	summary := d.Summary(context.Background(), "")
	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "indices")
	for _, q := range summary["indices"] {
		assert.NotEmpty(t, q.Symbol)
		assert.NotZero(t, q.Price)
	}
}

func TestTechnicalReportIsPersisted(t *testing.T) {
	d, _ := newTestDashboard(t)
	ctx := context.Background()

	rep, err := d.TechnicalReport(ctx, "aapl", "")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rep.Symbol)
	assert.Equal(t, DefaultReportPeriod, rep.Period)
	assert.NotEmpty(t, rep.Indicators)
	assert.Len(t, rep.TimeframeAnalysis.Trends, 5)

	records, err := d.RecentReports(ctx, "AAPL", 10, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rep.ID, records[0].ID)
	assert.Equal(t, string(rep.Signals.OverallSignal), records[0].OverallSignal)
	assert.Contains(t, string(records[0].Payload), `"ticker":"AAPL"`)
}

func TestTechnicalReportRejectsUnknownPeriod(t *testing.T) {
	d, _ := newTestDashboard(t)
	_, err := d.TechnicalReport(context.Background(), "AAPL", "10y")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestIndicatorSeries(t *testing.T) {
	d, _ := newTestDashboard(t)
	ctx := context.Background()

	assert.Contains(t, d.Indicators(), "rsi")
	assert.Contains(t, d.Indicators(), "bollinger_20_2.0")

	rsi, err := d.Indicator(ctx, "msft", "rsi", "")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", rsi.Ticker)
	assert.Equal(t, DefaultReportPeriod, rsi.Period)
	values := rsi.Values["rsi"]
	require.Len(t, values, len(rsi.Dates))
	assert.Nil(t, values[0])
	require.NotNil(t, values[len(values)-1])
	assert.InDelta(t, 50, *values[len(values)-1], 50)

	bands, err := d.Indicator(ctx, "MSFT", "bollinger_20_2.0", "6mo")
	require.NoError(t, err)
	assert.Len(t, bands.Values, 3)
	last := len(bands.Dates) - 1
	assert.GreaterOrEqual(t, *bands.Values["upper_band"][last], *bands.Values["lower_band"][last])

	_, err = d.Indicator(ctx, "MSFT", "vwap", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = d.Indicator(ctx, "MSFT", "rsi", "2w")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRecentReportsWithoutStore(t *testing.T) {
	d := NewDashboard(Deps{Provider: market.NewMockProvider(), Logger: zerolog.Nop()})
	_, err := d.RecentReports(context.Background(), "", 5, false)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)
	assert.Equal(t, resilience.HealthStatusHealthy, d.Health(context.Background()).Status)
}

func TestNarratorReadsThroughDashboard(t *testing.T) {
	d, _ := newTestDashboard(t)
	require.True(t, d.Narrator().Available())

	bars, err := d.DailyBars(context.Background(), "MSFT")
	require.NoError(t, err)
	require.NotEmpty(t, bars)

	rep, err := d.Narrator().CatalystSummary(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", rep.Symbol)
	assert.False(t, rep.Fallback)
	assert.Equal(t, "Momentum is constructive.", rep.Analysis)
}

func TestOpenWithMockProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Provider = "mock"
	cfg.Data.DBPath = filepath.Join(t.TempDir(), "data", "dashboard.db")

	rt, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "mock", rt.Dashboard.ProviderName())
	assert.False(t, rt.Dashboard.Narrator().Available())
	require.NotNil(t, rt.Store)

	health := rt.Dashboard.Health(context.Background())
	names := make(map[string]resilience.HealthStatus)
	for _, c := range health.Components {
		names[c.Name] = c.Status
	}
	assert.Equal(t, resilience.HealthStatusHealthy, names["database"])
	assert.Equal(t, resilience.HealthStatusHealthy, names["market_data"])
	assert.Equal(t, resilience.HealthStatusDegraded, names["llm"])
	assert.Equal(t, resilience.HealthStatusDegraded, health.Status)

	_, err = rt.Dashboard.TechnicalReport(context.Background(), "QQQ", "1mo")
	require.NoError(t, err)

	families, err := rt.Registry.Gather()
	require.NoError(t, err)
	var sawReports bool
	for _, f := range families {
		if f.GetName() == "market_dashboard_analysis_reports_total" {
			sawReports = true
		}
	}
	assert.True(t, sawReports)
}

func TestOpenFallsBackToMockWithoutCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Provider = "alpaca"
	cfg.Data.Fallback = true
	cfg.Data.DBPath = filepath.Join(t.TempDir(), "dashboard.db")

	rt, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "mock", rt.Dashboard.ProviderName())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Provider = "bogus"

	_, err := Open(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}
