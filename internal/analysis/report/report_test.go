package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/analysis"
	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/analysis/mtf"
	"market-dashboard/internal/analysis/signals"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

func dailySeries(n int) models.BarSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make(models.BarSeries, n)
	for i := range bars {
		c := 100 + float64(i)*0.5
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c - 0.2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    5000,
		}
	}
	return bars
}

func TestBuildReport(t *testing.T) {
	bars := dailySeries(60)
	builder := NewBuilder(nil, zerolog.Nop())

	fetcher := mtf.FetcherFunc(func(_ context.Context, tf mtf.Timeframe) (models.BarSeries, error) {
		if tf == mtf.Timeframe1Day {
			return bars.Tail(30), nil
		}
		return nil, errors.New("not available")
	})

	rep, err := builder.Build(context.Background(), Request{Symbol: "SPY", Period: "3mo", Bars: bars, Fetcher: fetcher})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "SPY", rep.Symbol)
	assert.Len(t, rep.Indicators, 60)
	assert.Len(t, rep.TimeframeAnalysis.Trends, 5)
	assert.Equal(t, analysis.Bullish, rep.TimeframeAnalysis.Trends["1d"].Direction)
	assert.ElementsMatch(t, []string{"5m", "15m", "1h", "1mo"}, rep.TimeframeAnalysis.Degraded)

	last := bars[len(bars)-1]
	want := indicators.ComputePivots(&last)
	assert.Equal(t, want.PivotLevels, rep.TimeframeAnalysis.PivotPoints.PivotLevels)
	assert.Equal(t, want.Pivot, rep.TimeframeAnalysis.KeyLevels.StrongSupport[0])
	assert.Equal(t, 0.5, rep.Latest.Change)

	assert.True(t, strings.HasPrefix(rep.TimeframeAnalysis.Strategies.Weekly, "Bullish bias"))
	assert.NotEmpty(t, rep.TimeframeAnalysis.Strategies.Intraday)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "NaN")
	assert.Contains(t, string(data), `"sma200":null`)
	assert.Contains(t, string(data), `"overall_signal"`)
}

func TestBuildEmptySeries(t *testing.T) {
	_, err := NewBuilder(nil, zerolog.Nop()).Build(context.Background(), Request{Symbol: "XYZ"})
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestBuildWithoutFetcher(t *testing.T) {
	rep, err := NewBuilder(nil, zerolog.Nop()).Build(context.Background(), Request{Symbol: "QQQ", Bars: dailySeries(1)})
	require.NoError(t, err)

	for _, v := range rep.TimeframeAnalysis.Trends {
		assert.True(t, v.IsDegraded())
	}
	assert.Zero(t, rep.Latest.Change)
	assert.Equal(t, analysis.SignalNeutral, rep.Signals.OverallSignal)
}

func TestBuildWithOptions(t *testing.T) {
	builder := NewBuilder(nil, zerolog.Nop(),
		WithEngine(indicators.NewDefaultEngine(2)),
		WithThresholds(signals.Thresholds{RSIOversold: 0, RSIOverbought: 101, ADXTrend: 100}),
	)

	rep, err := builder.Build(context.Background(), Request{Symbol: "SPY", Bars: dailySeries(60)})
	require.NoError(t, err)
	// A steady climb would read overbought at the default levels.
	assert.Equal(t, analysis.SignalNeutral, rep.Signals.RSI)
	assert.Equal(t, analysis.SignalWeakTrend, rep.Signals.ADX)
	assert.Len(t, rep.Indicators, 60)
}

func TestStrategiesFromZeroPivots(t *testing.T) {
	assert.Equal(t, Strategies{}, BuildStrategies(indicators.PivotSet{}, nil))
}

func TestStrategiesFollowConfluence(t *testing.T) {
	bar := models.Bar{High: 110, Low: 90, Close: 100}
	p := indicators.ComputePivots(&bar)

	res := &mtf.Result{
		Timeframes: map[mtf.Timeframe]*mtf.TimeframeResult{
			mtf.Timeframe1Day: {Timeframe: mtf.Timeframe1Day, Status: mtf.StatusOK,
				Verdict: analysis.TrendVerdict{Direction: analysis.Bearish, Strength: analysis.StrengthStrong, Volume: analysis.VolumeSteady}},
		},
		Confluence:   mtf.ConfluenceStrong,
		OverallTrend: analysis.Bearish,
	}

	s := BuildStrategies(p, res)
	assert.True(t, strings.HasPrefix(s.Weekly, "Bearish bias"))
	assert.Contains(t, s.Intraday, "Bearish")
	assert.Contains(t, s.Monthly, "$120.00")
}
