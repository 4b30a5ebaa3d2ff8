package mtf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/analysis"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

func risingBars(n int, step time.Duration, start time.Time) models.BarSeries {
	bars := make(models.BarSeries, n)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func dailyBars(from time.Time, days int, closeFn func(i int) float64) models.BarSeries {
	bars := make(models.BarSeries, days)
	for i := 0; i < days; i++ {
		c := closeFn(i)
		bars[i] = models.Bar{
			Timestamp: from.AddDate(0, 0, i),
			Open:      c - 0.5,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

type recordingObserver struct {
	mu   sync.Mutex
	seen map[string]string
}

func (o *recordingObserver) ObserveTimeframe(tf, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = make(map[string]string)
	}
	o.seen[tf] = status
}

func TestAggregateAllTimeframes(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	minutes := risingBars(390, time.Minute, start)
	hours := risingBars(40, time.Hour, start)
	days := risingBars(30, 24*time.Hour, start)
	year := dailyBars(start, 365, func(i int) float64 { return 100 + float64(i)/10 })

	fetcher := FetcherFunc(func(_ context.Context, tf Timeframe) (models.BarSeries, error) {
		switch tf {
		case Timeframe5Min, Timeframe15Min:
			return minutes, nil
		case Timeframe1Hour:
			return hours, nil
		case Timeframe1Day:
			return days, nil
		default:
			return year, nil
		}
	})

	obs := &recordingObserver{}
	result := NewAggregator(WithObserver(obs)).Aggregate(context.Background(), fetcher)

	require.Len(t, result.Timeframes, 5)
	for _, tf := range AllTimeframes() {
		r := result.Get(tf)
		require.NotNil(t, r, tf)
		assert.Equal(t, StatusOK, r.Status, tf)
		assert.Equal(t, analysis.Bullish, r.Verdict.Direction, tf)
		assert.Equal(t, string(StatusOK), obs.seen[string(tf)])
	}

	assert.Equal(t, 78, result.Get(Timeframe5Min).Points)
	assert.Equal(t, 26, result.Get(Timeframe15Min).Points)
	assert.Equal(t, 12, result.Get(Timeframe1Month).Points)
	assert.Equal(t, ConfluenceStrong, result.Confluence)
	assert.Equal(t, analysis.Bullish, result.OverallTrend)
	assert.Equal(t, 5, result.BullishCount)

	trends := result.Trends()
	assert.Contains(t, trends, "1mo")
	assert.Contains(t, result.FormatResult("SPY"), "Confluence")
}

func TestAggregateFaultIsolation(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	days := risingBars(30, 24*time.Hour, start)
	boom := errors.New("upstream down")

	fetcher := FetcherFunc(func(_ context.Context, tf Timeframe) (models.BarSeries, error) {
		switch tf {
		case Timeframe5Min:
			return nil, boom
		case Timeframe15Min:
			panic("provider bug")
		case Timeframe1Hour:
			return risingBars(4, time.Hour, start), nil
		case Timeframe1Day:
			return days, nil
		default:
			return days[:20], nil
		}
	})

	result := NewAggregator().Aggregate(context.Background(), fetcher)
	require.Len(t, result.Timeframes, 5)

	fiveMin := result.Get(Timeframe5Min)
	assert.True(t, fiveMin.Degraded())
	assert.ErrorIs(t, fiveMin.Err, boom)
	assert.True(t, fiveMin.Verdict.IsDegraded())

	assert.True(t, result.Get(Timeframe15Min).Degraded())
	assert.Contains(t, result.Get(Timeframe15Min).Reason, "panic")

	hour := result.Get(Timeframe1Hour)
	assert.True(t, hour.Degraded())
	assert.ErrorIs(t, hour.Err, apperrors.ErrInsufficientData)

	month := result.Get(Timeframe1Month)
	assert.True(t, month.Degraded())
	assert.ErrorIs(t, month.Err, apperrors.ErrInsufficientData)

	day := result.Get(Timeframe1Day)
	assert.False(t, day.Degraded())
	assert.Equal(t, analysis.Bullish, day.Verdict.Direction)

	assert.Equal(t, 4, result.DegradedCount)
	assert.Equal(t, ConfluenceNone, result.Confluence)
}

func TestFifteenMinuteNeedsEnoughSamples(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	minutes := risingBars(60, time.Minute, start)

	result := NewAggregator(WithTimeframes(Timeframe5Min, Timeframe15Min)).
		AggregateSeries(context.Background(), map[Timeframe]models.BarSeries{
			Timeframe5Min:  minutes,
			Timeframe15Min: minutes,
		})

	assert.False(t, result.Get(Timeframe5Min).Degraded())
	// 60 minutes sampled every 15 gives 4 points.
	fifteen := result.Get(Timeframe15Min)
	assert.True(t, fifteen.Degraded())
	assert.Equal(t, 4, fifteen.Points)
}

func TestMonthlyNeedsTwoAggregates(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	oneMonth := dailyBars(start, 31, func(i int) float64 { return 100 })

	result := NewAggregator(WithTimeframes(Timeframe1Month)).
		AggregateSeries(context.Background(), map[Timeframe]models.BarSeries{Timeframe1Month: oneMonth})

	r := result.Get(Timeframe1Month)
	assert.True(t, r.Degraded())
	assert.Equal(t, 1, r.Points)
}

func TestMonthlyComparesAdjacentMonths(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := dailyBars(start, 60, func(i int) float64 {
		if i < 31 {
			return 100
		}
		return 90
	})
	for i := 31; i < 60; i++ {
		bars[i].Volume = 300
	}

	result := NewAggregator(WithTimeframes(Timeframe1Month)).
		AggregateSeries(context.Background(), map[Timeframe]models.BarSeries{Timeframe1Month: bars})

	r := result.Get(Timeframe1Month)
	require.False(t, r.Degraded())
	assert.Equal(t, analysis.Bearish, r.Verdict.Direction)
	assert.Equal(t, analysis.StrengthStrong, r.Verdict.Strength)
	assert.Equal(t, analysis.VolumeIncreasing, r.Verdict.Volume)
}

func TestAggregateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := FetcherFunc(func(ctx context.Context, _ Timeframe) (models.BarSeries, error) {
		return nil, ctx.Err()
	})
	result := NewAggregator().Aggregate(ctx, fetcher)
	for _, tf := range AllTimeframes() {
		assert.True(t, result.Get(tf).Degraded())
	}
	assert.Equal(t, analysis.Neutral, result.OverallTrend)
}

func TestStride(t *testing.T) {
	bars := risingBars(12, time.Minute, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	sampled := Stride(bars, 5)
	require.Len(t, sampled, 3)
	assert.Equal(t, bars[0], sampled[0])
	assert.Equal(t, bars[5], sampled[1])
	assert.Equal(t, bars[10], sampled[2])

	assert.Len(t, Stride(bars, 1), 12)
}

func TestResampleMonthly(t *testing.T) {
	jan := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	bars := models.BarSeries{
		{Timestamp: jan, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5},
		{Timestamp: jan.AddDate(0, 0, 1), Open: 11, High: 15, Low: 10, Close: 14, Volume: 7},
		{Timestamp: jan.AddDate(0, 0, 2), Open: 14, High: 14, Low: 8, Close: 9, Volume: 3},
		{Timestamp: jan.AddDate(0, 0, 3), Open: 9, High: 10, Low: 7, Close: 8, Volume: 2},
	}

	months := ResampleMonthly(bars)
	require.Len(t, months, 2)

	assert.Equal(t, models.Bar{
		Timestamp: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Open:      10, High: 15, Low: 9, Close: 14, Volume: 12,
	}, months[0])
	assert.Equal(t, models.Bar{
		Timestamp: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Open:      14, High: 14, Low: 7, Close: 8, Volume: 5,
	}, months[1])

	assert.Empty(t, ResampleMonthly(nil))
}
