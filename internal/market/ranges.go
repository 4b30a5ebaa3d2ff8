package market

import (
	"fmt"
	"time"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Periods accepted by the dashboard endpoints.
var Periods = []string{"1d", "5d", "1mo", "3mo", "6mo", "ytd", "1y", "5y"}

// Range is a resolved fetch window.
type Range struct {
	From     time.Time
	To       time.Time
	Interval models.BarInterval
}

type rangeRule struct {
	days     int
	interval models.BarInterval
}

// Indicator reports need enough history for the slow averages, so every
// period maps to the plain lookback.
var indicatorRules = map[string]rangeRule{
	"1d":  {1, models.IntervalMinute},
	"5d":  {5, models.IntervalHour},
	"1mo": {30, models.IntervalDay},
	"3mo": {90, models.IntervalDay},
	"6mo": {180, models.IntervalDay},
	"1y":  {365, models.IntervalDay},
	"5y":  {365 * 5, models.IntervalDay},
}

// Chart ranges pad each lookback so weekends and holidays still leave a
// full window after FilterToPeriod.
var chartRules = map[string]rangeRule{
	"1d":  {5, models.IntervalHour},
	"5d":  {8, models.IntervalHour},
	"1mo": {33, models.IntervalDay},
	"3mo": {95, models.IntervalDay},
	"6mo": {185, models.IntervalDay},
	"1y":  {370, models.IntervalDay},
	"5y":  {365*5 + 10, models.IntervalDay},
}

var summaryRules = map[string]rangeRule{
	"1d":  {1, models.IntervalHour},
	"5d":  {5, models.IntervalHour},
	"1mo": {30, models.IntervalDay},
	"3mo": {90, models.IntervalDay},
	"6mo": {180, models.IntervalDay},
	"1y":  {365, models.IntervalDay},
}

// ValidatePeriod rejects unknown period names. The empty period is valid
// and selects each endpoint's default.
func ValidatePeriod(period string) error {
	if period == "" {
		return nil
	}
	for _, p := range Periods {
		if p == period {
			return nil
		}
	}
	return apperrors.NewValidationError("period", period, fmt.Sprintf("must be one of %v", Periods))
}

// DateRange resolves a period for indicator reports. Unknown periods get
// 90 days of daily bars.
func DateRange(period string, now time.Time) Range {
	return resolve(indicatorRules, period, now, rangeRule{90, models.IntervalDay}, 0)
}

// ChartRange resolves a period for the price chart. Unknown periods get 95
// days of daily bars. Year to date covers at least five days.
func ChartRange(period string, now time.Time) Range {
	return resolve(chartRules, period, now, rangeRule{95, models.IntervalDay}, 5)
}

// SummaryRange resolves a period for the market summary. Unknown periods
// get one day of hourly bars.
func SummaryRange(period string, now time.Time) Range {
	return resolve(summaryRules, period, now, rangeRule{1, models.IntervalHour}, 0)
}

func resolve(rules map[string]rangeRule, period string, now time.Time, fallback rangeRule, ytdMinDays int) Range {
	if period == "ytd" {
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		if ytdMinDays > 0 && now.Sub(from) < time.Duration(ytdMinDays)*24*time.Hour {
			from = now.AddDate(0, 0, -ytdMinDays)
		}
		return Range{From: from, To: now, Interval: models.IntervalDay}
	}

	rule, ok := rules[period]
	if !ok {
		rule = fallback
	}
	return Range{From: now.AddDate(0, 0, -rule.days), To: now, Interval: rule.interval}
}

var filterDays = map[string]int{
	"5d":  5,
	"1mo": 30,
	"3mo": 90,
	"6mo": 180,
	"1y":  365,
	"5y":  365 * 5,
}

// FilterToPeriod trims padded chart bars back to the period. "1d" keeps the
// 24 hours before the newest bar; other periods cut relative to now. When
// the cut leaves nothing, the last ten bars are kept. Unknown periods are
// returned whole.
func FilterToPeriod(bars models.BarSeries, period string, now time.Time) models.BarSeries {
	if len(bars) < 2 {
		return bars
	}

	var cutoff time.Time
	switch period {
	case "1d":
		last, _ := bars.Last()
		cutoff = last.Timestamp.Add(-24 * time.Hour)
	case "ytd":
		cutoff = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		days, ok := filterDays[period]
		if !ok {
			return bars
		}
		cutoff = now.AddDate(0, 0, -days)
	}

	out := make(models.BarSeries, 0, len(bars))
	for _, b := range bars {
		if !b.Timestamp.Before(cutoff) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return bars.Tail(10)
	}
	return out
}
