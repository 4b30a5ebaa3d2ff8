package mtf

import (
	"math"
	"time"

	"market-dashboard/internal/models"
)

// Stride keeps every stride-th bar starting with the first one. It
// approximates coarser bars from a finer series without aggregating them.
func Stride(bars models.BarSeries, stride int) models.BarSeries {
	if stride <= 1 {
		out := make(models.BarSeries, len(bars))
		copy(out, bars)
		return out
	}
	out := make(models.BarSeries, 0, len(bars)/stride+1)
	for i := 0; i < len(bars); i += stride {
		out = append(out, bars[i])
	}
	return out
}

// ResampleMonthly aggregates bars by calendar month (UTC): first open,
// highest high, lowest low, last close and summed volume. Months without
// bars are absent from the output. The aggregate is stamped with the last
// bar of its month.
func ResampleMonthly(bars models.BarSeries) models.BarSeries {
	var out models.BarSeries
	var current *models.Bar
	var currentKey int

	for _, b := range bars {
		ts := b.Timestamp.UTC()
		key := ts.Year()*12 + int(ts.Month())
		if current == nil || key != currentKey {
			if current != nil {
				out = append(out, *current)
			}
			bar := b
			bar.Timestamp = monthEnd(ts)
			current = &bar
			currentKey = key
			continue
		}
		current.High = math.Max(current.High, b.High)
		current.Low = math.Min(current.Low, b.Low)
		current.Close = b.Close
		current.Volume += b.Volume
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}

func monthEnd(ts time.Time) time.Time {
	first := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}
