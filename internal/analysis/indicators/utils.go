package indicators

import (
	"math"

	"github.com/shopspring/decimal"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

var (
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = apperrors.ErrInvalidPeriod
)

// nanSeries returns a series of n undefined values.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// IsDefined reports whether v holds a usable number.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return sum(values) / float64(len(values))
}

// sampleStdDev calculates the sample standard deviation (ddof=1).
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// hasUndefined reports whether any value in the window is NaN.
func hasUndefined(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// rolling applies fn over every trailing window of the given size. Windows
// that contain an undefined value produce an undefined result.
func rolling(values []float64, period int, fn func(window []float64) float64) []float64 {
	result := nanSeries(len(values))
	if period <= 0 {
		return result
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if hasUndefined(window) {
			continue
		}
		result[i] = fn(window)
	}
	return result
}

// RollingMean returns the trailing-window arithmetic mean.
func RollingMean(values []float64, period int) []float64 {
	return rolling(values, period, mean)
}

// RollingSum returns the trailing-window sum.
func RollingSum(values []float64, period int) []float64 {
	return rolling(values, period, sum)
}

// RollingStdDev returns the trailing-window sample standard deviation.
func RollingStdDev(values []float64, period int) []float64 {
	return rolling(values, period, sampleStdDev)
}

// trueRange calculates the true range for a bar given the previous close.
func trueRange(current models.Bar, prevClose float64) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - prevClose)
	lowClose := math.Abs(current.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// Round2 rounds a value to two decimal places. Undefined values pass through.
func Round2(v float64) float64 {
	if !IsDefined(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Last returns the final value of a series, or NaN when it is empty.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Previous returns the second to last value of a series, or NaN.
func Previous(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return values[len(values)-2]
}
