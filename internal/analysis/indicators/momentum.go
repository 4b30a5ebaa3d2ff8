package indicators

import (
	"math"

	"market-dashboard/internal/models"
)

// NeutralRSI is reported when a window saw neither gains nor losses.
const NeutralRSI = 50.0

// RSI calculates the Relative Strength Index using simple rolling means of
// gains and losses.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return KeyRSI
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(bars models.BarSeries) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateRSI(bars.Closes(), r.period), nil
}

// CalculateRSI computes RSI over raw values. The first defined index is
// period, the first point with a full window of price changes.
func CalculateRSI(values []float64, period int) []float64 {
	n := len(values)
	gains := nanSeries(n)
	losses := nanSeries(n)

	for i := 1; i < n; i++ {
		change := values[i] - values[i-1]
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	result := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		result[i] = rsiFromAverages(avgGain[i], avgLoss[i])
	}
	return result
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
