package indicators

import (
	"fmt"
	"math"

	"market-dashboard/internal/models"
)

// TrueRange returns the per-bar true range. The first bar has no previous
// close, so its value is undefined.
func TrueRange(bars models.BarSeries) []float64 {
	result := nanSeries(len(bars))
	for i := 1; i < len(bars); i++ {
		result[i] = trueRange(bars[i], bars[i-1].Close)
	}
	return result
}

// ATR calculates the Average True Range as a simple rolling mean of the
// true range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return KeyATR
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(bars models.BarSeries) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return RollingMean(TrueRange(bars), a.period), nil
}

// ATRPercent expresses ATR as a percentage of the close.
type ATRPercent struct {
	atr *ATR
}

// NewATRPercent creates a new ATR% indicator.
func NewATRPercent(period int) *ATRPercent {
	return &ATRPercent{atr: NewATR(period)}
}

func (a *ATRPercent) Name() string {
	return KeyATRPercent
}

func (a *ATRPercent) Period() int {
	return a.atr.Period()
}

func (a *ATRPercent) Calculate(bars models.BarSeries) ([]float64, error) {
	atr, err := a.atr.Calculate(bars)
	if err != nil {
		return nil, err
	}
	result := nanSeries(len(bars))
	for i, v := range atr {
		if math.IsNaN(v) || bars[i].Close == 0 {
			continue
		}
		result[i] = 100 * v / bars[i].Close
	}
	return result, nil
}

// BollingerBands calculates Bollinger Bands using the sample standard
// deviation of closes over the window.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("bollinger_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(bars models.BarSeries) (map[string][]float64, error) {
	if b.period <= 0 || b.stdDevMul <= 0 {
		return nil, ErrInvalidPeriod
	}

	closes := bars.Closes()
	middle := RollingMean(closes, b.period)
	sd := RollingStdDev(closes, b.period)

	n := len(closes)
	upper := nanSeries(n)
	lower := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || math.IsNaN(sd[i]) {
			continue
		}
		upper[i] = middle[i] + b.stdDevMul*sd[i]
		lower[i] = middle[i] - b.stdDevMul*sd[i]
	}

	return map[string][]float64{
		KeyUpperBand:  upper,
		KeyMiddleBand: middle,
		KeyLowerBand:  lower,
	}, nil
}
