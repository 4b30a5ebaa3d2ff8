package indicators

import (
	"fmt"
	"math"

	"market-dashboard/internal/models"
)

// SMA calculates Simple Moving Average over close prices.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("sma%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(bars models.BarSeries) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateSMA(bars.Closes(), s.period), nil
}

// CalculateSMA returns the trailing mean of values. Indices below period-1
// are undefined.
func CalculateSMA(values []float64, period int) []float64 {
	return RollingMean(values, period)
}

// EMA calculates Exponential Moving Average over close prices.
type EMA struct {
	span int
}

// NewEMA creates a new EMA indicator.
func NewEMA(span int) *EMA {
	return &EMA{span: span}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("ema%d", e.span)
}

func (e *EMA) Period() int {
	return e.span
}

func (e *EMA) Calculate(bars models.BarSeries) ([]float64, error) {
	if e.span <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateEMA(bars.Closes(), e.span), nil
}

// CalculateEMA calculates a non-adjusted EMA with alpha 2/(span+1). The
// average is seeded with the first defined value, so for a fully defined
// input EMA[0] == values[0].
func CalculateEMA(values []float64, span int) []float64 {
	result := nanSeries(len(values))
	if span <= 0 {
		return result
	}

	alpha := 2.0 / float64(span+1)
	seeded := false
	prev := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			if seeded {
				result[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		result[i] = prev
	}

	return result
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator, usually (12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("macd_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slowPeriod
}

func (m *MACD) Calculate(bars models.BarSeries) (map[string][]float64, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}

	closes := bars.Closes()
	fastEMA := CalculateEMA(closes, m.fastPeriod)
	slowEMA := CalculateEMA(closes, m.slowPeriod)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := CalculateEMA(macdLine, m.signalPeriod)

	histogram := make([]float64, len(closes))
	for i := range closes {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return map[string][]float64{
		KeyMACD:      macdLine,
		KeySignal:    signalLine,
		KeyHistogram: histogram,
	}, nil
}

// ADX calculates Average Directional Index with +DI and -DI. Directional
// movement and true range are summed over the trailing window and DX is
// averaged with a simple rolling mean.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("adx_%d", a.period)
}

// Period returns the number of bars before ADX is first defined.
func (a *ADX) Period() int {
	return a.period * 2
}

func (a *ADX) Calculate(bars models.BarSeries) (map[string][]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}

	n := len(bars)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	tr := TrueRange(bars)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		plusDM[i] = 0
		minusDM[i] = 0
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	trSum := RollingSum(tr, a.period)
	plusSum := RollingSum(plusDM, a.period)
	minusSum := RollingSum(minusDM, a.period)

	plusDI := nanSeries(n)
	minusDI := nanSeries(n)
	dx := nanSeries(n)

	for i := 0; i < n; i++ {
		if math.IsNaN(trSum[i]) {
			continue
		}
		if trSum[i] != 0 {
			plusDI[i] = 100 * plusSum[i] / trSum[i]
			minusDI[i] = 100 * minusSum[i] / trSum[i]
		} else {
			plusDI[i] = 0
			minusDI[i] = 0
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
		} else {
			dx[i] = 0
		}
	}

	return map[string][]float64{
		KeyADX:     RollingMean(dx, a.period),
		KeyPlusDI:  plusDI,
		KeyMinusDI: minusDI,
	}, nil
}
