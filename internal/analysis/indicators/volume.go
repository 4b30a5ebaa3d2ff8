package indicators

import (
	"market-dashboard/internal/models"
)

// OBV calculates On-Balance Volume, starting from zero at the first bar.
type OBV struct{}

// NewOBV creates a new OBV indicator.
func NewOBV() *OBV {
	return &OBV{}
}

func (o *OBV) Name() string {
	return KeyOBV
}

func (o *OBV) Period() int {
	return 1
}

func (o *OBV) Calculate(bars models.BarSeries) ([]float64, error) {
	n := len(bars)
	result := make([]float64, n)
	if n == 0 {
		return result, nil
	}

	for i := 1; i < n; i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			result[i] = result[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			result[i] = result[i-1] - bars[i].Volume
		default:
			result[i] = result[i-1]
		}
	}

	return result, nil
}
