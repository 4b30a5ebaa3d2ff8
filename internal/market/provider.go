package market

import (
	"context"

	"market-dashboard/internal/models"
)

// Provider fetches historical bars.
type Provider interface {
	Name() string
	GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error)
}
