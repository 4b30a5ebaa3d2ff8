// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"market-dashboard/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Bars
	SaveBars(ctx context.Context, symbol string, interval models.BarInterval, bars models.BarSeries) error
	GetBars(ctx context.Context, symbol string, interval models.BarInterval, from, to time.Time) (models.BarSeries, error)
	GetBarsFreshness(ctx context.Context, symbol string, interval models.BarInterval) (time.Time, error)

	// Reports
	SaveReport(ctx context.Context, record *ReportRecord) error
	RecentReports(ctx context.Context, filter ReportFilter) ([]ReportRecord, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// ReportRecord is one persisted technical analysis report.
type ReportRecord struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"ticker"`
	Period        string          `json:"period"`
	OverallSignal string          `json:"overall_signal"`
	Confluence    string          `json:"confluence"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// ReportFilter represents filters for querying reports.
type ReportFilter struct {
	Symbol         string
	Since          time.Time
	Limit          int
	IncludePayload bool
}
