package utils

import (
	"time"

	"market-dashboard/internal/models"
)

// NewYorkLocation is the timezone for US equity sessions.
var NewYorkLocation *time.Location

func init() {
	var err error
	NewYorkLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to UTC-5
		NewYorkLocation = time.FixedZone("EST", -5*60*60)
	}
}

// GetMarketStatus returns the US equity session at t.
func GetMarketStatus(t time.Time) models.MarketStatus {
	now := t.In(NewYorkLocation)

	// Check if weekend
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	timeMinutes := now.Hour()*60 + now.Minute()

	switch {
	case timeMinutes >= 240 && timeMinutes < 570: // 4:00 - 9:30
		return models.MarketPreMarket
	case timeMinutes >= 570 && timeMinutes < 960: // 9:30 - 16:00
		return models.MarketOpen
	case timeMinutes >= 960 && timeMinutes < 1200: // 16:00 - 20:00
		return models.MarketAfterHours
	}
	return models.MarketClosed
}
