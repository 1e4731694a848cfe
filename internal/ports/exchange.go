package ports

import (
	"context"
	"time"

	"shapeCluster/internal/domain"
)

// HistorySource downloads daily closing prices from an external venue.
type HistorySource interface {
	// Ping checks connectivity to the venue.
	Ping(ctx context.Context) error

	// GetDailyCloses returns one close per day for id in [start, end], oldest first.
	// The close is dated at the opening day of its candle.
	GetDailyCloses(ctx context.Context, id domain.InstrumentID, start, end time.Time) (*domain.PriceSeries, error)
}
