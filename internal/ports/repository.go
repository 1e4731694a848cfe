package ports

import (
	"context"
	"time"

	"shapeCluster/internal/domain"
)

// SeriesTable is a read-only, date-indexed table with one row per instrument.
// Missing observations are NaN.
type SeriesTable interface {
	// Dates returns the sorted column dates.
	Dates() []time.Time
	// Instruments returns the row identifiers whose class is in classes, in row order.
	// No classes selects every row.
	Instruments(classes ...string) []domain.InstrumentID
	// Row returns the values of id aligned with Dates().
	Row(id domain.InstrumentID) ([]float64, bool)
}

// PriceStore is the raw price table with history lookups.
type PriceStore interface {
	SeriesTable
	// History returns the observed prices of id on or after from.
	History(id domain.InstrumentID, from time.Time) (*domain.PriceSeries, bool)
}

// SnapshotRepository persists and reloads the price and ratio tables.
type SnapshotRepository interface {
	// SavePrices upserts raw price observations.
	SavePrices(ctx context.Context, series []*domain.PriceSeries) error
	// SaveRatios upserts period ratio observations.
	SaveRatios(ctx context.Context, series []*domain.PriceSeries) error
	// LoadPrices returns every stored price series ordered by insertion.
	LoadPrices(ctx context.Context) ([]*domain.PriceSeries, error)
	// LoadRatios returns every stored ratio series ordered by insertion.
	LoadRatios(ctx context.Context) ([]*domain.PriceSeries, error)
}
