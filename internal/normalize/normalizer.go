// Package normalize rebases raw price histories into comparable cumulative return series.
package normalize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// Normalizer turns the price and ratio tables into rebased return sequences.
type Normalizer struct {
	prices ports.SeriesTable
	ratios ports.SeriesTable
	logger ports.Logger
}

// Config holds the dependencies of a Normalizer.
type Config struct {
	Prices ports.SeriesTable // Raw prices, used for the completeness check
	Ratios ports.SeriesTable // Period-over-period ratios, used for compounding
	Logger ports.Logger
}

// New creates a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	if cfg.Prices == nil || cfg.Ratios == nil {
		return nil, fmt.Errorf("price and ratio tables are required: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for normalizer: %w", ports.ErrConfigurationError)
	}
	return &Normalizer{prices: cfg.Prices, ratios: cfg.Ratios, logger: cfg.Logger}, nil
}

// Normalize rebases every complete instrument of the selected classes to 1.0 at the
// first ratio-table date on or after start, compounding ratio-table values forward.
//
// Instruments with any missing price or ratio inside the window are excluded and
// listed in the collection's Exclusions. An empty classes slice selects all classes.
func (n *Normalizer) Normalize(ctx context.Context, classes []string, start time.Time) (*domain.SequenceCollection, error) {
	start = domain.TruncateDay(start)
	dates := n.ratios.Dates()
	if len(dates) == 0 || start.Before(dates[0]) {
		return nil, fmt.Errorf("start %s outside ratio table range: %w", start.Format(domain.DateLayout), ports.ErrDataUnavailable)
	}
	anchor := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(start) })
	if anchor == len(dates) {
		return nil, fmt.Errorf("start %s after last ratio date %s: %w",
			start.Format(domain.DateLayout), dates[len(dates)-1].Format(domain.DateLayout), ports.ErrDataUnavailable)
	}

	priceCols := make(map[time.Time]int, len(n.prices.Dates()))
	for i, d := range n.prices.Dates() {
		priceCols[d] = i
	}
	// Only a date neither table trades on snaps forward to the next ratio date.
	if !dates[anchor].Equal(start) {
		if col, ok := priceCols[start]; ok && columnHasData(n.prices, col) {
			return nil, fmt.Errorf("no ratio data on trading date %s: %w", start.Format(domain.DateLayout), ports.ErrDataUnavailable)
		}
	}
	if !columnHasData(n.ratios, anchor) {
		return nil, fmt.Errorf("no ratio data on %s: %w", dates[anchor].Format(domain.DateLayout), ports.ErrDataUnavailable)
	}

	window := dates[anchor:]
	collection := &domain.SequenceCollection{
		Start:      window[0],
		Series:     make([]domain.NormalizedSeries, 0),
		Exclusions: make([]domain.Exclusion, 0),
	}
	for _, id := range n.ratios.Instruments(classes...) {
		series, exclusion := n.rebase(id, anchor, window, priceCols)
		if exclusion != nil {
			collection.Exclusions = append(collection.Exclusions, *exclusion)
			continue
		}
		collection.Series = append(collection.Series, *series)
	}

	n.logger.Debug(ctx, "Normalized price histories", map[string]interface{}{
		"classes":  classes,
		"start":    collection.Start.Format(domain.DateLayout),
		"window":   len(window),
		"included": len(collection.Series),
		"excluded": len(collection.Exclusions),
	})
	return collection, nil
}

// rebase builds the series of one instrument or reports why it is excluded.
func (n *Normalizer) rebase(id domain.InstrumentID, anchor int, window []time.Time, priceCols map[time.Time]int) (*domain.NormalizedSeries, *domain.Exclusion) {
	prices, ok := n.prices.Row(id)
	if !ok {
		return nil, &domain.Exclusion{ID: id, Reason: domain.ExcludedNoPriceHistory}
	}
	ratios, _ := n.ratios.Row(id)

	values := make([]float64, len(window))
	for i, date := range window {
		col, ok := priceCols[date]
		if !ok || math.IsNaN(prices[col]) {
			return nil, &domain.Exclusion{ID: id, Reason: domain.ExcludedMissingPrice, Date: date}
		}
		if i == 0 {
			values[0] = 1.0
			continue
		}
		ratio := ratios[anchor+i]
		if math.IsNaN(ratio) {
			return nil, &domain.Exclusion{ID: id, Reason: domain.ExcludedMissingRatio, Date: date}
		}
		values[i] = values[i-1] * ratio
	}

	return &domain.NormalizedSeries{
		ID:     id,
		Dates:  append([]time.Time(nil), window...),
		Values: values,
	}, nil
}

// columnHasData reports whether any instrument of table has a value at column col.
func columnHasData(table ports.SeriesTable, col int) bool {
	for _, id := range table.Instruments() {
		row, ok := table.Row(id)
		if ok && !math.IsNaN(row[col]) {
			return true
		}
	}
	return false
}
