package market

import (
	"fmt"
	"math"
	"time"

	"shapeCluster/internal/ports"
)

// Snapshot pairs the raw price table with its period ratio table.
// Both are loaded once and only read afterwards, so a Snapshot is safe to share.
type Snapshot struct {
	Prices *Table
	Ratios *Table
}

// NewSnapshot validates and pairs the two tables. A nil ratio table is derived from prices.
func NewSnapshot(prices, ratios *Table) (*Snapshot, error) {
	if prices == nil {
		return nil, fmt.Errorf("price table is required: %w", ports.ErrConfigurationError)
	}
	if ratios == nil {
		ratios = DeriveRatios(prices)
	}
	return &Snapshot{Prices: prices, Ratios: ratios}, nil
}

// DateRange returns the first and last ratio-table dates that hold any ratio,
// i.e. the usable anchor dates. ok is false when the table holds no ratio at all.
func (s *Snapshot) DateRange() (time.Time, time.Time, bool) {
	dates := s.Ratios.Dates()
	first, last := -1, -1
	for col := range dates {
		if !s.Ratios.ColumnHasData(col) {
			continue
		}
		if first < 0 {
			first = col
		}
		last = col
	}
	if first < 0 {
		return time.Time{}, time.Time{}, false
	}
	return dates[first], dates[last], true
}

// DeriveRatios computes the period-over-period ratio table p[i]/p[i-1] of prices.
// The first column, and any cell whose current or previous price is missing or zero, is NaN.
func DeriveRatios(prices *Table) *Table {
	dates := prices.Dates()
	// Index maps and ids are shared with prices; neither table mutates them after Build.
	t := &Table{
		dates:    dates,
		colIndex: prices.colIndex,
		ids:      prices.ids,
		rowIndex: prices.rowIndex,
		values:   make([][]float64, len(prices.values)),
	}
	for r, row := range prices.values {
		out := make([]float64, len(row))
		for c := range row {
			out[c] = math.NaN()
			if c == 0 {
				continue
			}
			prev, cur := row[c-1], row[c]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				continue
			}
			out[c] = cur / prev
		}
		t.values[r] = out
	}
	return t
}
