// Package market holds the immutable price and ratio tables the pipeline reads from.
package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// Table is a wide, read-only table: one row per instrument, one column per date.
// Missing cells hold NaN. Row and column indexes are built once by the Builder.
type Table struct {
	dates    []time.Time
	colIndex map[time.Time]int
	ids      []domain.InstrumentID
	rowIndex map[domain.InstrumentID]int
	values   [][]float64
}

var _ ports.PriceStore = (*Table)(nil)

// Dates returns the sorted column dates. Callers must not modify the slice.
func (t *Table) Dates() []time.Time {
	return t.dates
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.ids)
}

// Instruments returns row identifiers whose class is in classes, in row order.
func (t *Table) Instruments(classes ...string) []domain.InstrumentID {
	wanted := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		wanted[c] = struct{}{}
	}
	out := make([]domain.InstrumentID, 0, len(t.ids))
	for _, id := range t.ids {
		if len(wanted) > 0 {
			if _, ok := wanted[id.Class]; !ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// Classes returns the distinct instrument classes in first-seen row order.
func (t *Table) Classes() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, id := range t.ids {
		if _, ok := seen[id.Class]; ok {
			continue
		}
		seen[id.Class] = struct{}{}
		out = append(out, id.Class)
	}
	return out
}

// Row returns the values of id aligned with Dates(). Callers must not modify the slice.
func (t *Table) Row(id domain.InstrumentID) ([]float64, bool) {
	i, ok := t.rowIndex[id]
	if !ok {
		return nil, false
	}
	return t.values[i], true
}

// Lookup returns the single value for id at date.
func (t *Table) Lookup(id domain.InstrumentID, date time.Time) (float64, bool) {
	row, ok := t.Row(id)
	if !ok {
		return 0, false
	}
	col, ok := t.colIndex[domain.TruncateDay(date)]
	if !ok || math.IsNaN(row[col]) {
		return 0, false
	}
	return row[col], true
}

// ColumnAtOrAfter returns the index of the first column dated on or after date.
func (t *Table) ColumnAtOrAfter(date time.Time) (int, bool) {
	date = domain.TruncateDay(date)
	i := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(date) })
	return i, i < len(t.dates)
}

// History returns the observed values of id on or after from, skipping missing cells.
func (t *Table) History(id domain.InstrumentID, from time.Time) (*domain.PriceSeries, bool) {
	row, ok := t.Row(id)
	if !ok {
		return nil, false
	}
	series := &domain.PriceSeries{ID: id, Points: make([]domain.PricePoint, 0)}
	start, ok := t.ColumnAtOrAfter(from)
	if !ok {
		return series, true
	}
	for col := start; col < len(t.dates); col++ {
		if math.IsNaN(row[col]) {
			continue
		}
		series.Points = append(series.Points, domain.PricePoint{Date: t.dates[col], Price: row[col]})
	}
	return series, true
}

// ColumnHasData reports whether any row holds a value at column col.
func (t *Table) ColumnHasData(col int) bool {
	for _, row := range t.values {
		if !math.IsNaN(row[col]) {
			return true
		}
	}
	return false
}

// Series returns every row as a PriceSeries of its observed cells, in row order.
func (t *Table) Series() []*domain.PriceSeries {
	out := make([]*domain.PriceSeries, 0, len(t.ids))
	for _, id := range t.ids {
		s, _ := t.History(id, time.Time{})
		out = append(out, s)
	}
	return out
}

// Builder accumulates observations and produces an indexed Table.
// Rows keep the order in which instruments are first added.
type Builder struct {
	ids   []domain.InstrumentID
	seen  map[domain.InstrumentID]int
	cells []map[time.Time]float64
	dates map[time.Time]struct{}
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[domain.InstrumentID]int), dates: make(map[time.Time]struct{})}
}

// AddDate registers a column for date even if no instrument has a value on it.
func (b *Builder) AddDate(date time.Time) {
	b.dates[domain.TruncateDay(date)] = struct{}{}
}

// Add records a value for id at date. A second value for the same cell is rejected.
func (b *Builder) Add(id domain.InstrumentID, date time.Time, value float64) error {
	date = domain.TruncateDay(date)
	i := b.row(id)
	if _, dup := b.cells[i][date]; dup {
		return fmt.Errorf("%s on %s: %w", id, date.Format(domain.DateLayout), ports.ErrDuplicateEntry)
	}
	b.cells[i][date] = value
	b.dates[date] = struct{}{}
	return nil
}

// AddSeries records every point of s.
// A series without points still gets an all-missing row.
func (b *Builder) AddSeries(s *domain.PriceSeries) error {
	b.row(s.ID)
	for _, p := range s.Points {
		if err := b.Add(s.ID, p.Date, p.Price); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) row(id domain.InstrumentID) int {
	if i, ok := b.seen[id]; ok {
		return i
	}
	i := len(b.ids)
	b.seen[id] = i
	b.ids = append(b.ids, id)
	b.cells = append(b.cells, make(map[time.Time]float64))
	return i
}

// Build freezes the accumulated cells into a Table.
func (b *Builder) Build() *Table {
	dates := make([]time.Time, 0, len(b.dates))
	for d := range b.dates {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	colIndex := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		colIndex[d] = i
	}

	t := &Table{
		dates:    dates,
		colIndex: colIndex,
		ids:      append([]domain.InstrumentID(nil), b.ids...),
		rowIndex: make(map[domain.InstrumentID]int, len(b.ids)),
		values:   make([][]float64, len(b.ids)),
	}
	for i, id := range b.ids {
		t.rowIndex[id] = i
		row := make([]float64, len(dates))
		for c := range row {
			row[c] = math.NaN()
		}
		for d, v := range b.cells[i] {
			row[colIndex[d]] = v
		}
		t.values[i] = row
	}
	return t
}

// NewTable builds a Table from series in the given order.
func NewTable(series []*domain.PriceSeries) (*Table, error) {
	b := NewBuilder()
	for _, s := range series {
		if err := b.AddSeries(s); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
