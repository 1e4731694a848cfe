package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/ports"
)

// Wide table layout: header "class,code,<YYYY-MM-DD>...", one row per instrument,
// empty cell (or NaN) for a missing observation. The names of the first two header
// columns are not checked, so pandas exports with unnamed index columns load as is.
const idColumns = 2

// ReadTableCSV loads a wide price or ratio table from filename.
func ReadTableCSV(filename string) (*market.Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	table, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return table, nil
}

// ReadTable parses a wide table from r.
func ReadTable(r io.Reader) (*market.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table: %w", ports.ErrTableFormat)
		}
		return nil, fmt.Errorf("header: %w: %w", ports.ErrTableFormat, err)
	}
	if len(header) < idColumns {
		return nil, fmt.Errorf("header needs class and code columns: %w", ports.ErrTableFormat)
	}
	dates := make([]time.Time, 0, len(header)-idColumns)
	for _, h := range header[idColumns:] {
		d, err := domain.ParseDate(h)
		if err != nil {
			return nil, fmt.Errorf("header date %q: %w: %w", h, ports.ErrTableFormat, err)
		}
		dates = append(dates, d)
	}

	b := market.NewBuilder()
	for _, d := range dates {
		b.AddDate(d)
	}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", line, ports.ErrTableFormat, err)
		}
		if len(record) < idColumns {
			return nil, fmt.Errorf("line %d: missing identifier columns: %w", line, ports.ErrTableFormat)
		}

		code := strings.TrimSpace(record[1])
		class := strings.TrimSpace(record[0])
		if class == "" {
			class = domain.ClassFromCode(code)
		}
		if code == "" {
			return nil, fmt.Errorf("line %d: empty instrument code: %w", line, ports.ErrTableFormat)
		}
		id := domain.InstrumentID{Class: class, Code: code}

		series := &domain.PriceSeries{ID: id}
		for i, cell := range record[idColumns:] {
			if i >= len(dates) {
				return nil, fmt.Errorf("line %d: more cells than header dates: %w", line, ports.ErrTableFormat)
			}
			value, ok, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w: %w", line, header[i+idColumns], ports.ErrTableFormat, err)
			}
			if ok {
				series.Points = append(series.Points, domain.PricePoint{Date: dates[i], Price: value})
			}
		}
		if err := b.AddSeries(series); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return b.Build(), nil
}

// WriteTableCSV writes table in the wide layout.
func WriteTableCSV(table *market.Table, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteTable(table, file); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

// WriteTable encodes table in the wide layout to w.
func WriteTable(table *market.Table, w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"class", "code"}
	for _, d := range table.Dates() {
		header = append(header, d.Format(domain.DateLayout))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, id := range table.Instruments() {
		row, _ := table.Row(id)
		record := make([]string, 0, len(row)+idColumns)
		record = append(record, id.Class, id.Code)
		for _, v := range row {
			if math.IsNaN(v) {
				record = append(record, "")
				continue
			}
			record = append(record, decimal.NewFromFloat(v).String())
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSeriesCSV writes series as a wide table, one row per series.
func WriteSeriesCSV(series []*domain.PriceSeries, filename string) error {
	table, err := market.NewTable(series)
	if err != nil {
		return err
	}
	return WriteTableCSV(table, filename)
}

// parseCell reads one decimal cell. ok is false for a missing observation.
func parseCell(cell string) (float64, bool, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return 0, false, err
	}
	return d.InexactFloat64(), true, nil
}
