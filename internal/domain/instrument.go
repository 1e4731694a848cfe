package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used by price tables and requests.
const DateLayout = "2006-01-02"

// InstrumentID identifies a tradable instrument by its class and code.
type InstrumentID struct {
	Class string // Instrument class, e.g. the numeric ticker suffix "11"
	Code  string // Trading code, e.g. "TAEE11"
}

// String returns "class/code".
func (id InstrumentID) String() string {
	return id.Class + "/" + id.Code
}

// ClassFromCode derives the instrument class from the numeric suffix of a ticker.
// Codes without a numeric suffix have an empty class.
func ClassFromCode(code string) string {
	code = strings.TrimSpace(code)
	i := len(code)
	for i > 0 && code[i-1] >= '0' && code[i-1] <= '9' {
		i--
	}
	return code[i:]
}

// PricePoint is a single dated price observation.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceSeries is the raw, unnormalized price history of one instrument.
// Dates are strictly increasing.
type PriceSeries struct {
	ID     InstrumentID
	Points []PricePoint
}

// Prices returns the price values of the series in date order.
func (s *PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Len returns the number of observations.
func (s *PriceSeries) Len() int {
	return len(s.Points)
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// TruncateDay drops the clock part of t, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
