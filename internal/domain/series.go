package domain

import "time"

// ExclusionReason tells why a candidate instrument was left out of a collection.
type ExclusionReason string

const (
	ExcludedMissingPrice   ExclusionReason = "missing_price"    // A raw price is absent inside the window
	ExcludedMissingRatio   ExclusionReason = "missing_ratio"    // A period ratio is absent inside the window
	ExcludedNoPriceHistory ExclusionReason = "no_price_history" // Instrument has ratios but no price row
)

// Exclusion records a candidate that failed the completeness check.
type Exclusion struct {
	ID     InstrumentID
	Reason ExclusionReason
	Date   time.Time // First date at which the gap was found (zero for no_price_history)
}

// NormalizedSeries is a return series rebased to 1.0 at its first date.
type NormalizedSeries struct {
	ID     InstrumentID
	Dates  []time.Time
	Values []float64
}

// Len returns the number of points in the series.
func (s *NormalizedSeries) Len() int {
	return len(s.Values)
}

// Final returns the last cumulative value, or 0 for an empty series.
func (s *NormalizedSeries) Final() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// SequenceCollection is the ordered set of normalized series handed to clustering,
// plus the candidates the completeness check rejected.
type SequenceCollection struct {
	Start      time.Time
	Series     []NormalizedSeries
	Exclusions []Exclusion
}

// Len returns the number of included series.
func (c *SequenceCollection) Len() int {
	return len(c.Series)
}

// IDs returns the identifiers in collection order.
func (c *SequenceCollection) IDs() []InstrumentID {
	ids := make([]InstrumentID, len(c.Series))
	for i := range c.Series {
		ids[i] = c.Series[i].ID
	}
	return ids
}

// Values returns the value sequences in collection order.
func (c *SequenceCollection) Values() [][]float64 {
	values := make([][]float64, len(c.Series))
	for i := range c.Series {
		values[i] = c.Series[i].Values
	}
	return values
}
