package clustering

import (
	"fmt"
	"math"
	"strings"

	"shapeCluster/internal/ports"
)

// Metric names accepted by MetricByName.
const (
	MetricDTW       = "dtw"
	MetricEuclidean = "euclidean"
)

// ShapeDistance compares sequences and averages them under the same geometry.
type ShapeDistance interface {
	// Name identifies the metric in models and logs.
	Name() string
	// Distance returns the dissimilarity of a and b.
	Distance(a, b []float64) (float64, error)
	// Barycenter returns the representative sequence of members, refined from init.
	Barycenter(init []float64, members [][]float64) ([]float64, error)
}

// MetricOptions tunes metric construction.
type MetricOptions struct {
	Window               int // Sakoe-Chiba radius for DTW, negative for unconstrained
	BarycenterIterations int
}

// MetricByName builds the metric registered under name.
func MetricByName(name string, opts MetricOptions) (ShapeDistance, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricDTW:
		return NewDTW(opts.Window, opts.BarycenterIterations), nil
	case MetricEuclidean:
		return Euclidean{}, nil
	default:
		return nil, fmt.Errorf("unsupported metric %q: %w", name, ports.ErrInvalidRequest)
	}
}

// Euclidean is the lock-step L2 distance. It requires sequences of equal length.
type Euclidean struct{}

// Name returns "euclidean".
func (Euclidean) Name() string { return MetricEuclidean }

// Distance returns the L2 distance between a and b.
func (Euclidean) Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("euclidean distance needs equal lengths, got %d and %d: %w", len(a), len(b), ports.ErrInvalidRequest)
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Barycenter returns the arithmetic mean of members, or a copy of init when there are none.
func (Euclidean) Barycenter(init []float64, members [][]float64) ([]float64, error) {
	if len(members) == 0 {
		return append([]float64(nil), init...), nil
	}
	mean := make([]float64, len(members[0]))
	for _, m := range members {
		if len(m) != len(mean) {
			return nil, fmt.Errorf("euclidean barycenter needs equal lengths, got %d and %d: %w", len(mean), len(m), ports.ErrInvalidRequest)
		}
		for i, v := range m {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(members))
	}
	return mean, nil
}
