package clustering

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvlath/dtw"
)

const (
	defaultBarycenterIterations = 10
	barycenterTol               = 1e-9
)

// DTW is dynamic time warping distance. Its barycenter is DTW Barycenter Averaging:
// every member is aligned to the current center along its warping path and the
// points mapped onto each center index are averaged, repeatedly.
type DTW struct {
	window     int
	iterations int
}

// NewDTW creates a DTW metric. window < 0 leaves warping unconstrained.
func NewDTW(window, barycenterIterations int) *DTW {
	if barycenterIterations <= 0 {
		barycenterIterations = defaultBarycenterIterations
	}
	if window < 0 {
		window = -1
	}
	return &DTW{window: window, iterations: barycenterIterations}
}

// Name returns "dtw".
func (m *DTW) Name() string { return MetricDTW }

// Distance returns the DTW distance between a and b.
func (m *DTW) Distance(a, b []float64) (float64, error) {
	opts := dtw.DefaultOptions()
	opts.Window = m.window
	opts.SlopePenalty = 0
	opts.ReturnPath = false
	dist, _, err := dtw.DTW(a, b, &opts)
	if err != nil {
		return 0, fmt.Errorf("dtw distance: %w", err)
	}
	return dist, nil
}

// Path returns the optimal warping path; each coordinate maps a[I] to b[J].
func (m *DTW) Path(a, b []float64) ([]dtw.Coord, error) {
	opts := dtw.DefaultOptions()
	opts.Window = m.window
	opts.SlopePenalty = 0
	opts.MemoryMode = dtw.FullMatrix
	opts.ReturnPath = true
	_, path, err := dtw.DTW(a, b, &opts)
	if err != nil {
		return nil, fmt.Errorf("dtw path: %w", err)
	}
	return path, nil
}

// Barycenter refines init into the DBA average of members. The result has len(init).
func (m *DTW) Barycenter(init []float64, members [][]float64) ([]float64, error) {
	center := append([]float64(nil), init...)
	if len(members) == 0 || len(center) == 0 {
		return center, nil
	}

	sums := make([]float64, len(center))
	counts := make([]int, len(center))
	for it := 0; it < m.iterations; it++ {
		for i := range sums {
			sums[i], counts[i] = 0, 0
		}
		for _, s := range members {
			path, err := m.Path(center, s)
			if err != nil {
				return nil, err
			}
			for _, c := range path {
				sums[c.I] += s[c.J]
				counts[c.I]++
			}
		}

		shift := 0.0
		for i := range center {
			if counts[i] == 0 {
				continue
			}
			v := sums[i] / float64(counts[i])
			shift = math.Max(shift, math.Abs(v-center[i]))
			center[i] = v
		}
		if shift < barycenterTol {
			break
		}
	}
	return center, nil
}
