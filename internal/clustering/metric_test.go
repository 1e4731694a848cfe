package clustering

import (
	"math"
	"testing"

	"shapeCluster/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor_PadsWithNaN(t *testing.T) {
	tensor := NewTensor([][]float64{
		{1, 2, 3},
		{1, 2},
		{1, 2, 3, 4, math.NaN()},
	})

	assert.Equal(t, 3, tensor.Len())
	assert.Equal(t, 4, tensor.Width())
	assert.Equal(t, []float64{1, 2}, tensor.Row(1))
	assert.Equal(t, 4, tensor.SeqLen(2))

	padded := tensor.Padded(1)
	require.Len(t, padded, 4)
	assert.True(t, math.IsNaN(padded[2]))
	assert.True(t, math.IsNaN(padded[3]))
}

func TestDTW_DistanceTolerantToTimeShift(t *testing.T) {
	m := NewDTW(-1, 0)
	a := []float64{0, 0, 1, 2, 1, 0, 0}
	shifted := []float64{0, 1, 2, 1, 0, 0, 0}
	flat := []float64{0, 0, 0, 0, 0, 0, 0}

	dShift, err := m.Distance(a, shifted)
	require.NoError(t, err)
	dFlat, err := m.Distance(a, flat)
	require.NoError(t, err)

	e := Euclidean{}
	eShift, err := e.Distance(a, shifted)
	require.NoError(t, err)

	assert.InDelta(t, 0, dShift, 1e-9)
	assert.Greater(t, dFlat, dShift)
	assert.Greater(t, eShift, dShift)
}

func TestDTW_BarycenterOfIdenticalMembers(t *testing.T) {
	m := NewDTW(-1, 5)
	s := []float64{1, 1.02, 1.0098, 1.019898}

	center, err := m.Barycenter([]float64{1, 1, 1, 1}, [][]float64{s, s, s})
	require.NoError(t, err)
	assert.InDeltaSlice(t, s, center, 1e-12)
}

func TestDTW_BarycenterWithoutMembersKeepsInit(t *testing.T) {
	m := NewDTW(-1, 5)
	init := []float64{1, 2, 3}

	center, err := m.Barycenter(init, nil)
	require.NoError(t, err)
	assert.Equal(t, init, center)

	center[0] = 99
	assert.Equal(t, 1.0, init[0], "barycenter must not alias init")
}

func TestEuclidean(t *testing.T) {
	e := Euclidean{}

	d, err := e.Distance([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-12)

	_, err = e.Distance([]float64{0}, []float64{1, 2})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	mean, err := e.Barycenter(nil, [][]float64{{1, 2}, {3, 6}})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, mean)
}

func TestMetricByName(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{name: "", wantName: MetricDTW},
		{name: "DTW", wantName: MetricDTW},
		{name: "euclidean", wantName: MetricEuclidean},
		{name: "softdtw", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MetricByName(tt.name, MetricOptions{Window: -1})
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}
