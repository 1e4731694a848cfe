package analytics

import (
	"testing"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (*domain.SequenceCollection, *domain.ClusterAssignment, *domain.ClusterModel) {
	series := func(code string, values ...float64) domain.NormalizedSeries {
		return domain.NormalizedSeries{ID: domain.InstrumentID{Class: "11", Code: code}, Values: values}
	}
	collection := &domain.SequenceCollection{
		Series: []domain.NormalizedSeries{
			series("UP1", 1, 1.1, 1.2),
			series("DN1", 1, 0.9, 0.8),
			series("UP2", 1, 1.2, 1.4),
		},
		Exclusions: []domain.Exclusion{{ID: domain.InstrumentID{Class: "11", Code: "GAP11"}, Reason: domain.ExcludedMissingPrice}},
	}
	assignment := &domain.ClusterAssignment{K: 3, IDs: collection.IDs(), Labels: []int{0, 1, 0}}
	model := &domain.ClusterModel{
		K:         3,
		Centroids: [][]float64{{1, 1.15, 1.3}, {1, 0.9, 0.8}, {1, 1, 1}},
		Inertia:   0.01,
		Converged: true,
	}
	return collection, assignment, model
}

func TestSummarize(t *testing.T) {
	collection, assignment, model := fixture()

	summary, err := Summarize(collection, assignment, model)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.K)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Excluded)
	assert.Equal(t, []int{2, 1, 0}, summary.Sizes)

	up := summary.Clusters[0]
	assert.InDelta(t, 2.0/3, up.Share, 1e-12)
	assert.InDelta(t, 0.3, up.CentroidReturn, 1e-12)
	assert.Equal(t, 0.0, up.CentroidMaxDrawdown)
	assert.InDelta(t, 0.3, up.MeanFinalReturn, 1e-12)
	assert.Equal(t, "UP2", up.BestCode)
	assert.Equal(t, "UP1", up.WorstCode)
	assert.Equal(t, []string{"UP1", "UP2"}, up.Codes)

	down := summary.Clusters[1]
	assert.InDelta(t, -0.2, down.CentroidReturn, 1e-12)
	assert.InDelta(t, 0.2, down.CentroidMaxDrawdown, 1e-12)

	empty := summary.Clusters[2]
	assert.Equal(t, 0, empty.Size)
	assert.Empty(t, empty.Codes)
	assert.Empty(t, empty.BestCode)
}

func TestSummarize_RejectsInconsistentInput(t *testing.T) {
	collection, assignment, model := fixture()

	tests := []struct {
		name   string
		mutate func(a *domain.ClusterAssignment, m *domain.ClusterModel)
	}{
		{name: "label out of range", mutate: func(a *domain.ClusterAssignment, m *domain.ClusterModel) { a.Labels = []int{0, 3, 0} }},
		{name: "short labels", mutate: func(a *domain.ClusterAssignment, m *domain.ClusterModel) { a.Labels = []int{0} }},
		{name: "missing centroid", mutate: func(a *domain.ClusterAssignment, m *domain.ClusterModel) { m.Centroids = m.Centroids[:2] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := *assignment
			m := *model
			tt.mutate(&a, &m)
			_, err := Summarize(collection, &a, &m)
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
		})
	}

	_, err := Summarize(nil, assignment, model)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestOverlays(t *testing.T) {
	collection, assignment, model := fixture()

	overlays, err := Overlays(collection, assignment, model)
	require.NoError(t, err)
	require.Len(t, overlays, 3)

	assert.Equal(t, model.Centroids[0], overlays[0].Centroid)
	assert.Equal(t, []Curve{{Code: "UP1", Values: []float64{1, 1.1, 1.2}}, {Code: "UP2", Values: []float64{1, 1.2, 1.4}}}, overlays[0].Members)
	assert.Len(t, overlays[1].Members, 1)
	assert.Empty(t, overlays[2].Members)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "empty", values: nil, want: 0},
		{name: "monotonic rise", values: []float64{1, 1.1, 1.2}, want: 0},
		{name: "single dip", values: []float64{1, 1.2, 0.9, 1.3}, want: 0.25},
		{name: "deepest of two", values: []float64{1, 0.9, 1.5, 1.2, 1.6, 0.8}, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestTotalReturn(t *testing.T) {
	assert.InDelta(t, 0.019898, TotalReturn([]float64{1, 1.02, 1.0098, 1.019898}), 1e-12)
	assert.Equal(t, 0.0, TotalReturn(nil))
	assert.Equal(t, 0.0, TotalReturn([]float64{0, 1}))
}
