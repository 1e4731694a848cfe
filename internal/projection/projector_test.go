package projection

import (
	"context"
	"testing"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func day(i int) time.Time {
	return time.Date(2024, 7, 24, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func priceTable(t *testing.T, ids ...domain.InstrumentID) *market.Table {
	t.Helper()
	b := market.NewBuilder()
	for n, id := range ids {
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Add(id, day(i), float64(10*(n+1)+i)))
		}
	}
	return b.Build()
}

func TestProjector_GroupByCluster(t *testing.T) {
	a := domain.InstrumentID{Class: "11", Code: "AAAA11"}
	b := domain.InstrumentID{Class: "11", Code: "BBBB11"}
	c := domain.InstrumentID{Class: "11", Code: "CCCC11"}
	p, err := New(priceTable(t, a, b, c), &mockLogger{})
	require.NoError(t, err)

	assignment := &domain.ClusterAssignment{
		K:      3,
		IDs:    []domain.InstrumentID{a, b, c},
		Labels: []int{1, 0, 1},
	}
	groups, err := p.GroupByCluster(context.Background(), assignment, day(2))
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, []string{"BBBB11"}, groups[0].Codes())
	assert.Equal(t, []string{"AAAA11", "CCCC11"}, groups[1].Codes())
	assert.Empty(t, groups[2].Members)

	// Raw, unnormalized prices from the start date onward.
	first := groups[1].Members[0]
	require.Len(t, first.Points, 3)
	assert.Equal(t, day(2), first.Points[0].Date)
	assert.Equal(t, []float64{12, 13, 14}, first.Prices())

	// Union of members equals the assignment identifiers, without overlap.
	seen := make(map[domain.InstrumentID]int)
	for label, g := range groups {
		assert.Equal(t, label, g.Label)
		for _, m := range g.Members {
			seen[m.ID]++
		}
	}
	assert.Equal(t, map[domain.InstrumentID]int{a: 1, b: 1, c: 1}, seen)
}

func TestProjector_MissingInstrument(t *testing.T) {
	a := domain.InstrumentID{Class: "11", Code: "AAAA11"}
	ghost := domain.InstrumentID{Class: "11", Code: "GHST11"}
	p, err := New(priceTable(t, a), &mockLogger{})
	require.NoError(t, err)

	_, err = p.GroupByCluster(context.Background(), &domain.ClusterAssignment{
		K:      2,
		IDs:    []domain.InstrumentID{a, ghost},
		Labels: []int{0, 1},
	}, day(0))
	assert.ErrorIs(t, err, ports.ErrMissingInstrument)
}

func TestProjector_LabelOutOfRange(t *testing.T) {
	a := domain.InstrumentID{Class: "11", Code: "AAAA11"}
	p, err := New(priceTable(t, a), &mockLogger{})
	require.NoError(t, err)

	_, err = p.GroupByCluster(context.Background(), &domain.ClusterAssignment{
		K:      2,
		IDs:    []domain.InstrumentID{a},
		Labels: []int{5},
	}, day(0))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestProjector_RejectsMalformedAssignment(t *testing.T) {
	a := domain.InstrumentID{Class: "11", Code: "AAAA11"}
	p, err := New(priceTable(t, a), &mockLogger{})
	require.NoError(t, err)

	tests := []struct {
		name       string
		assignment *domain.ClusterAssignment
	}{
		{name: "nil assignment", assignment: nil},
		{name: "labels and ids differ", assignment: &domain.ClusterAssignment{K: 2, IDs: []domain.InstrumentID{a}, Labels: []int{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GroupByCluster(context.Background(), tt.assignment, day(0))
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
		})
	}
}
