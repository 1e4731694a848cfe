package sqlite

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shapeCluster/internal/domain"
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

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "shape-cluster-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func day(i int) time.Time {
	return time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func series(class, code string, values ...float64) *domain.PriceSeries {
	s := &domain.PriceSeries{ID: domain.InstrumentID{Class: class, Code: code}}
	for i, v := range values {
		s.Points = append(s.Points, domain.PricePoint{Date: day(i), Price: v})
	}
	return s
}

func TestRepository_SaveAndLoadPrices(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	input := []*domain.PriceSeries{
		series("11", "TAEE11", 34.1, 34.5, 34.2),
		series("4", "PETR4", 38, 37.5),
		series("11", "KLBN11", 4.2, 4.3, 4.25),
	}
	require.NoError(t, repo.SavePrices(ctx, input))

	loaded, err := repo.LoadPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, input, loaded)

	ratios, err := repo.LoadRatios(ctx)
	require.NoError(t, err)
	assert.Empty(t, ratios)
}

func TestRepository_SaveUpsertsExistingCells(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SavePrices(ctx, []*domain.PriceSeries{series("11", "TAEE11", 34.1, 34.5)}))
	require.NoError(t, repo.SavePrices(ctx, []*domain.PriceSeries{series("11", "TAEE11", 35, 34.5, 34.9)}))

	loaded, err := repo.LoadPrices(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, series("11", "TAEE11", 35, 34.5, 34.9), loaded[0])
}

func TestRepository_LoadSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		prices      []*domain.PriceSeries
		ratios      []*domain.PriceSeries
		wantErr     error
		wantRatioAt float64
		wantFrom    time.Time
	}{
		{
			name:    "empty database",
			wantErr: ports.ErrNotFound,
		},
		{
			name:        "stored ratios",
			prices:      []*domain.PriceSeries{series("11", "TAEE11", 10, 11)},
			ratios:      []*domain.PriceSeries{series("11", "TAEE11", 1, 1.2)},
			wantRatioAt: 1.2,
			wantFrom:    day(0),
		},
		{
			name:        "derived ratios",
			prices:      []*domain.PriceSeries{series("11", "TAEE11", 10, 11)},
			wantRatioAt: 1.1,
			wantFrom:    day(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, cleanup := setupTestDB(t)
			defer cleanup()
			ctx := context.Background()

			if tt.prices != nil {
				require.NoError(t, repo.SavePrices(ctx, tt.prices))
			}
			if tt.ratios != nil {
				require.NoError(t, repo.SaveRatios(ctx, tt.ratios))
			}

			snapshot, err := repo.LoadSnapshot(ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			id := domain.InstrumentID{Class: "11", Code: "TAEE11"}
			row, ok := snapshot.Ratios.Row(id)
			require.True(t, ok)
			require.Len(t, row, 2)
			assert.InDelta(t, tt.wantRatioAt, row[1], 1e-12)

			from, to, ok := snapshot.DateRange()
			require.True(t, ok)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, day(1), to)
		})
	}
}

func TestRepository_PricesAndRatiosShareInstrumentOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveRatios(ctx, []*domain.PriceSeries{series("4", "PETR4", 1, 0.98)}))
	require.NoError(t, repo.SavePrices(ctx, []*domain.PriceSeries{
		series("11", "TAEE11", 34.1, 34.5),
		series("4", "PETR4", 38, 37.24),
	}))

	snapshot, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.InstrumentID{
		{Class: "4", Code: "PETR4"},
		{Class: "11", Code: "TAEE11"},
	}, snapshot.Prices.Instruments())

	row, ok := snapshot.Ratios.Row(domain.InstrumentID{Class: "4", Code: "PETR4"})
	require.True(t, ok)
	assert.False(t, math.IsNaN(row[1]))
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
