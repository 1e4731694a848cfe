package main

import (
	"context"
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

type fakeSource struct {
	pingErr error
	closes  map[string][]float64
	failOn  string
	calls   []string
}

func (f *fakeSource) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeSource) GetDailyCloses(ctx context.Context, id domain.InstrumentID, start, end time.Time) (*domain.PriceSeries, error) {
	f.calls = append(f.calls, id.Code)
	if id.Code == f.failOn {
		return nil, ports.ErrRateLimited
	}
	s := &domain.PriceSeries{ID: id}
	for i, v := range f.closes[id.Code] {
		s.Points = append(s.Points, domain.PricePoint{Date: start.AddDate(0, 0, i), Price: v})
	}
	return s, nil
}

func TestParseSymbols(t *testing.T) {
	ids := parseSymbols(" btcusdt, ,ETHUSDT,", "PERP")
	assert.Equal(t, []domain.InstrumentID{
		{Class: "PERP", Code: "BTCUSDT"},
		{Class: "PERP", Code: "ETHUSDT"},
	}, ids)
}

func TestFetchAll(t *testing.T) {
	start := time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	ids := parseSymbols("BTCUSDT,NEWUSDT,ETHUSDT", "PERP")

	t.Run("skips empty histories", func(t *testing.T) {
		src := &fakeSource{closes: map[string][]float64{
			"BTCUSDT": {60000, 61000, 59000},
			"ETHUSDT": {3000, 3100, 3050},
		}}
		series, err := fetchAll(context.Background(), src, &mockLogger{}, ids, start, end)
		require.NoError(t, err)
		require.Len(t, series, 2)
		assert.Equal(t, "BTCUSDT", series[0].ID.Code)
		assert.Equal(t, "ETHUSDT", series[1].ID.Code)
		assert.Equal(t, 3, series[1].Len())
	})

	t.Run("stops at first failure", func(t *testing.T) {
		src := &fakeSource{failOn: "NEWUSDT"}
		_, err := fetchAll(context.Background(), src, &mockLogger{}, ids, start, end)
		assert.ErrorIs(t, err, ports.ErrRateLimited)
		assert.Equal(t, []string{"BTCUSDT", "NEWUSDT"}, src.calls)
	})

	t.Run("ping failure", func(t *testing.T) {
		src := &fakeSource{pingErr: ports.ErrExchangeFailure}
		_, err := fetchAll(context.Background(), src, &mockLogger{}, ids, start, end)
		assert.ErrorIs(t, err, ports.ErrExchangeFailure)
		assert.Empty(t, src.calls)
	})
}
