package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shapeCluster/config"
	"shapeCluster/internal/app"
	"shapeCluster/internal/clustering"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/metrics"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func day(i int) time.Time {
	return time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	b := market.NewBuilder()
	add := func(class, code string, start, step float64) {
		id := domain.InstrumentID{Class: class, Code: code}
		price := start
		for i := 0; i < 8; i++ {
			require.NoError(t, b.Add(id, day(i), price))
			price *= 1 + step
		}
	}
	for i := 0; i < 3; i++ {
		add("11", fmt.Sprintf("UP%d11", i), 10, 0.02+0.003*float64(i))
		add("11", fmt.Sprintf("DN%d11", i), 10, -0.02-0.003*float64(i))
	}
	add("4", "PETR4", 38, 0.01)
	snapshot, err := market.NewSnapshot(b.Build(), nil)
	require.NoError(t, err)

	cfg := &config.Config{
		DefaultClasses:       []string{"11"},
		StartDate:            day(1),
		DefaultK:             2,
		MaxK:                 9,
		ClusterMetric:        clustering.MetricDTW,
		ClusterNInit:         2,
		ClusterMaxIter:       50,
		ClusterTol:           1e-6,
		BarycenterIterations: 10,
		DTWWindow:            -1,
	}
	recorder := metrics.New()
	svc, err := app.NewClusteringService(cfg, &mockLogger{}, recorder, snapshot)
	require.NoError(t, err)

	h, err := New(Config{Service: svc, Logger: &mockLogger{}, Metrics: recorder.Handler(), DefaultClasses: cfg.DefaultClasses})
	require.NoError(t, err)
	return NewServer(h)
}

func do(t *testing.T, srv http.Handler, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(target, "/api/") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCluster(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := do(t, srv, http.MethodPost, "/api/v1/clusters", `{"seed": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, resp.Status)

	var body struct {
		Data ClusterResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	out := body.Data
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, out.K)
	assert.Equal(t, "dtw", out.Metric)
	assert.Equal(t, "2024-07-27", out.Start)
	assert.Equal(t, uint64(1), out.Seed)
	assert.Equal(t, []int{3, 3}, out.Sizes)
	require.Len(t, out.Clusters, 2)
	for _, c := range out.Clusters {
		assert.Len(t, c.Members, 3)
		assert.Len(t, c.History, 3)
		assert.Len(t, c.Centroid, 7)
		assert.Equal(t, "2024-07-27", c.History[0].Points[0].Date)
	}
	assert.Empty(t, out.Exclusions)
}

func TestCluster_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "k below bound", body: `{"k": 1}`, want: http.StatusBadRequest},
		{name: "k above bound", body: `{"k": 10}`, want: http.StatusBadRequest},
		{name: "bad metric", body: `{"metric": "cosine"}`, want: http.StatusBadRequest},
		{name: "bad date", body: `{"start_date": "27/07/2024"}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"k": `, want: http.StatusBadRequest},
		{name: "start before data", body: `{"start_date": "2024-01-01"}`, want: http.StatusNotFound},
		{name: "no instruments", body: `{"classes": ["99"]}`, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, srv, http.MethodPost, "/api/v1/clusters", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestSweep(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := do(t, srv, http.MethodPost, "/api/v1/clusters/sweep", `{"k_min": 2, "k_max": 4, "seed": 9, "metric": "euclidean"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data SweepResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Results, 3)
	assert.Equal(t, 6, body.Data.Series)
	assert.Equal(t, 4, body.Data.Results[2].K)

	rec, _ = do(t, srv, http.MethodPost, "/api/v1/clusters/sweep", `{"k_min": 5, "k_max": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassesAndHistory(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := do(t, srv, http.MethodGet, "/api/v1/classes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var classes struct {
		Data ClassesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classes))
	assert.Equal(t, []string{"11", "4"}, classes.Data.Classes)
	assert.Equal(t, []string{"PETR4"}, classes.Data.Instruments["4"])
	assert.Equal(t, "2024-07-27", classes.Data.From)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/history?codes=PETR4,UP011&start=2024-07-30", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history struct {
		Data []SeriesView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Data, 2)
	assert.Equal(t, "PETR4", history.Data[0].Code)
	assert.Len(t, history.Data[0].Points, 4)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/history?codes=NOPE3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, srv, http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, srv, http.MethodPost, "/api/v1/clusters", `{"seed": 2}`)
	rec, _ = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shapecluster_runs_total{operation="cluster",outcome="ok"} 1`)
}

func TestStatusFor(t *testing.T) {
	status, code := StatusFor(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "ERR_INTERNAL", code)
}
