package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shapeCluster/config"
	"shapeCluster/internal/analytics"
	"shapeCluster/internal/clustering"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/normalize"
	"shapeCluster/internal/optimization"
	"shapeCluster/internal/ports"
	"shapeCluster/internal/projection"
)

// Request selects what to cluster. Zero K, StartDate and Metric take the configured
// defaults; nil Seed draws a fresh seed. Empty Classes selects every class.
type Request struct {
	Classes   []string
	K         int
	StartDate time.Time
	Seed      *uint64
	Metric    string
}

// Result is the outcome of one clustering run.
type Result struct {
	RunID      string
	Request    Request   // Request with defaults applied
	Start      time.Time // First trading date of the window
	Assignment *domain.ClusterAssignment
	Model      *domain.ClusterModel
	Groups     map[int]*domain.ClusterHistoryGroup
	Summary    *analytics.Summary
	Overlays   []analytics.Overlay
	Exclusions []domain.Exclusion
}

// SweepReport is the outcome of a k sweep.
type SweepReport struct {
	RunID   string
	Request Request
	Start   time.Time
	Series  int
	Results []optimization.SweepResult
	Elbow   int
}

// ClusteringService orchestrates normalization, clustering and history projection
// over one immutable price snapshot. It is safe for concurrent use: every call
// builds its own collection and estimator.
type ClusteringService struct {
	cfg        *config.Config
	logger     ports.Logger
	metrics    ports.Metrics
	snapshot   *market.Snapshot
	normalizer *normalize.Normalizer
	projector  *projection.Projector
}

// NewClusteringService creates a new application service instance.
func NewClusteringService(cfg *config.Config, logger ports.Logger, metrics ports.Metrics, snapshot *market.Snapshot) (*ClusteringService, error) {
	// Validate dependencies
	if cfg == nil || logger == nil || metrics == nil || snapshot == nil {
		return nil, fmt.Errorf("missing required dependencies for ClusteringService: %w", ports.ErrConfigurationError)
	}

	normalizer, err := normalize.New(normalize.Config{Prices: snapshot.Prices, Ratios: snapshot.Ratios, Logger: logger})
	if err != nil {
		return nil, err
	}
	projector, err := projection.New(snapshot.Prices, logger)
	if err != nil {
		return nil, err
	}

	return &ClusteringService{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		snapshot:   snapshot,
		normalizer: normalizer,
		projector:  projector,
	}, nil
}

// Cluster normalizes the selected instruments, fits a fresh k-means model and
// groups the raw price history of each cluster's members.
func (s *ClusteringService) Cluster(ctx context.Context, req Request) (result *Result, err error) {
	const op = "cluster"
	runID := uuid.NewString()
	ctx = ports.WithRunID(ctx, runID)
	defer func() { s.finish(ctx, op, err) }()

	req = s.withDefaults(req)
	if err := s.checkK(req.K); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Clustering run started", requestFields(req))

	collection, err := s.normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	clusterCfg, err := s.cfg.ClusterConfig(req.K, req.Metric)
	if err != nil {
		return nil, err
	}
	clusterCfg.Seed = req.Seed
	clusterCfg.Logger = s.logger

	started := time.Now()
	assignment, model, err := clustering.New(clusterCfg).FitPredict(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLatency("fit", time.Since(started).Seconds())
	s.metrics.RecordFit(model.Inertia, model.Iterations)
	if !model.Converged {
		s.logger.Warn(ctx, "k-means stopped at the iteration cap", map[string]interface{}{
			"iterations": model.Iterations, "inertia": model.Inertia,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("after fit: %w: %w", ports.ErrContextCanceled, err)
	}

	groups, err := s.projector.GroupByCluster(ctx, assignment, collection.Start)
	if err != nil {
		return nil, err
	}
	summary, err := analytics.Summarize(collection, assignment, model)
	if err != nil {
		return nil, err
	}
	overlays, err := analytics.Overlays(collection, assignment, model)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Clustering run finished", map[string]interface{}{
		"k":         model.K,
		"sizes":     summary.Sizes,
		"inertia":   model.Inertia,
		"converged": model.Converged,
		"seed":      model.Seed,
	})

	return &Result{
		RunID:      runID,
		Request:    req,
		Start:      collection.Start,
		Assignment: assignment,
		Model:      model,
		Groups:     groups,
		Summary:    summary,
		Overlays:   overlays,
		Exclusions: collection.Exclusions,
	}, nil
}

// Sweep fits every k in [kMin, kMax] on the same collection and reports inertia per k.
// req.K is ignored.
func (s *ClusteringService) Sweep(ctx context.Context, req Request, kMin, kMax int) (report *SweepReport, err error) {
	const op = "sweep"
	runID := uuid.NewString()
	ctx = ports.WithRunID(ctx, runID)
	defer func() { s.finish(ctx, op, err) }()

	req = s.withDefaults(req)
	if err := s.checkK(kMax); err != nil {
		return nil, err
	}

	collection, err := s.normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	base, err := s.cfg.ClusterConfig(0, req.Metric)
	if err != nil {
		return nil, err
	}
	base.Seed = req.Seed
	sweeper, err := optimization.NewSweeper(optimization.SweepConfig{KMin: kMin, KMax: kMax, Base: base, Logger: s.logger})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	results, err := sweeper.Sweep(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLatency("sweep", time.Since(started).Seconds())

	return &SweepReport{
		RunID:   runID,
		Request: req,
		Start:   collection.Start,
		Series:  collection.Len(),
		Results: results,
		Elbow:   optimization.Elbow(results),
	}, nil
}

// History returns the raw price history from start of the instruments with the given
// codes, in the order requested. A zero start uses the configured default.
func (s *ClusteringService) History(ctx context.Context, codes []string, start time.Time) ([]*domain.PriceSeries, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no instrument codes: %w", ports.ErrInvalidRequest)
	}
	if start.IsZero() {
		start = s.cfg.StartDate
	}

	byCode := make(map[string]domain.InstrumentID)
	for _, id := range s.snapshot.Prices.Instruments() {
		byCode[id.Code] = id
	}

	out := make([]*domain.PriceSeries, 0, len(codes))
	for _, code := range codes {
		id, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("instrument %q: %w", code, ports.ErrNotFound)
		}
		history, _ := s.snapshot.Prices.History(id, start)
		out = append(out, history)
	}
	s.logger.Debug(ctx, "History lookup", map[string]interface{}{"codes": len(codes), "start": start.Format(domain.DateLayout)})
	return out, nil
}

// Classes lists the instrument classes of the snapshot.
func (s *ClusteringService) Classes() []string {
	return s.snapshot.Prices.Classes()
}

// Instruments lists the instruments of the given classes; none lists all.
func (s *ClusteringService) Instruments(classes ...string) []domain.InstrumentID {
	return s.snapshot.Prices.Instruments(classes...)
}

// DateRange returns the first and last dates a run can start from.
func (s *ClusteringService) DateRange() (time.Time, time.Time, bool) {
	return s.snapshot.DateRange()
}

func (s *ClusteringService) withDefaults(req Request) Request {
	if req.K == 0 {
		req.K = s.cfg.DefaultK
	}
	if req.StartDate.IsZero() {
		req.StartDate = s.cfg.StartDate
	}
	if req.Metric == "" {
		req.Metric = s.cfg.ClusterMetric
	}
	return req
}

func (s *ClusteringService) checkK(k int) error {
	if k < clustering.MinK || k > s.cfg.MaxK {
		return fmt.Errorf("k=%d outside [%d,%d]: %w", k, clustering.MinK, s.cfg.MaxK, ports.ErrInvalidK)
	}
	return nil
}

func (s *ClusteringService) normalize(ctx context.Context, req Request) (*domain.SequenceCollection, error) {
	started := time.Now()
	collection, err := s.normalizer.Normalize(ctx, req.Classes, req.StartDate)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLatency("normalize", time.Since(started).Seconds())
	s.metrics.RecordCollection(collection.Len(), len(collection.Exclusions))
	s.logger.Info(ctx, "Sequences normalized", map[string]interface{}{
		"included": collection.Len(),
		"excluded": len(collection.Exclusions),
		"start":    collection.Start.Format(domain.DateLayout),
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("after normalize: %w: %w", ports.ErrContextCanceled, err)
	}
	return collection, nil
}

func (s *ClusteringService) finish(ctx context.Context, op string, err error) {
	s.metrics.RecordRun(op, err == nil)
	if err == nil {
		return
	}
	kind := ErrorKind(err)
	s.metrics.RecordError(kind)
	if kind == "internal" {
		s.logger.Error(ctx, err, "Run failed", map[string]interface{}{"operation": op})
		return
	}
	s.logger.Warn(ctx, "Run rejected", map[string]interface{}{"operation": op, "kind": kind, "error": err.Error()})
}

// ErrorKind classifies err by the sentinel it wraps.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ports.ErrInvalidK):
		return "invalid_k"
	case errors.Is(err, ports.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ports.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ports.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ports.ErrNotFound):
		return "not_found"
	case errors.Is(err, ports.ErrContextCanceled):
		return "canceled"
	default:
		return "internal"
	}
}

func requestFields(req Request) map[string]interface{} {
	fields := map[string]interface{}{
		"classes": req.Classes,
		"k":       req.K,
		"start":   req.StartDate.Format(domain.DateLayout),
		"metric":  req.Metric,
	}
	if req.Seed != nil {
		fields["seed"] = *req.Seed
	}
	return fields
}
