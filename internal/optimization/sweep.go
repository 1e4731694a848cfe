// Package optimization sweeps the cluster count and reports the fit quality per k.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"shapeCluster/internal/clustering"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// SweepConfig holds configuration for a k sweep.
type SweepConfig struct {
	KMin   int
	KMax   int
	Base   clustering.Config // K is overwritten per fit
	Logger ports.Logger
}

// SweepResult holds the outcome of one fit.
type SweepResult struct {
	K          int
	Inertia    float64
	Iterations int
	Converged  bool
	Sizes      []int
	Seed       uint64
}

// Sweeper fits one independent k-means per k.
type Sweeper struct {
	config SweepConfig
}

// NewSweeper creates a Sweeper over [KMin, KMax].
func NewSweeper(config SweepConfig) (*Sweeper, error) {
	if config.KMin < clustering.MinK {
		return nil, fmt.Errorf("k sweep from %d (minimum %d): %w", config.KMin, clustering.MinK, ports.ErrInvalidK)
	}
	if config.KMax < config.KMin {
		return nil, fmt.Errorf("k sweep range [%d,%d] is empty: %w", config.KMin, config.KMax, ports.ErrInvalidRequest)
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required for k sweep: %w", ports.ErrConfigurationError)
	}
	return &Sweeper{config: config}, nil
}

// Sweep fits every k concurrently and returns the results ordered by k.
// The collection is only read; each fit owns its estimator and random source.
func (s *Sweeper) Sweep(ctx context.Context, collection *domain.SequenceCollection) ([]SweepResult, error) {
	n := s.config.KMax - s.config.KMin + 1
	results := make([]SweepResult, 0, n)

	type outcome struct {
		result SweepResult
		err    error
	}
	resultChan := make(chan outcome, n)
	var wg sync.WaitGroup

	for k := s.config.KMin; k <= s.config.KMax; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()

			cfg := s.config.Base
			cfg.K = k
			assignment, model, err := clustering.New(cfg).FitPredict(ctx, collection)
			if err != nil {
				resultChan <- outcome{err: fmt.Errorf("k=%d: %w", k, err)}
				return
			}
			resultChan <- outcome{result: SweepResult{
				K:          k,
				Inertia:    model.Inertia,
				Iterations: model.Iterations,
				Converged:  model.Converged,
				Sizes:      assignment.Sizes(),
				Seed:       model.Seed,
			}}
		}(k)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var errs []error
	for o := range resultChan {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		results = append(results, o.result)
	}
	if len(errs) > 0 {
		s.config.Logger.Error(ctx, errs[0], "k sweep failed", map[string]interface{}{"failedFits": len(errs)})
		return nil, errs[0]
	}

	sort.Slice(results, func(i, j int) bool { return results[i].K < results[j].K })
	s.config.Logger.Info(ctx, "k sweep finished", map[string]interface{}{
		"kMin": s.config.KMin, "kMax": s.config.KMax, "series": collection.Len(),
	})
	return results, nil
}

// Elbow returns the k whose inertia lies farthest below the straight line joining
// the first and last results. Fewer than three results return the first k.
func Elbow(results []SweepResult) int {
	if len(results) == 0 {
		return 0
	}
	if len(results) < 3 {
		return results[0].K
	}
	first, last := results[0], results[len(results)-1]
	slope := (last.Inertia - first.Inertia) / float64(last.K-first.K)

	bestK, bestGap := first.K, math.Inf(-1)
	for _, r := range results[1 : len(results)-1] {
		line := first.Inertia + slope*float64(r.K-first.K)
		if gap := line - r.Inertia; gap > bestGap {
			bestK, bestGap = r.K, gap
		}
	}
	return bestK
}
