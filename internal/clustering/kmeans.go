// Package clustering groups normalized return sequences by shape with k-means under
// an elastic distance.
package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

const (
	// MinK is the smallest cluster count accepted by FitPredict.
	MinK = 2

	defaultNInit         = 2
	defaultMaxIterations = 50
	defaultTol           = 1e-6
)

// Config holds the parameters of one k-means fit.
type Config struct {
	K             int
	Metric        ShapeDistance // Defaults to unconstrained DTW
	NInit         int           // Independent restarts; the lowest inertia wins
	MaxIterations int           // Cap on assign/update rounds per restart
	Tol           float64       // Inertia change below which a restart stops
	Seed          *uint64       // Nil draws a fresh seed per fit
	Logger        ports.Logger  // Optional
}

// KMeans is a single-use time-series k-means estimator.
// Build a new one per request; it keeps no state between FitPredict calls.
type KMeans struct {
	cfg Config
}

// New creates a KMeans with defaults applied. K is validated by FitPredict.
func New(cfg Config) *KMeans {
	if cfg.Metric == nil {
		cfg.Metric = NewDTW(-1, defaultBarycenterIterations)
	}
	if cfg.NInit <= 0 {
		cfg.NInit = defaultNInit
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Tol <= 0 {
		cfg.Tol = defaultTol
	}
	return &KMeans{cfg: cfg}
}

type fitRun struct {
	labels     []int
	centroids  [][]float64
	inertia    float64
	iterations int
	converged  bool
}

// FitPredict clusters the collection and returns one label per series, in
// collection order, together with the fitted model.
//
// Initialization is random. With Config.Seed set the result is reproducible;
// without it every call may produce a different (equally valid) partition.
func (km *KMeans) FitPredict(ctx context.Context, collection *domain.SequenceCollection) (*domain.ClusterAssignment, *domain.ClusterModel, error) {
	k := km.cfg.K
	if k < MinK {
		return nil, nil, fmt.Errorf("k=%d (minimum %d): %w", k, MinK, ports.ErrInvalidK)
	}
	if collection == nil || collection.Len() == 0 {
		return nil, nil, fmt.Errorf("clustering with k=%d: %w", k, ports.ErrEmptyInput)
	}

	seed := km.resolveSeed()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	tensor := NewTensor(collection.Values())

	var best *fitRun
	for run := 0; run < km.cfg.NInit; run++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("fit canceled at restart %d: %w: %w", run, ports.ErrContextCanceled, err)
		}
		r, err := km.fitOnce(tensor, rng)
		if err != nil {
			return nil, nil, err
		}
		km.debug(ctx, "k-means restart finished", map[string]interface{}{
			"restart": run, "inertia": r.inertia, "iterations": r.iterations, "converged": r.converged,
		})
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	assignment := &domain.ClusterAssignment{
		K:      k,
		IDs:    collection.IDs(),
		Labels: best.labels,
	}
	model := &domain.ClusterModel{
		K:          k,
		Metric:     km.cfg.Metric.Name(),
		Centroids:  best.centroids,
		Inertia:    best.inertia,
		Iterations: best.iterations,
		Converged:  best.converged,
		Seed:       seed,
	}
	return assignment, model, nil
}

func (km *KMeans) resolveSeed() uint64 {
	if km.cfg.Seed != nil {
		return *km.cfg.Seed
	}
	return uint64(time.Now().UnixNano())
}

func (km *KMeans) fitOnce(t *Tensor, rng *rand.Rand) (*fitRun, error) {
	centroids, err := km.initPlusPlus(t, rng)
	if err != nil {
		return nil, err
	}

	run := &fitRun{}
	var prev []int
	prevInertia := math.Inf(1)
	for iter := 0; iter < km.cfg.MaxIterations; iter++ {
		labels, inertia, err := km.assign(t, centroids)
		if err != nil {
			return nil, err
		}
		run.labels, run.inertia, run.iterations = labels, inertia, iter+1
		if prev != nil && (sameLabels(prev, labels) || math.Abs(prevInertia-inertia) < km.cfg.Tol) {
			run.converged = true
			break
		}
		if centroids, err = km.update(t, labels, centroids); err != nil {
			return nil, err
		}
		prev, prevInertia = labels, inertia
	}

	if !run.converged {
		// Iteration cap reached: report labels consistent with the last centroids.
		if run.labels, run.inertia, err = km.assign(t, centroids); err != nil {
			return nil, err
		}
	}
	run.centroids = centroids
	return run, nil
}

// initPlusPlus picks k starting centroids with k-means++ seeding under the metric.
// When every sequence already coincides with a chosen centroid, the next one is
// drawn uniformly, which may duplicate a centroid and leave its cluster empty.
func (km *KMeans) initPlusPlus(t *Tensor, rng *rand.Rand) ([][]float64, error) {
	n := t.Len()
	centroids := make([][]float64, 0, km.cfg.K)
	centroids = append(centroids, clone(t.Row(rng.IntN(n))))

	minD2 := make([]float64, n)
	for i := range minD2 {
		minD2[i] = math.Inf(1)
	}
	for len(centroids) < km.cfg.K {
		last := centroids[len(centroids)-1]
		total := 0.0
		for i := 0; i < n; i++ {
			d, err := km.cfg.Metric.Distance(t.Row(i), last)
			if err != nil {
				return nil, err
			}
			minD2[i] = math.Min(minD2[i], d*d)
			total += minD2[i]
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i := 0; i < n; i++ {
				if minD2[i] == 0 {
					continue
				}
				next = i
				cum += minD2[i]
				if cum > target {
					break
				}
			}
		}
		centroids = append(centroids, clone(t.Row(next)))
	}
	return centroids, nil
}

// assign labels each sequence with its nearest centroid; ties go to the lowest label.
// The returned inertia is the mean squared distance to the assigned centroid.
func (km *KMeans) assign(t *Tensor, centroids [][]float64) ([]int, float64, error) {
	labels := make([]int, t.Len())
	inertia := 0.0
	for i := 0; i < t.Len(); i++ {
		bestLabel, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			d, err := km.cfg.Metric.Distance(t.Row(i), centroid)
			if err != nil {
				return nil, 0, err
			}
			if d < bestDist {
				bestLabel, bestDist = c, d
			}
		}
		labels[i] = bestLabel
		inertia += bestDist * bestDist
	}
	return labels, inertia / float64(t.Len()), nil
}

// update recomputes each centroid as the barycenter of its members.
// Empty clusters keep their previous centroid.
func (km *KMeans) update(t *Tensor, labels []int, centroids [][]float64) ([][]float64, error) {
	next := make([][]float64, len(centroids))
	for c := range centroids {
		members := make([][]float64, 0)
		for i, l := range labels {
			if l == c {
				members = append(members, t.Row(i))
			}
		}
		if len(members) == 0 {
			next[c] = clone(centroids[c])
			continue
		}
		center, err := km.cfg.Metric.Barycenter(centroids[c], members)
		if err != nil {
			return nil, fmt.Errorf("barycenter of cluster %d: %w", c, err)
		}
		next[c] = center
	}
	return next, nil
}

func (km *KMeans) debug(ctx context.Context, msg string, fields map[string]interface{}) {
	if km.cfg.Logger != nil {
		km.cfg.Logger.Debug(ctx, msg, fields)
	}
}

func sameLabels(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(s []float64) []float64 {
	return append([]float64(nil), s...)
}
