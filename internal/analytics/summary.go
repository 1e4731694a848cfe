// Package analytics summarises a fitted clustering: cluster sizes, centroid shape
// statistics and member curves for overlay plots.
package analytics

import (
	"fmt"
	"math"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// ClusterStats describes one cluster of a fit.
type ClusterStats struct {
	Label int
	Size  int
	Share float64 // Size / total instruments

	// Centroid shape
	CentroidReturn      float64 // last / first - 1
	CentroidMaxDrawdown float64 // Deepest peak-to-trough fall, as a fraction of the peak

	// Members
	MeanFinalReturn float64 // Mean of member final values minus 1
	BestCode        string
	WorstCode       string
	Codes           []string
}

// Summary holds the per-cluster statistics of one fit.
type Summary struct {
	K         int
	Total     int
	Excluded  int
	Sizes     []int // Cluster-size histogram, indexed by label
	Clusters  []ClusterStats
	Inertia   float64
	Converged bool
}

// Curve is one member's normalized trajectory.
type Curve struct {
	Code   string
	Values []float64
}

// Overlay pairs a cluster's member curves with its centroid.
type Overlay struct {
	Label    int
	Centroid []float64
	Members  []Curve
}

// Summarize computes cluster statistics from a collection, its assignment and the model.
func Summarize(collection *domain.SequenceCollection, assignment *domain.ClusterAssignment, model *domain.ClusterModel) (*Summary, error) {
	if err := check(collection, assignment, model); err != nil {
		return nil, err
	}

	summary := &Summary{
		K:         assignment.K,
		Total:     len(assignment.IDs),
		Excluded:  len(collection.Exclusions),
		Sizes:     assignment.Sizes(),
		Clusters:  make([]ClusterStats, assignment.K),
		Inertia:   model.Inertia,
		Converged: model.Converged,
	}

	for label := range summary.Clusters {
		centroid := model.Centroids[label]
		summary.Clusters[label] = ClusterStats{
			Label:               label,
			Size:                summary.Sizes[label],
			CentroidReturn:      TotalReturn(centroid),
			CentroidMaxDrawdown: MaxDrawdown(centroid),
			Codes:               make([]string, 0, summary.Sizes[label]),
		}
		if summary.Total > 0 {
			summary.Clusters[label].Share = float64(summary.Sizes[label]) / float64(summary.Total)
		}
	}

	best := make([]float64, assignment.K)
	worst := make([]float64, assignment.K)
	for i := range best {
		best[i], worst[i] = math.Inf(-1), math.Inf(1)
	}
	for i, s := range collection.Series {
		label := assignment.Labels[i]
		stats := &summary.Clusters[label]
		final := s.Final() - 1
		stats.Codes = append(stats.Codes, s.ID.Code)
		stats.MeanFinalReturn += final / float64(stats.Size)
		if final > best[label] {
			best[label], stats.BestCode = final, s.ID.Code
		}
		if final < worst[label] {
			worst[label], stats.WorstCode = final, s.ID.Code
		}
	}
	return summary, nil
}

// Overlays returns, per label, the member curves of the cluster and its centroid.
func Overlays(collection *domain.SequenceCollection, assignment *domain.ClusterAssignment, model *domain.ClusterModel) ([]Overlay, error) {
	if err := check(collection, assignment, model); err != nil {
		return nil, err
	}
	out := make([]Overlay, assignment.K)
	for label := range out {
		out[label] = Overlay{Label: label, Centroid: model.Centroids[label], Members: make([]Curve, 0)}
	}
	for i, s := range collection.Series {
		label := assignment.Labels[i]
		out[label].Members = append(out[label].Members, Curve{Code: s.ID.Code, Values: s.Values})
	}
	return out, nil
}

// TotalReturn returns values[last]/values[0] - 1, or 0 when undefined.
func TotalReturn(values []float64) float64 {
	if len(values) == 0 || values[0] == 0 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}

// MaxDrawdown returns the deepest fall from a running peak, as a fraction of that peak.
func MaxDrawdown(values []float64) float64 {
	maxDrawdown := 0.0
	peak := math.Inf(-1)
	for _, v := range values {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			maxDrawdown = math.Max(maxDrawdown, (peak-v)/peak)
		}
	}
	return maxDrawdown
}

func check(collection *domain.SequenceCollection, assignment *domain.ClusterAssignment, model *domain.ClusterModel) error {
	if collection == nil || assignment == nil || model == nil {
		return fmt.Errorf("collection, assignment and model are required: %w", ports.ErrInvalidRequest)
	}
	if len(assignment.Labels) != collection.Len() || len(model.Centroids) != assignment.K {
		return fmt.Errorf("assignment of %d labels and %d centroids for %d series with k=%d: %w",
			len(assignment.Labels), len(model.Centroids), collection.Len(), assignment.K, ports.ErrInvalidRequest)
	}
	for i, l := range assignment.Labels {
		if l < 0 || l >= assignment.K {
			return fmt.Errorf("label %d of %s outside [0,%d): %w", l, collection.Series[i].ID, assignment.K, ports.ErrInvalidRequest)
		}
	}
	return nil
}
