// Package projection maps cluster labels back to raw, unnormalized price history.
package projection

import (
	"context"
	"fmt"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// Projector groups raw price histories by cluster label.
type Projector struct {
	store  ports.PriceStore
	logger ports.Logger
}

// New creates a Projector reading from store.
func New(store ports.PriceStore, logger ports.Logger) (*Projector, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("price store and logger are required: %w", ports.ErrConfigurationError)
	}
	return &Projector{store: store, logger: logger}, nil
}

// GroupByCluster returns one group per label in [0, K), each holding the raw
// history from start onward of the instruments assigned to it, in assignment order.
// Empty clusters get an empty group.
func (p *Projector) GroupByCluster(ctx context.Context, assignment *domain.ClusterAssignment, start time.Time) (map[int]*domain.ClusterHistoryGroup, error) {
	if assignment == nil {
		return nil, fmt.Errorf("nil assignment: %w", ports.ErrInvalidRequest)
	}
	if len(assignment.Labels) != len(assignment.IDs) {
		return nil, fmt.Errorf("%d labels for %d instruments: %w", len(assignment.Labels), len(assignment.IDs), ports.ErrInvalidRequest)
	}
	groups := make(map[int]*domain.ClusterHistoryGroup, assignment.K)
	for label := 0; label < assignment.K; label++ {
		groups[label] = &domain.ClusterHistoryGroup{Label: label, Members: make([]domain.PriceSeries, 0)}
	}

	for i, id := range assignment.IDs {
		label := assignment.Labels[i]
		group, ok := groups[label]
		if !ok {
			return nil, fmt.Errorf("label %d of %s outside [0,%d): %w", label, id, assignment.K, ports.ErrInvalidRequest)
		}
		history, ok := p.store.History(id, start)
		if !ok {
			err := fmt.Errorf("history of %s: %w", id, ports.ErrMissingInstrument)
			p.logger.Error(ctx, err, "Assignment references an instrument the price store does not hold",
				map[string]interface{}{"instrument": id.String(), "label": label})
			return nil, err
		}
		group.Members = append(group.Members, *history)
	}

	p.logger.Debug(ctx, "Projected cluster histories", map[string]interface{}{
		"clusters":    assignment.K,
		"instruments": len(assignment.IDs),
	})
	return groups, nil
}
