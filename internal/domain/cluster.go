package domain

// ClusterAssignment maps each identifier of a collection to a label in [0, K).
// IDs and Labels are index-aligned and follow the collection order.
type ClusterAssignment struct {
	K      int
	IDs    []InstrumentID
	Labels []int
}

// Label returns the label assigned to id.
func (a *ClusterAssignment) Label(id InstrumentID) (int, bool) {
	for i, candidate := range a.IDs {
		if candidate == id {
			return a.Labels[i], true
		}
	}
	return 0, false
}

// Members returns the identifiers assigned to label, in collection order.
func (a *ClusterAssignment) Members(label int) []InstrumentID {
	members := make([]InstrumentID, 0)
	for i, l := range a.Labels {
		if l == label {
			members = append(members, a.IDs[i])
		}
	}
	return members
}

// Sizes returns the number of members per label. Empty clusters report 0.
func (a *ClusterAssignment) Sizes() []int {
	sizes := make([]int, a.K)
	for _, l := range a.Labels {
		if l >= 0 && l < a.K {
			sizes[l]++
		}
	}
	return sizes
}

// ClusterModel is the fitted state of one clustering request.
type ClusterModel struct {
	K          int
	Metric     string
	Centroids  [][]float64
	Inertia    float64 // Mean squared distance of each sequence to its centroid
	Iterations int     // Refinement iterations of the winning restart
	Converged  bool    // False when the iteration cap stopped the refinement
	Seed       uint64  // Seed that reproduces this fit
}

// ClusterHistoryGroup holds the raw price histories of one cluster's members.
type ClusterHistoryGroup struct {
	Label   int
	Members []PriceSeries
}

// Codes returns the member instrument codes in group order.
func (g *ClusterHistoryGroup) Codes() []string {
	codes := make([]string, len(g.Members))
	for i, m := range g.Members {
		codes[i] = m.ID.Code
	}
	return codes
}
