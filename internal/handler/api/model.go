package api

import (
	"shapeCluster/internal/analytics"
	"shapeCluster/internal/app"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/optimization"
)

// ClusterRequest is the body of POST /api/v1/clusters.
// Omitted K, start date and metric take the server defaults.
type ClusterRequest struct {
	Classes   []string `json:"classes"`
	K         int      `json:"k" validate:"omitempty,min=2,max=9"`
	StartDate string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Seed      *uint64  `json:"seed"`
	Metric    string   `json:"metric" validate:"omitempty,oneof=dtw euclidean"`
}

// SweepRequest is the body of POST /api/v1/clusters/sweep.
type SweepRequest struct {
	Classes   []string `json:"classes"`
	KMin      int      `json:"k_min" default:"2" validate:"min=2,max=9"`
	KMax      int      `json:"k_max" default:"9" validate:"min=2,max=9,gtefield=KMin"`
	StartDate string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Seed      *uint64  `json:"seed"`
	Metric    string   `json:"metric" validate:"omitempty,oneof=dtw euclidean"`
}

// HistoryRequest is the query of GET /api/v1/history.
type HistoryRequest struct {
	Codes string `query:"codes" validate:"required"`
	Start string `query:"start" validate:"omitempty,datetime=2006-01-02"`
}

// PointView is one dated price.
type PointView struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// SeriesView is the raw history of one instrument.
type SeriesView struct {
	Class  string      `json:"class"`
	Code   string      `json:"code"`
	Points []PointView `json:"points"`
}

// CurveView is one member's normalized trajectory.
type CurveView struct {
	Code   string    `json:"code"`
	Values []float64 `json:"values"`
}

// ClusterView describes one cluster of a run.
type ClusterView struct {
	Label               int          `json:"label"`
	Size                int          `json:"size"`
	Share               float64      `json:"share"`
	CentroidReturn      float64      `json:"centroid_return"`
	CentroidMaxDrawdown float64      `json:"centroid_max_drawdown"`
	MeanFinalReturn     float64      `json:"mean_final_return"`
	Best                string       `json:"best,omitempty"`
	Worst               string       `json:"worst,omitempty"`
	Codes               []string     `json:"codes"`
	Centroid            []float64    `json:"centroid"`
	Members             []CurveView  `json:"members"`
	History             []SeriesView `json:"history"`
}

// ExclusionView names an instrument left out of a run.
type ExclusionView struct {
	Class  string `json:"class"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
	Date   string `json:"date,omitempty"`
}

// ClusterResponse is the result of POST /api/v1/clusters.
type ClusterResponse struct {
	RunID      string          `json:"run_id"`
	K          int             `json:"k"`
	Metric     string          `json:"metric"`
	Start      string          `json:"start"`
	Seed       uint64          `json:"seed"`
	Inertia    float64         `json:"inertia"`
	Iterations int             `json:"iterations"`
	Converged  bool            `json:"converged"`
	Sizes      []int           `json:"sizes"`
	Clusters   []ClusterView   `json:"clusters"`
	Exclusions []ExclusionView `json:"exclusions"`
}

// SweepPointView is the fit quality of one k.
type SweepPointView struct {
	K          int     `json:"k"`
	Inertia    float64 `json:"inertia"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Sizes      []int   `json:"sizes"`
	Seed       uint64  `json:"seed"`
}

// SweepResponse is the result of POST /api/v1/clusters/sweep.
type SweepResponse struct {
	RunID   string           `json:"run_id"`
	Start   string           `json:"start"`
	Series  int              `json:"series"`
	Elbow   int              `json:"elbow"`
	Results []SweepPointView `json:"results"`
}

// ClassesResponse lists the snapshot's classes and date bounds.
type ClassesResponse struct {
	Classes     []string            `json:"classes"`
	Instruments map[string][]string `json:"instruments"`
	From        string              `json:"from,omitempty"`
	To          string              `json:"to,omitempty"`
}

func newSeriesView(s *domain.PriceSeries) SeriesView {
	view := SeriesView{Class: s.ID.Class, Code: s.ID.Code, Points: make([]PointView, len(s.Points))}
	for i, p := range s.Points {
		view.Points[i] = PointView{Date: p.Date.Format(domain.DateLayout), Price: p.Price}
	}
	return view
}

func newClusterResponse(res *app.Result) ClusterResponse {
	out := ClusterResponse{
		RunID:      res.RunID,
		K:          res.Model.K,
		Metric:     res.Model.Metric,
		Start:      res.Start.Format(domain.DateLayout),
		Seed:       res.Model.Seed,
		Inertia:    res.Model.Inertia,
		Iterations: res.Model.Iterations,
		Converged:  res.Model.Converged,
		Sizes:      res.Summary.Sizes,
		Clusters:   make([]ClusterView, 0, res.Model.K),
		Exclusions: make([]ExclusionView, 0, len(res.Exclusions)),
	}

	for label, stats := range res.Summary.Clusters {
		view := ClusterView{
			Label:               label,
			Size:                stats.Size,
			Share:               stats.Share,
			CentroidReturn:      stats.CentroidReturn,
			CentroidMaxDrawdown: stats.CentroidMaxDrawdown,
			MeanFinalReturn:     stats.MeanFinalReturn,
			Best:                stats.BestCode,
			Worst:               stats.WorstCode,
			Codes:               stats.Codes,
			Centroid:            res.Overlays[label].Centroid,
			Members:             curveViews(res.Overlays[label].Members),
			History:             make([]SeriesView, 0),
		}
		if group, ok := res.Groups[label]; ok {
			for i := range group.Members {
				view.History = append(view.History, newSeriesView(&group.Members[i]))
			}
		}
		out.Clusters = append(out.Clusters, view)
	}

	for _, e := range res.Exclusions {
		view := ExclusionView{Class: e.ID.Class, Code: e.ID.Code, Reason: string(e.Reason)}
		if !e.Date.IsZero() {
			view.Date = e.Date.Format(domain.DateLayout)
		}
		out.Exclusions = append(out.Exclusions, view)
	}
	return out
}

func curveViews(curves []analytics.Curve) []CurveView {
	out := make([]CurveView, len(curves))
	for i, c := range curves {
		out[i] = CurveView{Code: c.Code, Values: c.Values}
	}
	return out
}

func newSweepResponse(report *app.SweepReport) SweepResponse {
	out := SweepResponse{
		RunID:   report.RunID,
		Start:   report.Start.Format(domain.DateLayout),
		Series:  report.Series,
		Elbow:   report.Elbow,
		Results: make([]SweepPointView, len(report.Results)),
	}
	for i, r := range report.Results {
		out.Results[i] = sweepPointView(r)
	}
	return out
}

func sweepPointView(r optimization.SweepResult) SweepPointView {
	return SweepPointView{
		K:          r.K,
		Inertia:    r.Inertia,
		Iterations: r.Iterations,
		Converged:  r.Converged,
		Sizes:      r.Sizes,
		Seed:       r.Seed,
	}
}
