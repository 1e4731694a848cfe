// Package api serves the clustering pipeline over HTTP with echo.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"shapeCluster/internal/app"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
)

// Service is the application surface the handler drives.
type Service interface {
	Cluster(ctx context.Context, req app.Request) (*app.Result, error)
	Sweep(ctx context.Context, req app.Request, kMin, kMax int) (*app.SweepReport, error)
	History(ctx context.Context, codes []string, start time.Time) ([]*domain.PriceSeries, error)
	Classes() []string
	Instruments(classes ...string) []domain.InstrumentID
	DateRange() (time.Time, time.Time, bool)
}

// Config holds the dependencies of a Handler.
type Config struct {
	Service        Service
	Logger         ports.Logger
	Metrics        http.Handler // Served on /metrics when set
	DefaultClasses []string     // Used when a request names no classes
}

// Handler implements the clustering HTTP endpoints.
type Handler struct {
	service        Service
	logger         ports.Logger
	metrics        http.Handler
	defaultClasses []string
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Service == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("service and logger are required for the API handler: %w", ports.ErrConfigurationError)
	}
	return &Handler{
		service:        cfg.Service,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		defaultClasses: cfg.DefaultClasses,
	}, nil
}

// NewServer builds an echo instance with middleware and every route registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(h.requestLogging())
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes mounts the API on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/clusters", h.Cluster)
	g.POST("/clusters/sweep", h.Sweep)
	g.GET("/classes", h.Classes)
	g.GET("/history", h.History)

	e.GET("/healthz", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

// Cluster runs one clustering request.
func (h *Handler) Cluster(c echo.Context) error {
	req := &ClusterRequest{}
	if details := readAndValidate(c, req); details != nil {
		return BadRequestResponse(c, details)
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		return BadRequestResponse(c, []ErrorDetail{{Code: "ERR_DATETIME", Field: "StartDate", Message: err.Error()}})
	}

	res, err := h.service.Cluster(c.Request().Context(), app.Request{
		Classes:   h.classes(req.Classes),
		K:         req.K,
		StartDate: start,
		Seed:      req.Seed,
		Metric:    req.Metric,
	})
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, newClusterResponse(res))
}

// Sweep fits every k of a range and reports inertia per k.
func (h *Handler) Sweep(c echo.Context) error {
	req := &SweepRequest{}
	if details := readAndValidate(c, req); details != nil {
		return BadRequestResponse(c, details)
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		return BadRequestResponse(c, []ErrorDetail{{Code: "ERR_DATETIME", Field: "StartDate", Message: err.Error()}})
	}

	report, err := h.service.Sweep(c.Request().Context(), app.Request{
		Classes:   h.classes(req.Classes),
		StartDate: start,
		Seed:      req.Seed,
		Metric:    req.Metric,
	}, req.KMin, req.KMax)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, newSweepResponse(report))
}

// Classes lists the classes, their instruments and the usable date range.
func (h *Handler) Classes(c echo.Context) error {
	classes := h.service.Classes()
	out := ClassesResponse{Classes: classes, Instruments: make(map[string][]string, len(classes))}
	for _, class := range classes {
		codes := make([]string, 0)
		for _, id := range h.service.Instruments(class) {
			codes = append(codes, id.Code)
		}
		out.Instruments[class] = codes
	}
	if from, to, ok := h.service.DateRange(); ok {
		out.From = from.Format(domain.DateLayout)
		out.To = to.Format(domain.DateLayout)
	}
	return SuccessResponse(c, out)
}

// History returns the raw price history of comma-separated codes.
func (h *Handler) History(c echo.Context) error {
	req := &HistoryRequest{}
	if details := readAndValidate(c, req); details != nil {
		return BadRequestResponse(c, details)
	}
	start, err := parseOptionalDate(req.Start)
	if err != nil {
		return BadRequestResponse(c, []ErrorDetail{{Code: "ERR_DATETIME", Field: "Start", Message: err.Error()}})
	}

	codes := make([]string, 0)
	for _, code := range strings.Split(req.Codes, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	series, err := h.service.History(c.Request().Context(), codes, start)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	out := make([]SeriesView, len(series))
	for i, s := range series {
		out[i] = newSeriesView(s)
	}
	return SuccessResponse(c, out)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) classes(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return h.defaultClasses
}

// requestLogging logs every request with its status and latency.
func (h *Handler) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			h.logger.Info(req.Context(), "HTTP request", map[string]interface{}{
				"method":    req.Method,
				"uri":       req.RequestURI,
				"status":    res.Status,
				"latencyMs": time.Since(start).Milliseconds(),
			})
			return nil
		}
	}
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}
