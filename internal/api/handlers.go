// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/floodwatch/pipeline/internal/cluster"
	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/service"
)

// PipelineService is the pipeline surface the handlers call.
type PipelineService interface {
	IngestDocument(ctx context.Context, raw map[string]any) (string, error)
	GetClusters(ctx context.Context, req *service.ClusterRequest) (*cluster.Result, error)
	CategorizeClusters(ctx context.Context, req *service.ClusterRequest) ([]service.CategorizedCluster, error)
	RetainRepresentatives(ctx context.Context, terms []string, window time.Duration) (*service.SweepReport, error)
	HealthCheck(ctx context.Context) map[string]string
}

// Handler holds HTTP request handlers.
type Handler struct {
	pipeline PipelineService
	cfg      *config.Config
	logger   logging.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(pipeline PipelineService, cfg *config.Config, logger logging.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize ingests one raw post: normalize, project, index.
func (h *Handler) Normalize(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.badRequest(c, err)
		return
	}

	id, err := h.pipeline.IngestDocument(c.Request.Context(), raw)
	if err != nil {
		status, code := classifyError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Ingest failed", logging.Error(err))
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Timestamp: time.Now()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Clusters builds clusters for the posted request.
func (h *Handler) Clusters(c *gin.Context) {
	req, ok := h.bindClusterRequest(c)
	if !ok {
		return
	}

	result, err := h.pipeline.GetClusters(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Cluster build failed",
			logging.Strings("terms", req.Terms),
			logging.Error(err),
		)
		status, code := classifyError(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Timestamp: time.Now()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Categorize builds clusters and partitions each into representatives and
// suppressed near-duplicates.
func (h *Handler) Categorize(c *gin.Context) {
	req, ok := h.bindClusterRequest(c)
	if !ok {
		return
	}

	categorized, err := h.pipeline.CategorizeClusters(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Categorize failed",
			logging.Strings("terms", req.Terms),
			logging.Error(err),
		)
		status, code := classifyError(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Timestamp: time.Now()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"clusters": categorized})
}

// SweepRequest triggers one representative sweep. Zero values fall back
// to the scheduler configuration.
type SweepRequest struct {
	Terms  []string `json:"terms,omitempty"`
	Window string   `json:"window,omitempty"`
}

// Sweep runs one representative sweep immediately.
func (h *Handler) Sweep(c *gin.Context) {
	var req SweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	terms := req.Terms
	if len(terms) == 0 {
		terms = h.cfg.Scheduler.SweepTerms
	}
	window := h.cfg.Scheduler.SweepWindow
	if req.Window != "" {
		parsed, err := time.ParseDuration(req.Window)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		window = parsed
	}

	report, err := h.pipeline.RetainRepresentatives(c.Request.Context(), terms, window)
	if err != nil {
		h.logger.Error("Sweep failed", logging.Error(err))
		status, code := classifyError(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Timestamp: time.Now()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// HealthCheck handles health check requests.
func (h *Handler) HealthCheck(c *gin.Context) {
	deps := h.pipeline.HealthCheck(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	for _, state := range deps {
		if state != "healthy" {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"version":      h.cfg.Service.Version,
		"timestamp":    time.Now(),
		"dependencies": deps,
	})
}

func (h *Handler) bindClusterRequest(c *gin.Context) (*service.ClusterRequest, bool) {
	var req service.ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return nil, false
	}
	if len(req.Terms) == 0 {
		h.badRequest(c, errors.New("at least one grouping term is required"))
		return nil, false
	}
	return &req, true
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("Invalid request", logging.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     err.Error(),
		Code:      "INVALID_REQUEST",
		Timestamp: time.Now(),
	})
}

// classifyError maps the normalization error taxonomy onto HTTP statuses.
func classifyError(err error) (int, string) {
	var missing *domain.MissingDataError
	var unsupported *domain.UnsupportedValueError
	var malformed *domain.MalformedValueError

	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, "MISSING_DATA"
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_VALUE"
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity, "MALFORMED_VALUE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
