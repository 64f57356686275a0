package api

import (
	"net/http"

	"fleetdiag/pkg/config"
	"fleetdiag/pkg/detection"
	"fleetdiag/pkg/registry"
	"fleetdiag/pkg/workflow"

	"github.com/gin-gonic/gin"
)

// DiagnosticsHandler serves the reporting surface over the diagnostic
// engine. It holds no state: each request computes fresh results.
type DiagnosticsHandler struct {
	registry   registry.Registry
	detector   *detection.PatternDetector
	workflow   *workflow.Workflow
	eventLimit int
}

// NewDiagnosticsHandler creates a new handler.
func NewDiagnosticsHandler(reg registry.Registry, detector *detection.PatternDetector, wf *workflow.Workflow, cfg *config.Config) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		registry:   reg,
		detector:   detector,
		workflow:   wf,
		eventLimit: cfg.EventFetchLimit,
	}
}

// RegisterRoutes registers the diagnostics routes.
func (h *DiagnosticsHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/diagnostics")
	{
		g.GET("/devices/:id", h.DeviceDiagnostics)
		g.GET("/patterns", h.SystemWidePatterns)
		g.GET("/warnings", h.WarningDevices)
		g.GET("/issues", h.RecentIssues)
	}
}

// DeviceDiagnostics runs all detection algorithms for one device.
func (h *DiagnosticsHandler) DeviceDiagnostics(c *gin.Context) {
	deviceID := c.Param("id")

	events, err := h.registry.GetEvents(c.Request.Context(), deviceID, h.eventLimit)
	if err != nil {
		respondError(c, http.StatusNotFound, "device events unavailable: "+err.Error())
		return
	}

	result := h.detector.DetectAll(c.Request.Context(), deviceID, events)
	c.JSON(http.StatusOK, result)
}

// SystemWidePatterns returns finding types recurring across the fleet.
func (h *DiagnosticsHandler) SystemWidePatterns(c *gin.Context) {
	patterns, err := h.workflow.SystemWidePatterns(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, patterns)
}

// WarningDevices returns device IDs below the battery warning threshold.
func (h *DiagnosticsHandler) WarningDevices(c *gin.Context) {
	warnings, err := h.workflow.DetectWarningDevices(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": warnings})
}

// RecentIssues returns the bounded prioritized issue list.
func (h *DiagnosticsHandler) RecentIssues(c *gin.Context) {
	issues, err := h.workflow.AggregateRecentIssues(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// respondError sends a structured JSON error response and aborts the request.
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"status":  code,
		},
	})
	c.Abort()
}
