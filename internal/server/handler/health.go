package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version      string
	ready        bool
	embeddingDim int
	llmEnabled   bool
	auditEnabled bool
}

// NewHealthHandler creates a new health handler. ready reports whether the
// classification artifacts are loaded; it is fixed for the process lifetime.
func NewHealthHandler(version string, ready bool, embeddingDim int, llmEnabled, auditEnabled bool) *HealthHandler {
	return &HealthHandler{
		version:      version,
		ready:        ready,
		embeddingDim: embeddingDim,
		llmEnabled:   llmEnabled,
		auditEnabled: auditEnabled,
	}
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	EmbeddingDim int               `json:"embedding_dim,omitempty"`
	Components   map[string]string `json:"components"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	components := map[string]string{
		"classifier": "ok",
		"llm":        "not configured",
		"audit":      "disabled",
	}
	if h.llmEnabled {
		components["llm"] = "ok"
	}
	if h.auditEnabled {
		components["audit"] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !h.ready {
		components["classifier"] = "not loaded"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthStatus{
		Status:       status,
		Version:      h.version,
		EmbeddingDim: h.embeddingDim,
		Components:   components,
	})
}

// Ready handles GET /ready. Artifacts load before the listener binds, so a
// running server with a classifier is ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "classifier not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
