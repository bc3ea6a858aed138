package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrolog/apollo/internal/metrics"
	"github.com/agrolog/apollo/internal/model"
	"github.com/agrolog/apollo/internal/output"
)

// Classifier is the classification engine as seen by the handlers.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
}

// ClassifyHandler serves POST /classify_message.
type ClassifyHandler struct {
	classifier Classifier
	audit      output.Output
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewClassifyHandler creates a classify handler. audit and m may be nil.
func NewClassifyHandler(cls Classifier, audit output.Output, m *metrics.Metrics) *ClassifyHandler {
	return &ClassifyHandler{classifier: cls, audit: audit, metrics: m, now: time.Now}
}

// MessageRequest is the body of /classify_message and /process_message.
// An empty message is valid; a missing one is not.
type MessageRequest struct {
	Message *string `json:"message" binding:"required"`
}

// ClassifyResponse is the body of a successful classification.
type ClassifyResponse struct {
	Probability float64 `json:"probability"`
	Prediction  int     `json:"prediction"`
}

// Classify handles POST /classify_message.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "body must be {\"message\": <string>}")
		return
	}

	start := h.now()
	res, err := h.classifier.Classify(c.Request.Context(), *req.Message)
	h.metrics.ObserveClassification(time.Since(start), res, err)
	if err != nil {
		slog.Error("classification failed", "request_id", requestID(c), "error", err)
		HandleError(c, err)
		return
	}

	if h.audit != nil {
		rec := model.NewRecord(requestID(c), "http", *req.Message, start.UTC(), res)
		if err := h.audit.Write(c.Request.Context(), rec); err != nil {
			slog.Warn("audit write failed", "request_id", requestID(c), "error", err)
		}
	}

	c.JSON(http.StatusOK, ClassifyResponse{Probability: res.Probability, Prediction: res.Prediction})
}
