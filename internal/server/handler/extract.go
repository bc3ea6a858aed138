package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agrolog/apollo/internal/metrics"
	"github.com/agrolog/apollo/internal/model"
)

// Extractor delegates report parsing and transcription to the LLM.
type Extractor interface {
	ExtractTable(ctx context.Context, message string) (model.Table, error)
	ExtractTableFromImage(ctx context.Context, photo []byte, declared string) (model.Table, error)
	Transcribe(ctx context.Context, audio []byte, ext string) (string, error)
}

// ExtractHandler serves the delegation routes. A nil extractor answers 503.
type ExtractHandler struct {
	extractor Extractor
	metrics   *metrics.Metrics
}

// NewExtractHandler creates an extraction handler.
func NewExtractHandler(ex Extractor, m *metrics.Metrics) *ExtractHandler {
	return &ExtractHandler{extractor: ex, metrics: m}
}

// PhotoRequest is the body of /process_photo.
type PhotoRequest struct {
	Photo string `json:"photo" binding:"required"`
	Type  string `json:"type"`
}

// AudioRequest is the body of /transcribe_audio.
type AudioRequest struct {
	Audio string `json:"audio" binding:"required"`
	Type  string `json:"type"`
}

// TranscriptionResponse is the body of a successful transcription.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ProcessMessage handles POST /process_message.
func (h *ExtractHandler) ProcessMessage(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "body must be {\"message\": <string>}")
		return
	}

	table, err := h.extractor.ExtractTable(c.Request.Context(), *req.Message)
	h.finish(c, "process_message", err, table)
}

// ProcessPhoto handles POST /process_photo.
func (h *ExtractHandler) ProcessPhoto(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req PhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "body must be {\"photo\": <base64>, \"type\": <string>}")
		return
	}
	photo, err := decodeBase64(req.Photo)
	if err != nil {
		HandleInvalidRequest(c, "photo is not valid base64")
		return
	}

	table, err := h.extractor.ExtractTableFromImage(c.Request.Context(), photo, req.Type)
	h.finish(c, "process_photo", err, table)
}

// TranscribeAudio handles POST /transcribe_audio.
func (h *ExtractHandler) TranscribeAudio(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req AudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "body must be {\"audio\": <base64>, \"type\": <string>}")
		return
	}
	audio, err := decodeBase64(req.Audio)
	if err != nil {
		HandleInvalidRequest(c, "audio is not valid base64")
		return
	}

	text, err := h.extractor.Transcribe(c.Request.Context(), audio, req.Type)
	h.finish(c, "transcribe_audio", err, TranscriptionResponse{Text: text})
}

func (h *ExtractHandler) enabled(c *gin.Context) bool {
	if h.extractor == nil {
		HandleError(c, ErrLLMDisabled)
		return false
	}
	return true
}

func (h *ExtractHandler) finish(c *gin.Context, op string, err error, body any) {
	h.metrics.ObserveLLM(op, err)
	if err != nil {
		slog.Error("llm delegation failed", "operation", op, "request_id", requestID(c), "error", err)
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// decodeBase64 accepts standard or URL-safe base64, padded or not, with an
// optional data URL prefix.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
