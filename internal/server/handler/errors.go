package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrolog/apollo/internal/httpclient"
	"github.com/agrolog/apollo/internal/llm"
	"github.com/agrolog/apollo/internal/model"
)

// ErrLLMDisabled is returned by the extraction routes when no API key is configured.
var ErrLLMDisabled = errors.New("llm delegation is not configured")

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps classification and delegation errors to HTTP error responses.
// Classification failures are never retried or replaced with a default.
func MapError(err error) ErrorResponse {
	var apiErr *httpclient.APIError
	switch {
	case errors.Is(err, model.ErrDimensionMismatch):
		return ErrorResponse{http.StatusInternalServerError, "DIMENSION_MISMATCH", "embedding and classifier dimensions disagree"}
	case errors.Is(err, model.ErrTokenization):
		return ErrorResponse{http.StatusInternalServerError, "TOKENIZATION_ERROR", "tokenization failed"}
	case errors.Is(err, model.ErrInference):
		return ErrorResponse{http.StatusInternalServerError, "INFERENCE_ERROR", "inference failed"}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse{http.StatusGatewayTimeout, "TIMEOUT", "request timed out"}
	case errors.Is(err, context.Canceled):
		return ErrorResponse{http.StatusServiceUnavailable, "CANCELLED", "request cancelled"}
	case errors.Is(err, ErrLLMDisabled):
		return ErrorResponse{http.StatusServiceUnavailable, "LLM_DISABLED", "llm delegation is not configured"}
	case errors.Is(err, llm.ErrUnsupportedMedia):
		return ErrorResponse{http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA", err.Error()}
	case errors.Is(err, llm.ErrBadAnswer):
		return ErrorResponse{http.StatusBadGateway, "UPSTREAM_ERROR", "model returned a malformed answer"}
	case errors.As(err, &apiErr):
		return ErrorResponse{http.StatusBadGateway, "UPSTREAM_ERROR", "upstream returned " + http.StatusText(apiErr.StatusCode)}
	default:
		return ErrorResponse{http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}
	}
}

// HandleError maps err and sends the error envelope.
func HandleError(c *gin.Context, err error) {
	errResp := MapError(err)
	_ = c.Error(err)
	respondError(c, errResp.StatusCode, errResp.Code, errResp.Message)
}

// HandleInvalidRequest sends a 422 for a body that failed binding or decoding.
func HandleInvalidRequest(c *gin.Context, message string) {
	respondError(c, http.StatusUnprocessableEntity, "INVALID_REQUEST", message)
}
