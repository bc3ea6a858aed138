package handler

import (
	"github.com/gin-gonic/gin"
)

// ErrorInfo represents error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error ErrorInfo `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: ErrorInfo{Code: code, Message: message}})
}

// requestID returns the id set by the RequestID middleware.
func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}
