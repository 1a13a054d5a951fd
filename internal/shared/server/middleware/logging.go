package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log.
const (
	DocumentIDKey       = "documentId"
	SignatureIDKey      = "signatureId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"document_id":       c.GetString(DocumentIDKey),
			"signature_id":      c.GetString(SignatureIDKey),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		}
		if internal := c.GetString("internalError"); internal != "" {
			fields["error"] = internal
		}
		telemetry.Info("request.complete", fields)
	}
}
