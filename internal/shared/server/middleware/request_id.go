package middleware

import (
	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/ids"
)

const (
	requestIDKey    = "requestId"
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 64
)

// RequestID propagates a caller-supplied X-Request-Id or mints a ULID.
// Oversized or non-printable inbound ids are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !acceptableRequestID(id) {
			id = ids.New()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id stored by RequestID, if any.
func RequestIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}

func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if ch < 0x21 || ch > 0x7e {
			return false
		}
	}
	return true
}
