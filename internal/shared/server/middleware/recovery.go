package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into the standard 500 body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Fail(c, fmt.Errorf("panic: %v", rec))
		}()
		c.Next()
	}
}
