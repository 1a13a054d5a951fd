package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/metrics"
)

// Metrics records request count and latency by matched route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
