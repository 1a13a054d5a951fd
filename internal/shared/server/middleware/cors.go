package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-Id"
	corsExposeHeaders = "X-Request-Id, Content-Disposition, X-Applied, X-Document-Id"
)

// CORS echoes allowed origins with credentials enabled. A "*" entry admits
// any origin. Preflights short-circuit with 204 whether or not the origin
// matched, so browsers see the missing headers and block the call.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false
	for _, o := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		switch trimmed {
		case "":
		case "*":
			anyOrigin = true
		default:
			origins[trimmed] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		if anyOrigin {
			return true
		}
		_, ok := origins[origin]
		return ok
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if origin := c.GetHeader("Origin"); origin != "" && allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
