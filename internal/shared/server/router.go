package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "esign-backend/internal/auth"
	"esign-backend/internal/documents"
	"esign-backend/internal/publiclink"
	"esign-backend/internal/services/health"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/signatures"
	"esign-backend/internal/users"
)

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are
// skipped.
type RouterDeps struct {
	Config           config.Config
	Health           *health.Service
	DocumentHandler  *documents.Handler
	SignatureHandler *signatures.Handler
	PublicLink       *publiclink.Handler
	UserHandler      *users.Handler
	GoogleAuth       *googleauth.GoogleService
	DevTokens        *googleauth.DevTokens
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	cfg := deps.Config

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Metrics(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	healthHandler := func(c *gin.Context) {
		status := health.Status{OK: true, Database: "memory"}
		if deps.Health != nil {
			status = deps.Health.Check(c.Request.Context())
		}
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.DevTokens != nil && cfg.IsDevLike() {
		deps.DevTokens.RegisterRoutes(api.Group("/dev"))
	}

	if deps.PublicLink != nil {
		public := api.Group("", middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: cfg.PublicRateLimitRPS, Burst: cfg.PublicRateBurst},
			},
		}))
		deps.PublicLink.RegisterPublicRoutes(public)
	}

	protected := api.Group("", middleware.Auth())
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(protected)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(protected)
	}
	if deps.SignatureHandler != nil {
		deps.SignatureHandler.RegisterRoutes(protected)
	}
	if deps.PublicLink != nil {
		deps.PublicLink.RegisterRoutes(protected)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found", "code": "route_not_found"})
	})

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
