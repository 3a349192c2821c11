package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finparse-backend/internal/documents"
	"finparse-backend/internal/shared/config"
	"finparse-backend/internal/shared/metrics"
	"finparse-backend/internal/shared/server/middleware"
	"finparse-backend/internal/shared/server/respond"
	"finparse-backend/internal/users"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	UserHandler     *users.Handler
	// LocalFilesDir, when non-empty, is served at /files/ so locally
	// stored uploads are fetchable by the extraction pipeline.
	LocalFilesDir string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	if deps.LocalFilesDir != "" {
		r.Static("/files", deps.LocalFilesDir)
	}

	api := r.Group("/api/v1")

	// Registered before the identity middleware is attached so probes and
	// scrapers do not need identity headers.
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{
			"ok":                true,
			"objectStore":       deps.Config.ObjectStoreType,
			"labelerConfigured": deps.Config.LabelerAPIKey != "",
		})
	})
	api.GET("/metrics", metrics.Handler())

	api.Use(middleware.Identity())
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor:     rateLimitGroup,
		Limiter:      middleware.NewRateLimiter(time.Now),
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 10},
			"POLLING": {Rate: 20, Burst: 40},
		},
	}))

	deps.DocumentHandler.RegisterRoutes(api)
	deps.UserHandler.RegisterRoutes(api)

	return r
}

// rateLimitGroup gives the status-polling endpoint a higher allowance since
// clients poll it until the document reaches a terminal state.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/documents/:id" {
		return "POLLING"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":4000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
