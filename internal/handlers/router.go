package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/pkg/logger"
)

type RouteRegistrar interface {
	RegisterRoutes(r *gin.RouterGroup, jwtConfig *middleware.JWTConfig)
}

type RouterOptions struct {
	CORSOrigin   string
	QueryTimeout time.Duration
	MaxBodySize  int64
}

// NewRouter mounts every registrar under /api/v1 behind the shared
// middleware chain. health is served at /health.
func NewRouter(log *logger.Logger, jwtConfig *middleware.JWTConfig, opts RouterOptions, health gin.HandlerFunc, registrars ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.CORS(opts.CORSOrigin),
		middleware.MaxBodySize(opts.MaxBodySize),
	)

	if health != nil {
		router.GET("/health", health)
	}

	api := router.Group("/api/v1", middleware.Timeout(opts.QueryTimeout))
	for _, r := range registrars {
		r.RegisterRoutes(api, jwtConfig)
	}

	return router
}
