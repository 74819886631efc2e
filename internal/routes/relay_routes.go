// internal/routes/relay_routes.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/config"
	"pos-printer/internal/middleware"
	"pos-printer/internal/relay"
	"pos-printer/internal/utils"
)

// RelayRouter wires the relay endpoints. The relay is always rate limited:
// it opens sockets on behalf of its callers.
type RelayRouter struct {
	config  *config.Config
	logger  *zap.Logger
	server  *relay.Server
	limiter *middleware.ClientRateLimiter
	started time.Time
}

// NewRelayRouter creates the relay router
func NewRelayRouter(config *config.Config, logger *zap.Logger, server *relay.Server) *RelayRouter {
	return &RelayRouter{
		config:  config,
		logger:  logger,
		server:  server,
		started: time.Now(),
	}
}

// SetupRouter creates and configures the relay's Gin engine
func (r *RelayRouter) SetupRouter() *gin.Engine {
	setMode(r.config)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(utils.NewServiceLogger(r.logger, "relay-http"), relay.HealthPath))

	router.GET(relay.HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "relay",
			"version": r.config.App.Version,
			"uptime":  time.Since(r.started).Round(time.Second).String(),
		})
	})

	r.limiter = newLimiter(&r.config.Security, r.logger)
	api := router.Group("")
	api.Use(r.limiter.Middleware())
	r.server.RegisterRoutes(api)

	return router
}

// Close stops the rate limiter
func (r *RelayRouter) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}
