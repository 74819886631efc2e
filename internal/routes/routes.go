// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/config"
	"pos-printer/internal/handler"
	"pos-printer/internal/middleware"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	printerService   *service.PrinterService
	discoveryService *service.DiscoveryService
	operationService *service.OperationService
	eventBus         *handler.EventBus
	relay            handler.Pinger
	limiter          *middleware.ClientRateLimiter
}

// NewRouter creates a new router instance. relay may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	printerService *service.PrinterService,
	discoveryService *service.DiscoveryService,
	operationService *service.OperationService,
	eventBus *handler.EventBus,
	relay handler.Pinger,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		printerService:   printerService,
		discoveryService: discoveryService,
		operationService: operationService,
		eventBus:         eventBus,
		relay:            relay,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	setMode(r.config)

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Close releases background resources held by middleware
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(utils.NewServiceLogger(r.logger, "http-server"), "/health", "/ready", "/live"))
	router.Use(middleware.CORSMiddleware(&r.config.Security))

	if r.config.Security.RateLimitEnabled {
		r.limiter = newLimiter(&r.config.Security, r.logger)
		router.Use(r.limiter.Middleware())
	}

	r.logger.Info("Middleware configured", zap.Bool("rate_limit", r.config.Security.RateLimitEnabled))
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.printerService, r.relay, r.config, r.logger)
	sessionHandler := handler.NewSessionHandler(r.printerService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)
	operationHandler := handler.NewOperationHandler(r.operationService, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.printerService, r.eventBus, r.config.Security.AllowedOrigins, r.logger)

	healthHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	sessionHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)
	operationHandler.RegisterRoutes(apiV1)

	wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}

func setMode(cfg *config.Config) {
	if cfg.IsDebugEnabled() && !cfg.IsProduction() {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

func newLimiter(cfg *config.SecurityConfig, logger *zap.Logger) *middleware.ClientRateLimiter {
	return middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitRequests,
		BurstSize:         cfg.RateLimitBurst,
	}, utils.NewSecurityLogger(logger))
}
