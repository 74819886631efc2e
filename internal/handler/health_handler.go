// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/config"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	printerService *service.PrinterService
	relay          Pinger
	config         *config.Config
	startTime      time.Time
	logger         *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler. relay is nil when the
// server dials printers directly.
func NewHealthHandler(printerService *service.PrinterService, relay Pinger, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		printerService: printerService,
		relay:          relay,
		config:         config,
		startTime:      time.Now(),
		logger:         utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Service status with open sessions and relay reachability
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	health.Checks["sessions"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"open":  h.printerService.SessionCount(),
			"limit": h.config.Printer.MaxSessions,
		},
	}

	if h.relay != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		// Printing over USB and Bluetooth still works without the relay.
		if err := h.relay.Ping(ctx); err != nil {
			health.Status = "degraded"
			health.Checks["relay"] = CheckResult{Status: "unhealthy", Message: err.Error()}
			h.logger.Warn("Relay health check failed", zap.Error(err))
		} else {
			health.Checks["relay"] = CheckResult{Status: "healthy", Message: "Relay reachable"}
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	limit := h.config.Printer.MaxSessions
	if limit > 0 && h.printerService.SessionCount() >= limit {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "printer session limit reached",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
