// internal/handler/discovery_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/discovery"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// DiscoveryHandler handles printer discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	scans := router.Group("/discovery")
	{
		scans.GET("/scanners", h.GetScanners)
		scans.GET("/:type", h.Scan)
	}
}

// Scan looks for printers of one kind
// @Summary Scan for printers
// @Description Network scans go through the relay; USB scans list allow-listed devices on this host
// @Tags Discovery
// @Produce json
// @Param type path string true "Scan type" Enums(all, network, usb)
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Scan completed"
// @Failure 400 {object} utils.APIResponse "Unsupported scan type"
// @Failure 503 {object} utils.APIResponse "Scanner unavailable"
// @Router /discovery/{type} [get]
func (h *DiscoveryHandler) Scan(c *gin.Context) {
	scanType := c.Param("type")

	result, err := h.discoveryService.Scan(c.Request.Context(), scanType)
	switch {
	case errors.Is(err, service.ErrUnsupportedScan):
		utils.ErrorResponse(c, http.StatusBadRequest, "Unsupported scan type", err)
		return
	case errors.Is(err, discovery.ErrScannerUnavailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Scanner unavailable", err)
		return
	case err != nil:
		h.logger.Error("Printer scan failed", zap.String("type", scanType), zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadGateway, "Printer scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Printer scan completed", result)
}

// GetScanners lists the scanners that can run
// @Summary List available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scanners=[]string}}
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Available scanners", gin.H{
		"scanners": h.discoveryService.AvailableScanners(),
	})
}
