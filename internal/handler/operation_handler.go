// internal/handler/operation_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/repository"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// OperationHandler exposes the operation log
type OperationHandler struct {
	operationService *service.OperationService
	logger           *utils.ServiceLogger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(operationService *service.OperationService, logger *zap.Logger) *OperationHandler {
	return &OperationHandler{
		operationService: operationService,
		logger:           utils.NewServiceLogger(logger, "operation-handler"),
	}
}

// RegisterRoutes registers operation routes
func (h *OperationHandler) RegisterRoutes(router *gin.RouterGroup) {
	operations := router.Group("/operations")
	{
		operations.GET("/stats", h.GetOperationStats)
		operations.GET("/:operation_id", h.GetOperation)
	}

	router.GET("/sessions/:id/operations", h.ListSessionOperations)
}

// ListSessionOperations lists the latest operations of a session
// @Summary List session operations
// @Description Newest first; records outlive the session until they expire
// @Tags Operations
// @Produce json
// @Param id path string true "Session ID"
// @Param limit query int false "Maximum records (1-100)" default(50)
// @Success 200 {object} utils.APIResponse{data=object{operations=[]model.OperationRecord,count=int}}
// @Router /sessions/{id}/operations [get]
func (h *OperationHandler) ListSessionOperations(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	operations, err := h.operationService.ListSessionOperations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("Failed to list session operations", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list operations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session operations retrieved successfully", gin.H{
		"operations": operations,
		"count":      len(operations),
	})
}

// GetOperation returns one operation record
// @Summary Get operation
// @Tags Operations
// @Produce json
// @Param operation_id path string true "Operation ID"
// @Success 200 {object} utils.APIResponse{data=model.OperationRecord}
// @Failure 400 {object} utils.APIResponse "Invalid operation ID"
// @Failure 404 {object} utils.APIResponse "Operation not found"
// @Router /operations/{operation_id} [get]
func (h *OperationHandler) GetOperation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("operation_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation ID", err)
		return
	}

	operation, err := h.operationService.GetOperation(c.Request.Context(), id)
	if errors.Is(err, repository.ErrOperationNotFound) {
		utils.ErrorResponse(c, http.StatusNotFound, "Operation not found", err)
		return
	}
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get operation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation retrieved successfully", operation)
}

// GetOperationStats aggregates the operation log
// @Summary Operation statistics
// @Tags Operations
// @Produce json
// @Param session_id query string false "Session ID"
// @Param start_date query string false "RFC3339 lower bound"
// @Param end_date query string false "RFC3339 upper bound"
// @Success 200 {object} utils.APIResponse{data=repository.OperationStats}
// @Failure 400 {object} utils.APIResponse "Invalid date"
// @Router /operations/stats [get]
func (h *OperationHandler) GetOperationStats(c *gin.Context) {
	filter := &repository.OperationStatsFilter{SessionID: c.Query("session_id")}

	validationErrors := make(map[string]string)
	if startDate := c.Query("start_date"); startDate != "" {
		if date, err := time.Parse(time.RFC3339, startDate); err == nil {
			filter.StartDate = &date
		} else {
			validationErrors["start_date"] = "must be an RFC3339 timestamp"
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if date, err := time.Parse(time.RFC3339, endDate); err == nil {
			filter.EndDate = &date
		} else {
			validationErrors["end_date"] = "must be an RFC3339 timestamp"
		}
	}
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	stats, err := h.operationService.GetStats(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to get operation stats", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get operation stats", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation statistics retrieved successfully", stats)
}
