// internal/handler/session_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// SessionHandler exposes printer sessions over HTTP
type SessionHandler struct {
	printerService *service.PrinterService
	logger         *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(printerService *service.PrinterService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		printerService: printerService,
		logger:         utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)

		session := sessions.Group("/:id")
		{
			session.GET("", h.GetSession)
			session.DELETE("", h.CloseSession)
			session.POST("/print", h.Print)
			session.POST("/drawer", h.OpenCashDrawer)
		}
	}
}

// CreateSession initializes a printer and opens a session for it
// @Summary Open a printer session
// @Description Select and connect a printer with the given settings
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body model.PrinterSettings true "Printer settings"
// @Success 201 {object} utils.APIResponse{data=object{session=service.SessionInfo,result=driver.Result}} "Session opened"
// @Failure 400 {object} utils.APIResponse "Invalid settings"
// @Failure 409 {object} utils.APIResponse "No device selected"
// @Failure 429 {object} utils.APIResponse "Session limit reached"
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var settings model.PrinterSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	info, result, err := h.printerService.CreateSession(c.Request.Context(), settings)
	if errors.Is(err, service.ErrTooManySessions) {
		utils.ErrorResponse(c, http.StatusTooManyRequests, "Too many printer sessions", err)
		return
	}
	if err != nil {
		h.logger.Error("Failed to open printer session", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to open printer session", err)
		return
	}
	if !result.Success {
		utils.ResultResponse(c, "Printer initialization failed", result, nil)
		return
	}

	h.logger.Info("Printer session opened",
		zap.String("session_id", info.ID),
		zap.String("connection", string(info.Settings.ConnectionKind)),
	)
	utils.SuccessResponse(c, http.StatusCreated, "Printer session opened", gin.H{
		"session": info,
		"result":  result,
	})
}

// ListSessions lists open sessions
// @Summary List printer sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{sessions=[]service.SessionInfo,count=int}}
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions := h.printerService.ListSessions()
	utils.SuccessResponse(c, http.StatusOK, "Printer sessions retrieved", gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession reports connection state and device info of a session
// @Summary Get a printer session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=service.SessionInfo}
// @Failure 404 {object} utils.APIResponse "Session not found"
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	info, err := h.printerService.GetSession(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer session not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Printer session retrieved", info)
}

// Print prints a receipt
// @Summary Print a receipt
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body model.ReceiptDocument true "Receipt"
// @Success 200 {object} utils.APIResponse{data=driver.Result}
// @Failure 404 {object} utils.APIResponse "Session not found"
// @Failure 409 {object} utils.APIResponse "Printer busy or not connected"
// @Failure 502 {object} utils.APIResponse "Write failure"
// @Router /sessions/{id}/print [post]
func (h *SessionHandler) Print(c *gin.Context) {
	var doc model.ReceiptDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid receipt", err)
		return
	}

	result, err := h.printerService.Print(c.Request.Context(), c.Param("id"), &doc)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer session not found", err)
		return
	}

	utils.ResultResponse(c, resultMessage(result.Success, "Receipt printed", "Print failed"), result, result)
}

// OpenCashDrawer pulses the cash drawer
// @Summary Open the cash drawer
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=driver.Result}
// @Failure 404 {object} utils.APIResponse "Session not found"
// @Router /sessions/{id}/drawer [post]
func (h *SessionHandler) OpenCashDrawer(c *gin.Context) {
	result, err := h.printerService.OpenCashDrawer(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer session not found", err)
		return
	}

	utils.ResultResponse(c, resultMessage(result.Success, "Cash drawer opened", "Cash drawer failed"), result, result)
}

// CloseSession disconnects the printer. Closing an unknown or already
// closed session succeeds.
// @Summary Close a printer session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} utils.APIResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id := c.Param("id")
	result, err := h.printerService.CloseSession(c.Request.Context(), id)
	if errors.Is(err, service.ErrSessionNotFound) {
		utils.SuccessResponse(c, http.StatusOK, "Printer session already closed", gin.H{"closed": false})
		return
	}
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to close printer session", err)
		return
	}

	// The session is gone either way; a failed disconnect is only reported.
	h.logger.Info("Printer session closed", zap.String("session_id", id), zap.Bool("clean", result.Success))
	utils.SuccessResponse(c, http.StatusOK, "Printer session closed", gin.H{
		"closed": true,
		"result": result,
	})
}

func resultMessage(success bool, ok, failed string) string {
	if success {
		return ok
	}
	return failed
}
