// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/utils"
	"pos-printer/pkg/driver"
)

// RecoveryMiddleware turns a handler panic into an Internal failure envelope.
// The panic value stays in the log and never reaches the client.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		fields := []zap.Field{
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", GetRequestID(c)),
			zap.Stack("stacktrace"),
		}
		if sessionID := c.Param("id"); sessionID != "" {
			fields = append(fields, zap.String("session_id", sessionID))
		}
		logger.Error("Panic recovered", fields...)

		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		utils.ResultResponse(c, "Internal server error",
			driver.Failed(driver.NewError(driver.KindInternal, "recover", "unexpected server error", nil), 0),
			nil)
		c.Abort()
	})
}
