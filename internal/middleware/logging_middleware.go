// internal/middleware/logging_middleware.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-printer/internal/utils"
)

// LoggingMiddleware logs every request once it has been served. Requests
// under a quiet prefix (probes, websocket upgrades) are only logged when
// they fail.
func LoggingMiddleware(logger *utils.ServiceLogger, quietPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		if status < 400 && hasPrefix(path, quietPrefixes) {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.Int("response_bytes", c.Writer.Size()),
		}
		if sessionID := c.Param("id"); sessionID != "" {
			fields = append(fields, zap.String("session_id", sessionID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger.LogAPIRequest(
			c.Request.Method,
			path,
			c.Request.UserAgent(),
			c.ClientIP(),
			status,
			time.Since(startTime),
			fields...,
		)
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
