package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pos-printer/internal/config"
	"pos-printer/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestIDAssigned(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) {
		utils.SuccessResponse(c, http.StatusOK, "ok", nil)
	})

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, id, body.RequestID)
}

func TestRequestIDReused(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "till-7-0042")
	w := serve(engine, req)
	assert.Equal(t, "till-7-0042", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "till-7-0042", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = serve(engine, req)
	assert.NotEqual(t, strings.Repeat("x", 65), w.Header().Get(RequestIDHeader))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	engine := gin.New()
	engine.Use(RecoveryMiddleware(zap.New(core)), RequestIDMiddleware())
	engine.GET("/boom", func(c *gin.Context) {
		panic("encoder exploded")
	})

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Internal", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "encoder exploded")
	assert.NotEmpty(t, body.RequestID)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	limiter := NewClientRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2}, utils.NewSecurityLogger(zap.New(core)))
	defer limiter.Stop()

	engine := gin.New()
	engine.Use(limiter.Middleware())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, 1, logs.FilterMessage("Rate limit violation").Len())

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5000"
	w = serve(engine, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 2, limiter.Stats()["active_clients"])
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewClientRateLimiter(RateLimiterConfig{}, nil)
	defer limiter.Stop()

	stats := limiter.Stats()
	assert.Equal(t, 20, stats["burst_size"])
	assert.Equal(t, float64(10), stats["rate_per_second"])
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewClientRateLimiter(RateLimiterConfig{EntryTTL: time.Millisecond}, nil)
	defer limiter.Stop()

	limiter.getLimiter("192.168.1.20")
	time.Sleep(5 * time.Millisecond)
	limiter.cleanup()
	assert.Equal(t, 0, limiter.Stats()["active_clients"])
}

func TestCORSAllowList(t *testing.T) {
	engine := gin.New()
	engine.Use(CORSMiddleware(&config.SecurityConfig{AllowedOrigins: []string{"http://pos.local"}}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://pos.local")
	w := serve(engine, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://pos.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = serve(engine, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	engine := gin.New()
	engine.Use(LoggingMiddleware(utils.NewServiceLogger(zap.New(core), "http-server")))
	engine.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/live", fields["path"])
}

func TestLoggingMiddlewareQuietPrefixes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	engine := gin.New()
	engine.Use(LoggingMiddleware(utils.NewServiceLogger(zap.New(core), "http-server"), "/health"))
	engine.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/health/ready", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	engine.GET("/api/v1/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Zero(t, logs.Len())

	serve(engine, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)

	serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil))
	require.Equal(t, 2, logs.Len())
	fields := logs.All()[1].ContextMap()
	assert.Equal(t, "abc", fields["session_id"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}
