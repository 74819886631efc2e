package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-printer/internal/config"
	"pos-printer/pkg/driver"
)

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "printer.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, CloseLogger(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLoggerRejectsLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestResultResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")
	ResultResponse(c, "Receipt printed", driver.OK(42, time.Millisecond), gin.H{"state": "connected"})
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	failed := driver.Failed(driver.NewError(driver.KindBusy, "print", "an operation is already in progress", nil), 0)
	ResultResponse(c, "Print failed", failed, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp = decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Busy", resp.Error.Code)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, StatusForKind(driver.KindWriteFailure))
	assert.Equal(t, http.StatusForbidden, StatusForKind(driver.KindPermissionDenied))
	assert.Equal(t, http.StatusConflict, StatusForKind(driver.KindDeviceNotSelected))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(driver.KindOf(errors.New("x"))))
}
