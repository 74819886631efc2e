// pkg/driver/types.go
package driver

import (
	"time"

	"pos-printer/internal/model"
)

// DeviceInfo describes the device behind a transport
type DeviceInfo struct {
	Connection   model.ConnectionKind `json:"connection"`
	Name         string               `json:"name,omitempty"`
	Manufacturer string               `json:"manufacturer,omitempty"`
	Model        string               `json:"model,omitempty"`
	SerialNumber string               `json:"serial_number,omitempty"`
	VendorID     string               `json:"vendor_id,omitempty"`
	ProductID    string               `json:"product_id,omitempty"`
	Address      string               `json:"address,omitempty"`
	Port         int                  `json:"port,omitempty"`
	Connected    bool                 `json:"connected"`
}

// Result is the outcome of a printer operation. Failures carry a stable
// code from the error taxonomy and a readable message.
type Result struct {
	Success      bool      `json:"success"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	BytesSent    int       `json:"bytes_sent,omitempty"`
	Duration     string    `json:"duration"`
	Timestamp    time.Time `json:"timestamp"`
}

// OK builds a successful result
func OK(bytesSent int, duration time.Duration) *Result {
	return &Result{
		Success:   true,
		BytesSent: bytesSent,
		Duration:  duration.String(),
		Timestamp: time.Now(),
	}
}

// Failed builds a failed result from any error
func Failed(err error, duration time.Duration) *Result {
	return &Result{
		Success:      false,
		ErrorCode:    string(KindOf(err)),
		ErrorMessage: err.Error(),
		Duration:     duration.String(),
		Timestamp:    time.Now(),
	}
}
