// internal/relay/protocol.go
package relay

import (
	"pos-printer/internal/model"
)

// Relay endpoint paths, relative to the relay base URL
const (
	PrintPath  = "/api/v1/relay/print"
	ScanPath   = "/api/v1/relay/scan"
	HealthPath = "/health"
)

// PrintRequest asks the relay to write Payload verbatim to Address:Port.
// Payload travels base64 encoded in JSON.
type PrintRequest struct {
	Address string `json:"address" binding:"required"`
	Port    int    `json:"port"`
	Payload []byte `json:"payload" binding:"required"`
	JobID   string `json:"job_id,omitempty"`
}

// PrintResponse reports the outcome of a relayed write
type PrintResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	BytesWritten int    `json:"bytes_written"`
	JobID        string `json:"job_id,omitempty"`
}

// ScanRequest narrows a relay scan; empty fields use the relay defaults
type ScanRequest struct {
	Subnets   []string `json:"subnets,omitempty"`
	Ports     []int    `json:"ports,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// ScanResponse lists printers that accepted a connection
type ScanResponse struct {
	Success  bool                      `json:"success"`
	Error    string                    `json:"error,omitempty"`
	Printers []model.DiscoveredPrinter `json:"printers"`
}
