// internal/protocol/connection.go
package protocol

import "time"

// USBConfig represents USB host configuration
type USBConfig struct {
	// Timeout bounds a single bulk transfer; zero means no limit
	Timeout    time.Duration `json:"timeout"`
	AutoDetach bool          `json:"auto_detach"`
}

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// BLEConfig represents Bluetooth adapter configuration
type BLEConfig struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
}
