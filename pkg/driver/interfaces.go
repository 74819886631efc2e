// pkg/driver/interfaces.go
package driver

import (
	"context"
)

// Transport is the uniform contract of a printer transport driver. A driver
// owns exactly one device session; handles never leave the driver.
type Transport interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Send writes an encoded command stream to the device
	Send(ctx context.Context, data []byte) error

	// Device information
	DeviceInfo() DeviceInfo
}

// EventHandler receives printer session events
type EventHandler interface {
	OnStateChanged(sessionID string, from, to string)
	OnOperationCompleted(sessionID string, operation string, result *Result)
	OnDeviceError(sessionID string, err error)
}
