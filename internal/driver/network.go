// internal/driver/network.go
package driver

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

// Sender delivers a payload to a raw ESC/POS socket. The relay client and
// the direct TCP sender both implement it.
type Sender interface {
	Forward(ctx context.Context, address string, port int, payload []byte) error
}

// NetworkDriver remembers an address/port pair and hands each payload to a
// Sender. It holds no socket of its own.
type NetworkDriver struct {
	sender  Sender
	address string
	port    int
	kind    model.ConnectionKind
	logger  *zap.Logger

	mu        sync.Mutex
	connected bool
}

// NewNetworkDriver creates a network transport for settings
func NewNetworkDriver(sender Sender, settings model.PrinterSettings, logger *zap.Logger) (*NetworkDriver, error) {
	if sender == nil {
		return nil, driver.NewError(driver.KindConfigurationError, "network", "no network sender configured", nil)
	}
	kind := settings.ConnectionKind
	if !kind.IsNetwork() {
		kind = model.ConnectionNetwork
	}
	return &NetworkDriver{
		sender:  sender,
		address: strings.TrimSpace(settings.Address),
		port:    settings.NetworkPort(),
		kind:    kind,
		logger: logger.With(
			zap.String("transport", string(kind)),
			zap.String("address", settings.Address),
		),
	}, nil
}

// Connect only validates that an address is configured
func (d *NetworkDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.address == "" {
		return driver.NewError(driver.KindConfigurationError, "network connect", "printer address is required", nil)
	}
	d.connected = true
	return nil
}

// Send forwards the payload; failures surface here rather than in Connect
func (d *NetworkDriver) Send(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return driver.NewError(driver.KindNotConnected, "network send", "", driver.ErrNotConnected)
	}
	if err := d.sender.Forward(ctx, d.address, d.port, data); err != nil {
		return driver.Wrap("network send", driver.KindWriteFailure, err)
	}

	d.logger.Debug("Network payload forwarded", zap.Int("bytes", len(data)), zap.Int("port", d.port))
	return nil
}

func (d *NetworkDriver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

func (d *NetworkDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *NetworkDriver) DeviceInfo() driver.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return driver.DeviceInfo{
		Connection: d.kind,
		Address:    d.address,
		Port:       d.port,
		Connected:  d.connected,
	}
}
