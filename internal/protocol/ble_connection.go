// internal/protocol/ble_connection.go
package protocol

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"pos-printer/internal/driver"
	pkgdriver "pos-printer/pkg/driver"
)

const defaultBLEScanTimeout = 10 * time.Second

// BLEHost scans for printers on the default Bluetooth adapter. The first
// advertisement matching the request is selected.
type BLEHost struct {
	config  BLEConfig
	adapter *bluetooth.Adapter
	logger  *zap.Logger

	enableOnce sync.Once
	enableErr  error
	scanMu     sync.Mutex
}

// NewBLEHost creates a BLE host on the system default adapter
func NewBLEHost(config BLEConfig, logger *zap.Logger) *BLEHost {
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = defaultBLEScanTimeout
	}
	return &BLEHost{
		config:  config,
		adapter: bluetooth.DefaultAdapter,
		logger:  logger.With(zap.String("protocol", "ble")),
	}
}

func (h *BLEHost) enable() error {
	h.enableOnce.Do(func() {
		if err := h.adapter.Enable(); err != nil {
			h.enableErr = fmt.Errorf("%w: bluetooth adapter: %v", pkgdriver.ErrPermissionDenied, err)
		}
	})
	return h.enableErr
}

// RequestDevice scans until a matching peripheral advertises or the scan
// timeout elapses
func (h *BLEHost) RequestDevice(ctx context.Context, req driver.BLERequest) (driver.BLEPeripheral, error) {
	if err := h.enable(); err != nil {
		return nil, err
	}

	uuids := make([]bluetooth.UUID, 0, len(req.ServiceUUIDs))
	for _, s := range req.ServiceUUIDs {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("invalid service UUID %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}

	// one scan at a time per adapter
	h.scanMu.Lock()
	defer h.scanMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, h.config.ScanTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.adapter.StopScan()
		case <-stopped:
		}
	}()

	var found *bluetooth.ScanResult
	err := h.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if found != nil || !matchesRequest(result, req, uuids) {
			return
		}
		r := result
		found = &r
		a.StopScan()
	})
	close(stopped)

	if found == nil {
		if err != nil {
			return nil, fmt.Errorf("bluetooth scan: %w", err)
		}
		h.logger.Info("No BLE printer found before scan timeout", zap.Duration("timeout", h.config.ScanTimeout))
		return nil, pkgdriver.ErrDeviceNotSelected
	}

	h.logger.Info("BLE printer selected",
		zap.String("name", found.LocalName()),
		zap.String("address", found.Address.String()),
		zap.Int16("rssi", found.RSSI),
	)
	return &blePeripheral{adapter: h.adapter, result: *found}, nil
}

func matchesRequest(result bluetooth.ScanResult, req driver.BLERequest, uuids []bluetooth.UUID) bool {
	name := result.LocalName()
	if req.Device != "" {
		return strings.EqualFold(result.Address.String(), req.Device) || name == req.Device
	}
	for _, u := range uuids {
		if result.HasServiceUUID(u) {
			return true
		}
	}
	for _, prefix := range req.NamePrefixes {
		if name != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

type blePeripheral struct {
	adapter *bluetooth.Adapter
	result  bluetooth.ScanResult
}

func (p *blePeripheral) Name() string    { return p.result.LocalName() }
func (p *blePeripheral) Address() string { return p.result.Address.String() }

func (p *blePeripheral) Connect(ctx context.Context) (driver.GATTServer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	device, err := p.adapter.Connect(p.result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("gatt connect %s: %w", p.result.Address.String(), err)
	}
	return &gattServer{
		discover:   device.DiscoverServices,
		disconnect: device.Disconnect,
	}, nil
}

// gattServer holds method values so it does not depend on whether the
// library hands out devices by value or by pointer
type gattServer struct {
	discover   func(uuids []bluetooth.UUID) ([]bluetooth.DeviceService, error)
	disconnect func() error
}

func (s *gattServer) PrimaryService(ctx context.Context, uuid string) (driver.GATTService, error) {
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", uuid, err)
	}
	services, err := s.discover([]bluetooth.UUID{u})
	if err != nil || len(services) == 0 {
		return nil, fmt.Errorf("%w: %s", pkgdriver.ErrServiceNotFound, uuid)
	}
	svc := services[0]
	return &gattService{discover: svc.DiscoverCharacteristics}, nil
}

func (s *gattServer) Disconnect() error {
	return s.disconnect()
}

type gattService struct {
	discover func(uuids []bluetooth.UUID) ([]bluetooth.DeviceCharacteristic, error)
}

func (s *gattService) Characteristic(ctx context.Context, uuid string) (driver.GATTCharacteristic, error) {
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", uuid, err)
	}
	chars, err := s.discover([]bluetooth.UUID{u})
	if err != nil || len(chars) == 0 {
		return nil, fmt.Errorf("%w: characteristic %s", pkgdriver.ErrServiceNotFound, uuid)
	}
	c := chars[0]
	return &gattCharacteristic{write: c.WriteWithoutResponse}, nil
}

type gattCharacteristic struct {
	write func(p []byte) (int, error)
}

func (c *gattCharacteristic) WriteWithoutResponse(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := c.write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short characteristic write: %d of %d bytes", n, len(p))
	}
	return nil
}
