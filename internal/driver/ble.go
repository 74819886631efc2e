// internal/driver/ble.go
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

const (
	// MaxBLEChunk is the largest single characteristic write
	MaxBLEChunk = 512
	// DefaultBLEChunkDelay paces writes; write-without-response has no flow control
	DefaultBLEChunkDelay = 50 * time.Millisecond
)

// BLEProfile pairs a printer GATT service with its write characteristic
type BLEProfile struct {
	Service        string `mapstructure:"service" json:"service"`
	Characteristic string `mapstructure:"characteristic" json:"characteristic"`
}

// DefaultBLEProfiles are tried in order when resolving the printer service
var DefaultBLEProfiles = []BLEProfile{
	{Service: "000018f0-0000-1000-8000-00805f9b34fb", Characteristic: "00002af1-0000-1000-8000-00805f9b34fb"},
	{Service: "e7810a71-73ae-499d-8c15-faa9aef0c3f2", Characteristic: "bef8d6c9-9c21-4c9e-b632-bd58c1009f9f"},
}

// DefaultBLENamePrefixes match advertised printer names
var DefaultBLENamePrefixes = []string{"TM-", "EPSON", "Star", "TSP"}

// BLERequest describes which peripherals the chooser may offer
type BLERequest struct {
	ServiceUUIDs []string
	NamePrefixes []string
	// Device narrows the choice to one address or name
	Device string
}

// BLEHost presents the peripheral chooser. Returning driver.ErrDeviceNotSelected
// signals a dismissed chooser.
type BLEHost interface {
	RequestDevice(ctx context.Context, req BLERequest) (BLEPeripheral, error)
}

type BLEPeripheral interface {
	Name() string
	Address() string
	Connect(ctx context.Context) (GATTServer, error)
}

// GATTServer is a connected peripheral. PrimaryService returns
// driver.ErrServiceNotFound when the UUID is absent.
type GATTServer interface {
	PrimaryService(ctx context.Context, uuid string) (GATTService, error)
	Disconnect() error
}

type GATTService interface {
	Characteristic(ctx context.Context, uuid string) (GATTCharacteristic, error)
}

type GATTCharacteristic interface {
	WriteWithoutResponse(ctx context.Context, p []byte) error
}

// SleepFunc pauses between chunks
type SleepFunc func(ctx context.Context, d time.Duration) error

// BLEOptions tunes a BLE transport; zero values take defaults
type BLEOptions struct {
	Profiles     []BLEProfile
	NamePrefixes []string
	ChunkSize    int
	ChunkDelay   time.Duration
	Device       string
	Sleep        SleepFunc
}

// BLEDriver writes to a printer characteristic in paced chunks
type BLEDriver struct {
	host   BLEHost
	opts   BLEOptions
	logger *zap.Logger

	mu     sync.Mutex
	server GATTServer
	char   GATTCharacteristic
	info   driver.DeviceInfo
}

// NewBLEDriver creates a BLE transport
func NewBLEDriver(host BLEHost, opts BLEOptions, logger *zap.Logger) (*BLEDriver, error) {
	if host == nil {
		return nil, driver.NewError(driver.KindConfigurationError, "ble", "bluetooth adapter not available", nil)
	}
	if len(opts.Profiles) == 0 {
		opts.Profiles = DefaultBLEProfiles
	}
	if len(opts.NamePrefixes) == 0 {
		opts.NamePrefixes = DefaultBLENamePrefixes
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > MaxBLEChunk {
		opts.ChunkSize = MaxBLEChunk
	}
	if opts.ChunkDelay <= 0 {
		opts.ChunkDelay = DefaultBLEChunkDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &BLEDriver{
		host:   host,
		opts:   opts,
		logger: logger.With(zap.String("transport", "ble")),
		info:   driver.DeviceInfo{Connection: model.ConnectionBluetooth},
	}, nil
}

// Connect selects a peripheral, connects GATT and resolves the write
// characteristic, trying each known service in order
func (d *BLEDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		return nil
	}

	services := make([]string, 0, len(d.opts.Profiles))
	for _, p := range d.opts.Profiles {
		services = append(services, p.Service)
	}

	peripheral, err := d.host.RequestDevice(ctx, BLERequest{
		ServiceUUIDs: services,
		NamePrefixes: d.opts.NamePrefixes,
		Device:       d.opts.Device,
	})
	if err != nil {
		return driver.Wrap("ble connect", driver.KindConnectionLost, err)
	}
	if peripheral == nil {
		return driver.NewError(driver.KindDeviceNotSelected, "ble connect", "", driver.ErrDeviceNotSelected)
	}

	server, err := peripheral.Connect(ctx)
	if err != nil {
		return driver.Wrap("ble gatt connect", driver.KindConnectionLost, err)
	}

	char, profile, err := d.resolve(ctx, server)
	if err != nil {
		server.Disconnect()
		return err
	}

	d.server = server
	d.char = char
	d.info = driver.DeviceInfo{
		Connection: model.ConnectionBluetooth,
		Name:       peripheral.Name(),
		Address:    peripheral.Address(),
		Connected:  true,
	}

	d.logger.Info("BLE printer connected",
		zap.String("name", d.info.Name),
		zap.String("address", d.info.Address),
		zap.String("service", profile.Service),
	)
	return nil
}

func (d *BLEDriver) resolve(ctx context.Context, server GATTServer) (GATTCharacteristic, BLEProfile, error) {
	for _, profile := range d.opts.Profiles {
		svc, err := server.PrimaryService(ctx, profile.Service)
		if errors.Is(err, driver.ErrServiceNotFound) {
			d.logger.Debug("BLE service not present, trying next", zap.String("service", profile.Service))
			continue
		}
		if err != nil {
			return nil, profile, driver.Wrap("ble resolve service", driver.KindConnectionLost, err)
		}

		char, err := svc.Characteristic(ctx, profile.Characteristic)
		if err != nil {
			return nil, profile, driver.Wrap("ble resolve characteristic", driver.KindServiceNotSupported, err)
		}
		return char, profile, nil
	}
	return nil, BLEProfile{}, driver.NewError(driver.KindServiceNotSupported, "ble resolve service",
		"no known printer service on device", driver.ErrServiceNotFound)
}

// Send writes data in chunks of at most ChunkSize bytes, pausing between
// chunks but not after the last one
func (d *BLEDriver) Send(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.char == nil {
		return driver.NewError(driver.KindNotConnected, "ble send", "", driver.ErrNotConnected)
	}

	chunks := Chunk(data, d.opts.ChunkSize)
	for i, chunk := range chunks {
		if err := d.char.WriteWithoutResponse(ctx, chunk); err != nil {
			d.logger.Warn("BLE chunk write failed",
				zap.Int("chunk", i),
				zap.Int("chunks", len(chunks)),
				zap.Error(err),
			)
			return driver.Wrap("ble send", driver.KindWriteFailure, err)
		}
		if i < len(chunks)-1 {
			if err := d.opts.Sleep(ctx, d.opts.ChunkDelay); err != nil {
				return driver.Wrap("ble send", driver.KindWriteFailure, err)
			}
		}
	}

	d.logger.Debug("BLE write completed", zap.Int("bytes", len(data)), zap.Int("chunks", len(chunks)))
	return nil
}

// Disconnect tears down the GATT connection unconditionally
func (d *BLEDriver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server == nil {
		return nil
	}

	err := d.server.Disconnect()
	d.server = nil
	d.char = nil
	d.info.Connected = false

	if err != nil {
		d.logger.Warn("BLE disconnect reported an error", zap.Error(err))
		return driver.Wrap("ble disconnect", driver.KindConnectionLost, err)
	}
	d.logger.Info("BLE printer disconnected")
	return nil
}

func (d *BLEDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server != nil
}

func (d *BLEDriver) DeviceInfo() driver.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// Chunk splits data into consecutive slices of at most size bytes
func Chunk(data []byte, size int) [][]byte {
	if size <= 0 {
		size = MaxBLEChunk
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
