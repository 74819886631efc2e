package driver

import (
	"context"
	"sync"

	"pos-printer/pkg/driver"
)

// MockUSBHost returns a canned device or error from the chooser
type MockUSBHost struct {
	Device  *MockUSBDevice
	Err     error
	Filters []USBFilter
	Calls   int
}

func (h *MockUSBHost) RequestDevice(ctx context.Context, filters []USBFilter) (USBDevice, error) {
	h.Calls++
	h.Filters = filters
	if h.Err != nil {
		return nil, h.Err
	}
	if h.Device == nil {
		return nil, nil
	}
	return h.Device, nil
}

// MockUSBDevice records every call made on the handle
type MockUSBDevice struct {
	Active  int
	Configs []int

	OnTransfer func(ctx context.Context, data []byte) (int, error)
	ClaimErr   error
	ReleaseErr error
	CloseErr   error

	mu        sync.Mutex
	Calls     []string
	Selected  int
	Transfers [][]byte
}

func (d *MockUSBDevice) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, call)
}

func (d *MockUSBDevice) Info() driver.DeviceInfo {
	return driver.DeviceInfo{Name: "TM-T20III", Manufacturer: "EPSON", VendorID: "04b8", ProductID: "0e28"}
}

func (d *MockUSBDevice) ActiveConfiguration() int { return d.Active }

func (d *MockUSBDevice) Configurations() []int { return d.Configs }

func (d *MockUSBDevice) SelectConfiguration(n int) error {
	d.record("select")
	d.Selected = n
	return nil
}

func (d *MockUSBDevice) ClaimInterface(n int) error {
	d.record("claim")
	return d.ClaimErr
}

func (d *MockUSBDevice) ReleaseInterface(n int) error {
	d.record("release")
	return d.ReleaseErr
}

func (d *MockUSBDevice) TransferOut(ctx context.Context, data []byte) (int, error) {
	d.record("transfer")
	d.Transfers = append(d.Transfers, append([]byte(nil), data...))
	if d.OnTransfer != nil {
		return d.OnTransfer(ctx, data)
	}
	return len(data), nil
}

func (d *MockUSBDevice) Close() error {
	d.record("close")
	return d.CloseErr
}

// MockBLEHost returns a canned peripheral
type MockBLEHost struct {
	Peripheral *MockPeripheral
	Err        error
	Request    BLERequest
}

func (h *MockBLEHost) RequestDevice(ctx context.Context, req BLERequest) (BLEPeripheral, error) {
	h.Request = req
	if h.Err != nil {
		return nil, h.Err
	}
	if h.Peripheral == nil {
		return nil, nil
	}
	return h.Peripheral, nil
}

type MockPeripheral struct {
	Server     *MockGATTServer
	ConnectErr error
}

func (p *MockPeripheral) Name() string    { return "TM-P20" }
func (p *MockPeripheral) Address() string { return "AA:BB:CC:DD:EE:FF" }

func (p *MockPeripheral) Connect(ctx context.Context) (GATTServer, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	return p.Server, nil
}

// MockGATTServer exposes the services listed in Services
type MockGATTServer struct {
	Services      map[string]*MockGATTService
	Requested     []string
	Disconnects   int
	DisconnectErr error
}

func (s *MockGATTServer) PrimaryService(ctx context.Context, uuid string) (GATTService, error) {
	s.Requested = append(s.Requested, uuid)
	svc, ok := s.Services[uuid]
	if !ok {
		return nil, driver.ErrServiceNotFound
	}
	return svc, nil
}

func (s *MockGATTServer) Disconnect() error {
	s.Disconnects++
	return s.DisconnectErr
}

type MockGATTService struct {
	Characteristics map[string]*MockCharacteristic
}

func (s *MockGATTService) Characteristic(ctx context.Context, uuid string) (GATTCharacteristic, error) {
	c, ok := s.Characteristics[uuid]
	if !ok {
		return nil, driver.ErrServiceNotFound
	}
	return c, nil
}

// MockCharacteristic records writes, optionally failing at FailAt
type MockCharacteristic struct {
	Writes [][]byte
	FailAt int
	Err    error
}

func (c *MockCharacteristic) WriteWithoutResponse(ctx context.Context, p []byte) error {
	if c.Err != nil && len(c.Writes) == c.FailAt {
		return c.Err
	}
	c.Writes = append(c.Writes, append([]byte(nil), p...))
	return nil
}

// MockSender records forwarded payloads
type MockSender struct {
	OnForward func(ctx context.Context, address string, port int, payload []byte) error
	Address   string
	Port      int
	Payloads  [][]byte
}

func (s *MockSender) Forward(ctx context.Context, address string, port int, payload []byte) error {
	s.Address = address
	s.Port = port
	s.Payloads = append(s.Payloads, payload)
	if s.OnForward != nil {
		return s.OnForward(ctx, address, port, payload)
	}
	return nil
}
