// internal/driver/usb.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

// PrinterInterface is the interface number claimed on every USB printer
const PrinterInterface = 0

// Known thermal printer vendors offered in the USB chooser
var DefaultUSBVendors = []uint16{
	0x04B8, // Epson
	0x0519, // Star Micronics
	0x1CBE, // Citizen
	0x1504, // Bixolon
	0x154F, // SNBC
	0x0FE6, // ICS Advent / Xprinter
	0x0416, // Winbond, common on Rongta/Xprinter clones
	0x0DD4, // Custom Engineering
	0x20D1, // Rongta
}

// USBFilter restricts the chooser. A zero ProductID matches any product.
type USBFilter struct {
	VendorID  uint16
	ProductID uint16
}

// Matches reports whether a vendor/product pair passes the filter
func (f USBFilter) Matches(vendor, product uint16) bool {
	return f.VendorID == vendor && (f.ProductID == 0 || f.ProductID == product)
}

// USBHost presents the device chooser and returns the opened selection.
// Returning driver.ErrDeviceNotSelected signals a dismissed chooser.
type USBHost interface {
	RequestDevice(ctx context.Context, filters []USBFilter) (USBDevice, error)
}

// USBDevice is an opened USB device handle
type USBDevice interface {
	Info() driver.DeviceInfo
	ActiveConfiguration() int
	Configurations() []int
	SelectConfiguration(n int) error
	ClaimInterface(n int) error
	ReleaseInterface(n int) error
	TransferOut(ctx context.Context, data []byte) (int, error)
	Close() error
}

// USBDriver writes to a printer over a claimed bulk OUT interface
type USBDriver struct {
	host    USBHost
	filters []USBFilter
	logger  *zap.Logger

	mu     sync.Mutex
	device USBDevice
	info   driver.DeviceInfo
}

// NewUSBDriver creates a USB transport. A non-empty hint of the form
// "VVVV:PPPP" narrows the chooser to one device model.
func NewUSBDriver(host USBHost, vendors []uint16, hint string, logger *zap.Logger) (*USBDriver, error) {
	if host == nil {
		return nil, driver.NewError(driver.KindConfigurationError, "usb", "usb host not available", nil)
	}
	filters, err := usbFilters(vendors, hint)
	if err != nil {
		return nil, driver.NewError(driver.KindConfigurationError, "usb", "invalid device hint", err)
	}
	return &USBDriver{
		host:    host,
		filters: filters,
		logger:  logger.With(zap.String("transport", "usb")),
		info:    driver.DeviceInfo{Connection: model.ConnectionUSB},
	}, nil
}

// Connect prompts for a device, selects its configuration and claims the
// printer interface
func (d *USBDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return nil
	}

	dev, err := d.host.RequestDevice(ctx, d.filters)
	if err != nil {
		return driver.Wrap("usb connect", driver.KindConnectionLost, err)
	}
	if dev == nil {
		return driver.NewError(driver.KindDeviceNotSelected, "usb connect", "", driver.ErrDeviceNotSelected)
	}

	cfg := dev.ActiveConfiguration()
	if cfg == 0 {
		cfgs := dev.Configurations()
		if len(cfgs) == 0 {
			dev.Close()
			return driver.NewError(driver.KindServiceNotSupported, "usb connect", "device exposes no configuration", nil)
		}
		cfg = cfgs[0]
	}
	if err := dev.SelectConfiguration(cfg); err != nil {
		dev.Close()
		return driver.Wrap("usb select configuration", driver.KindConnectionLost, err)
	}
	if err := dev.ClaimInterface(PrinterInterface); err != nil {
		dev.Close()
		return driver.Wrap("usb claim interface", driver.KindPermissionDenied, err)
	}

	d.device = dev
	d.info = dev.Info()
	d.info.Connection = model.ConnectionUSB
	d.info.Connected = true

	d.logger.Info("USB printer connected",
		zap.String("vendor_id", d.info.VendorID),
		zap.String("product_id", d.info.ProductID),
		zap.String("name", d.info.Name),
		zap.Int("configuration", cfg),
	)
	return nil
}

// Send performs a single bulk transfer of the whole buffer
func (d *USBDriver) Send(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return driver.NewError(driver.KindNotConnected, "usb send", "", driver.ErrNotConnected)
	}

	n, err := d.device.TransferOut(ctx, data)
	if err != nil {
		return driver.Wrap("usb send", driver.KindWriteFailure, err)
	}
	if n != len(data) {
		return driver.NewError(driver.KindWriteFailure, "usb send",
			fmt.Sprintf("incomplete write: wrote %d of %d bytes", n, len(data)), nil)
	}

	d.logger.Debug("USB write completed", zap.Int("bytes", n))
	return nil
}

// Disconnect releases the interface and closes the device. Both steps always
// run; their errors are joined.
func (d *USBDriver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	releaseErr := d.device.ReleaseInterface(PrinterInterface)
	closeErr := d.device.Close()

	d.device = nil
	d.info.Connected = false

	if err := errors.Join(releaseErr, closeErr); err != nil {
		d.logger.Warn("USB teardown reported errors", zap.Error(err))
		return driver.Wrap("usb disconnect", driver.KindConnectionLost, err)
	}
	d.logger.Info("USB printer disconnected")
	return nil
}

func (d *USBDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device != nil
}

func (d *USBDriver) DeviceInfo() driver.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

func usbFilters(vendors []uint16, hint string) ([]USBFilter, error) {
	if hint != "" {
		vid, pid, err := ParseUSBID(hint)
		if err != nil {
			return nil, err
		}
		return []USBFilter{{VendorID: vid, ProductID: pid}}, nil
	}
	if len(vendors) == 0 {
		vendors = DefaultUSBVendors
	}
	filters := make([]USBFilter, 0, len(vendors))
	for _, v := range vendors {
		filters = append(filters, USBFilter{VendorID: v})
	}
	return filters, nil
}

// ParseUSBID parses "VVVV:PPPP" (hex, optional 0x prefixes)
func ParseUSBID(s string) (vendor, product uint16, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected VVVV:PPPP, got %q", s)
	}
	v, err := ParseHexID(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor ID: %w", err)
	}
	p, err := ParseHexID(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product ID: %w", err)
	}
	return v, p, nil
}

// ParseHexID parses a 16 bit hex ID (0x1234 or 1234)
func ParseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(id), nil
}

// FormatUSBID renders a vendor or product ID as four hex digits
func FormatUSBID(id uint16) string {
	return fmt.Sprintf("%04x", id)
}
