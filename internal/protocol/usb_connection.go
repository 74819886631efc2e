// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"pos-printer/internal/driver"
	"pos-printer/internal/model"
	pkgdriver "pos-printer/pkg/driver"
)

// USBHost is the libusb backed device chooser. Without an interactive
// prompt it selects the first attached device passing the filters.
type USBHost struct {
	config USBConfig
	logger *zap.Logger

	mu  sync.Mutex
	ctx *gousb.Context
}

// NewUSBHost creates a USB host; the libusb context is opened lazily
func NewUSBHost(config USBConfig, logger *zap.Logger) *USBHost {
	return &USBHost{
		config: config,
		logger: logger.With(zap.String("protocol", "usb")),
	}
}

func (h *USBHost) context() *gousb.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		h.ctx = gousb.NewContext()
	}
	return h.ctx
}

// Close releases the libusb context
func (h *USBHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return nil
	}
	err := h.ctx.Close()
	h.ctx = nil
	return err
}

// RequestDevice opens the first device matching any filter
func (h *USBHost) RequestDevice(ctx context.Context, filters []driver.USBFilter) (driver.USBDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chosen := false
	devices, err := h.context().OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if chosen {
			return false
		}
		for _, f := range filters {
			if f.Matches(uint16(desc.Vendor), uint16(desc.Product)) {
				chosen = true
				return true
			}
		}
		return false
	})

	if len(devices) == 0 {
		if err != nil {
			return nil, mapUSBError(err)
		}
		return nil, pkgdriver.ErrDeviceNotSelected
	}
	for _, extra := range devices[1:] {
		extra.Close()
	}

	dev := devices[0]
	if h.config.AutoDetach {
		if err := dev.SetAutoDetach(true); err != nil {
			h.logger.Warn("Failed to enable kernel driver auto-detach", zap.Error(err))
		}
	}

	h.logger.Info("USB device selected",
		zap.String("vendor_id", driver.FormatUSBID(uint16(dev.Desc.Vendor))),
		zap.String("product_id", driver.FormatUSBID(uint16(dev.Desc.Product))),
		zap.Int("bus", dev.Desc.Bus),
		zap.Int("address", dev.Desc.Address),
	)
	return &usbDevice{dev: dev, timeout: h.config.Timeout, logger: h.logger}, nil
}

// usbDevice adapts an opened gousb device to driver.USBDevice
type usbDevice struct {
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	out     *gousb.OutEndpoint
	timeout time.Duration
	logger  *zap.Logger
}

func (u *usbDevice) Info() pkgdriver.DeviceInfo {
	info := pkgdriver.DeviceInfo{
		Connection: model.ConnectionUSB,
		VendorID:   driver.FormatUSBID(uint16(u.dev.Desc.Vendor)),
		ProductID:  driver.FormatUSBID(uint16(u.dev.Desc.Product)),
	}
	if s, err := u.dev.Manufacturer(); err == nil {
		info.Manufacturer = s
	}
	if s, err := u.dev.Product(); err == nil {
		info.Name = s
		info.Model = s
	}
	if s, err := u.dev.SerialNumber(); err == nil {
		info.SerialNumber = s
	}
	return info
}

func (u *usbDevice) ActiveConfiguration() int {
	n, err := u.dev.ActiveConfigNum()
	if err != nil {
		return 0
	}
	return n
}

func (u *usbDevice) Configurations() []int {
	nums := make([]int, 0, len(u.dev.Desc.Configs))
	for n := range u.dev.Desc.Configs {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (u *usbDevice) SelectConfiguration(n int) error {
	cfg, err := u.dev.Config(n)
	if err != nil {
		return mapUSBError(err)
	}
	u.cfg = cfg
	return nil
}

// ClaimInterface claims interface n and locates its bulk OUT endpoint
func (u *usbDevice) ClaimInterface(n int) error {
	if u.cfg == nil {
		return errors.New("no configuration selected")
	}
	intf, err := u.cfg.Interface(n, 0)
	if err != nil {
		return mapUSBError(err)
	}

	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction != gousb.EndpointDirectionOut || ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		out, err := intf.OutEndpoint(ep.Number)
		if err != nil {
			intf.Close()
			return mapUSBError(err)
		}
		u.intf = intf
		u.out = out
		return nil
	}

	intf.Close()
	return fmt.Errorf("interface %d has no bulk OUT endpoint: %w", n, pkgdriver.ErrServiceNotFound)
}

func (u *usbDevice) ReleaseInterface(n int) error {
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
		u.out = nil
	}
	if u.cfg == nil {
		return nil
	}
	err := u.cfg.Close()
	u.cfg = nil
	return mapUSBError(err)
}

func (u *usbDevice) TransferOut(ctx context.Context, data []byte) (int, error) {
	if u.out == nil {
		return 0, pkgdriver.ErrNotConnected
	}
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	n, err := u.out.WriteContext(ctx, data)
	return n, mapUSBError(err)
}

func (u *usbDevice) Close() error {
	return mapUSBError(u.dev.Close())
}

// mapUSBError translates libusb failures into driver sentinels
func mapUSBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorAccess):
		return fmt.Errorf("%w: %v", pkgdriver.ErrPermissionDenied, err)
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound):
		return fmt.Errorf("%w: %v", pkgdriver.ErrDeviceGone, err)
	}
	return err
}
