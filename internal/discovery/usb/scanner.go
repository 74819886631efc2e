// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"pos-printer/internal/driver"
	"pos-printer/internal/model"
)

// USBClassPrinter is the USB printer device/interface class
const USBClassPrinter = 7

// Descriptor is what the scanner needs to know about an attached device
type Descriptor struct {
	VendorID     uint16
	ProductID    uint16
	Bus          int
	Address      int
	PrinterClass bool
	Manufacturer string
	Product      string
	Serial       string
}

// Enumerator lists attached devices accepted by filter
type Enumerator func(ctx context.Context, filter func(vendor, product uint16, printerClass bool) bool) ([]Descriptor, error)

// Scanner lists attached USB printers without claiming them
type Scanner struct {
	logger    *zap.Logger
	db        *DeviceDatabase
	allowed   map[uint16]bool
	config    *Config
	enumerate Enumerator
}

// Config for USB scanner
type Config struct {
	Vendors       []uint16      `json:"vendors"`
	ScanTimeout   time.Duration `json:"scan_timeout"`
	FilterByClass bool          `json:"filter_by_class"`
	EnableDebug   bool          `json:"enable_debug"`
}

// NewScanner creates a new USB scanner backed by libusb
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:   10 * time.Second,
			FilterByClass: true,
		}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 10 * time.Second
	}

	vendors := config.Vendors
	if len(vendors) == 0 {
		vendors = driver.DefaultUSBVendors
	}
	allowed := make(map[uint16]bool, len(vendors))
	for _, v := range vendors {
		allowed[v] = true
	}

	debugLevel := 0
	if config.EnableDebug {
		debugLevel = 3
	}

	s := &Scanner{
		logger:  logger.With(zap.String("scanner", "usb")),
		db:      NewDeviceDatabase(),
		allowed: allowed,
		config:  config,
	}
	s.enumerate = gousbEnumerator(debugLevel, s.logger)
	return s
}

// WithEnumerator replaces the libusb enumeration
func (s *Scanner) WithEnumerator(e Enumerator) *Scanner {
	s.enumerate = e
	return s
}

// ScannerType returns scanner type identifier
func (s *Scanner) ScannerType() string {
	return string(model.ConnectionUSB)
}

// IsAvailable checks if USB scanning is supported on this OS
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "windows", "darwin":
		return true
	default:
		s.logger.Warn("USB scanning support unknown for OS", zap.String("os", runtime.GOOS))
		return false
	}
}

// Scan lists allow-listed or printer-class devices, known models first
func (s *Scanner) Scan(ctx context.Context) ([]model.DiscoveredPrinter, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB device scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	descs, err := s.enumerate(scanCtx, s.shouldExamineDevice)
	if err != nil {
		if len(descs) == 0 {
			return nil, fmt.Errorf("device enumeration failed: %w", err)
		}
		s.logger.Warn("Some USB devices could not be opened", zap.Error(err))
	}

	seen := make(map[string]bool)
	printers := []model.DiscoveredPrinter{}
	for _, d := range descs {
		key := fmt.Sprintf("%04x:%04x:%s:%d:%d", d.VendorID, d.ProductID, d.Serial, d.Bus, d.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		printers = append(printers, s.identify(d))
	}

	sort.SliceStable(printers, func(i, j int) bool {
		ki, kj := s.isKnownModel(printers[i]), s.isKnownModel(printers[j])
		if ki != kj {
			return ki
		}
		return printers[i].Address < printers[j].Address
	})

	s.logger.Info("USB scan completed",
		zap.Int("printers_found", len(printers)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return printers, nil
}

func (s *Scanner) shouldExamineDevice(vendor, product uint16, printerClass bool) bool {
	if s.allowed[vendor] {
		return true
	}
	return s.config.FilterByClass && printerClass
}

// identify names a device. Address carries the "vvvv:pppp" form accepted as
// a USB device hint in printer settings.
func (s *Scanner) identify(d Descriptor) model.DiscoveredPrinter {
	p := model.DiscoveredPrinter{
		Address:      driver.FormatUSBID(d.VendorID) + ":" + driver.FormatUSBID(d.ProductID),
		Connection:   model.ConnectionUSB,
		VendorID:     driver.FormatUSBID(d.VendorID),
		ProductID:    driver.FormatUSBID(d.ProductID),
		Manufacturer: strings.TrimSpace(d.Manufacturer),
		Model:        strings.TrimSpace(d.Product),
	}

	if vendor := s.db.VendorInfo(d.VendorID); vendor != nil {
		if p.Manufacturer == "" {
			p.Manufacturer = vendor.Name
		}
		if m := vendor.ProductModel(d.ProductID); m != "" {
			p.Model = m
		}
		if p.Model == "" {
			p.Model = fmt.Sprintf("Unknown-%04X", d.ProductID)
		}
		p.Name = fmt.Sprintf("%s %s", vendor.Brand, p.Model)
		return p
	}

	switch {
	case p.Model != "":
		p.Name = p.Model
	case p.Manufacturer != "":
		p.Name = fmt.Sprintf("%s %04X", p.Manufacturer, d.ProductID)
	default:
		p.Name = fmt.Sprintf("USB Printer %04X:%04X", d.VendorID, d.ProductID)
	}
	return p
}

func (s *Scanner) isKnownModel(p model.DiscoveredPrinter) bool {
	vid, pid, err := driver.ParseUSBID(p.Address)
	if err != nil {
		return false
	}
	vendor := s.db.VendorInfo(vid)
	return vendor != nil && vendor.ProductModel(pid) != ""
}

func gousbEnumerator(debugLevel int, logger *zap.Logger) Enumerator {
	return func(ctx context.Context, filter func(vendor, product uint16, printerClass bool) bool) ([]Descriptor, error) {
		usbCtx := gousb.NewContext()
		defer func() {
			if err := usbCtx.Close(); err != nil {
				logger.Warn("Failed to close USB context", zap.Error(err))
			}
		}()
		usbCtx.Debug(debugLevel)

		devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			return filter(uint16(desc.Vendor), uint16(desc.Product), hasPrinterClass(desc))
		})

		descs := make([]Descriptor, 0, len(devices))
		for _, dev := range devices {
			if ctx.Err() != nil {
				dev.Close()
				continue
			}
			d := Descriptor{
				VendorID:  uint16(dev.Desc.Vendor),
				ProductID: uint16(dev.Desc.Product),
				Bus:       dev.Desc.Bus,
				Address:   dev.Desc.Address,
			}
			// string descriptors are optional on cheap printers
			d.Manufacturer, _ = dev.Manufacturer()
			d.Product, _ = dev.Product()
			d.Serial, _ = dev.SerialNumber()

			if cerr := dev.Close(); cerr != nil {
				logger.Debug("Failed to close USB device", zap.Error(cerr))
			}
			descs = append(descs, d)
		}
		if err == nil {
			err = ctx.Err()
		}
		return descs, err
	}
}

func hasPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == USBClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == USBClassPrinter {
					return true
				}
			}
		}
	}
	return false
}
