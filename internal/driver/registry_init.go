// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

// Platform bundles the host bindings transports are built on. Nil members
// leave the corresponding connection kind unregistered.
type Platform struct {
	USB        USBHost
	USBVendors []uint16
	BLE        BLEHost
	BLEOptions BLEOptions
	Network    Sender
}

// RegisterDefaultDrivers registers a factory for every available binding
func RegisterDefaultDrivers(registry *Registry, platform Platform, logger *zap.Logger) {
	registered := 0

	if platform.USB != nil {
		registry.Register(model.ConnectionUSB, func(s model.PrinterSettings, l *zap.Logger) (driver.Transport, error) {
			d, err := NewUSBDriver(platform.USB, platform.USBVendors, s.Device, l)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
		registered++
	}

	if platform.BLE != nil {
		registry.Register(model.ConnectionBluetooth, func(s model.PrinterSettings, l *zap.Logger) (driver.Transport, error) {
			opts := platform.BLEOptions
			opts.Device = s.Device
			d, err := NewBLEDriver(platform.BLE, opts, l)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
		registered++
	}

	if platform.Network != nil {
		network := func(s model.PrinterSettings, l *zap.Logger) (driver.Transport, error) {
			d, err := NewNetworkDriver(platform.Network, s, l)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
		registry.Register(model.ConnectionNetwork, network)
		registry.Register(model.ConnectionWiFi, network)
		registered += 2
	}

	logger.Info("Printer transports registered", zap.Int("count", registered))
}
