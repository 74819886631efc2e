// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pos-printer/internal/config"
	"pos-printer/internal/discovery"
	"pos-printer/internal/discovery/tcp"
	"pos-printer/internal/discovery/usb"
	"pos-printer/internal/driver"
	"pos-printer/internal/handler"
	"pos-printer/internal/protocol"
	"pos-printer/internal/relay"
	"pos-printer/internal/repository"
	"pos-printer/internal/routes"
	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *routes.Router

	// Host bindings
	usbHost     *protocol.USBHost
	relayClient *relay.Client

	// Services
	eventBus         *handler.EventBus
	printerService   *service.PrinterService
	discoveryService *service.DiscoveryService
	operationService *service.OperationService

	// Driver registry
	driverRegistry *driver.Registry
}

// @title POS Printer API
// @version 1.0.0
// @description Receipt printer sessions over USB, Bluetooth LE and network
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version,
		zap.String("environment", cfg.App.Environment),
		zap.String("network_mode", cfg.Printer.Network.Mode),
	)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDriverRegistry(); err != nil {
		return nil, fmt.Errorf("failed to initialize driver registry: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDriverRegistry binds the enabled transports to their hosts
func (app *Application) initializeDriverRegistry() error {
	printerCfg := app.config.Printer

	vendors, err := printerCfg.USB.VendorIDs()
	if err != nil {
		return err
	}

	platform := driver.Platform{USBVendors: vendors}

	if printerCfg.USB.Enabled {
		app.usbHost = protocol.NewUSBHost(protocol.USBConfig{
			Timeout:    printerCfg.USB.Timeout,
			AutoDetach: printerCfg.USB.AutoDetach,
		}, app.logger)
		platform.USB = app.usbHost
	}

	if printerCfg.Bluetooth.Enabled {
		platform.BLE = protocol.NewBLEHost(protocol.BLEConfig{
			ScanTimeout: printerCfg.Bluetooth.ScanTimeout,
		}, app.logger)

		profiles := make([]driver.BLEProfile, 0, len(printerCfg.Bluetooth.Profiles))
		for _, p := range printerCfg.Bluetooth.Profiles {
			profiles = append(profiles, driver.BLEProfile{Service: p.Service, Characteristic: p.Characteristic})
		}
		platform.BLEOptions = driver.BLEOptions{
			Profiles:     profiles,
			NamePrefixes: printerCfg.Bluetooth.NamePrefixes,
			ChunkSize:    printerCfg.Bluetooth.ChunkSize,
			ChunkDelay:   printerCfg.Bluetooth.ChunkDelay,
		}
	}

	switch printerCfg.Network.Mode {
	case config.NetworkModeRelay:
		app.relayClient = relay.NewClient(app.config.Relay.URL, app.config.Relay.RequestTimeout, app.logger)
		platform.Network = app.relayClient
	case config.NetworkModeDirect:
		platform.Network = protocol.NewTCPSender(protocol.TCPConfig{
			Port:         printerCfg.Network.DefaultPort,
			KeepAlive:    printerCfg.Network.KeepAlive,
			Timeout:      printerCfg.Network.ConnectTimeout,
			WriteTimeout: printerCfg.Network.WriteTimeout,
		}, app.logger)
	}

	app.driverRegistry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, platform, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Bool("usb", printerCfg.USB.Enabled),
		zap.Bool("bluetooth", printerCfg.Bluetooth.Enabled),
		zap.String("network_mode", printerCfg.Network.Mode),
	)
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	app.eventBus = handler.NewEventBus(app.logger)

	app.operationService = service.NewOperationService(
		repository.NewOperationRepository(app.config.Printer.OperationLogSize, app.logger),
		app.config.Printer.OperationLogRetention,
		app.logger,
	)

	// The operation log is written in line; the bus may drop events under load.
	app.printerService = service.NewPrinterService(
		app.driverRegistry,
		app.config.Printer,
		service.Publishers{app.operationService, app.eventBus},
		app.logger,
	)

	scanners := discovery.NewScannerManager(app.logger)

	if app.config.Printer.USB.Enabled {
		vendors, _ := app.config.Printer.USB.VendorIDs()
		scanners.RegisterScanner(usb.NewScanner(app.logger, &usb.Config{
			Vendors:       vendors,
			ScanTimeout:   app.config.Printer.USB.Timeout,
			FilterByClass: true,
			EnableDebug:   app.config.IsDebugEnabled(),
		}))
	}

	relayCfg := app.config.Relay
	if app.relayClient != nil {
		scanners.RegisterScanner(discovery.NewRelayScanner(app.relayClient, relay.ScanRequest{
			Subnets:   relayCfg.ScanSubnets,
			Ports:     relayCfg.ScanPorts,
			TimeoutMs: int(relayCfg.ProbeTimeout.Milliseconds()),
		}, app.logger))
	} else {
		scanners.RegisterScanner(tcp.NewScanner(app.logger, &tcp.Config{
			NetworkRanges: relayCfg.ScanSubnets,
			CommonPorts:   relayCfg.ScanPorts,
			ConnTimeout:   relayCfg.ProbeTimeout,
			MaxConcurrent: relayCfg.ScanConcurrency,
			MaxHosts:      relayCfg.ScanMaxHosts,
			Identify:      relayCfg.Identify,
		}))
	}

	app.discoveryService = service.NewDiscoveryService(scanners, app.config.Printer.OperationTimeout, app.logger)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	var relayPinger handler.Pinger
	if app.relayClient != nil {
		relayPinger = app.relayClient
	}

	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.printerService,
		app.discoveryService,
		app.operationService,
		app.eventBus,
		relayPinger,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)

	return nil
}

// startBackgroundServices starts the event bus, operation log pruning and the
// idle session reaper
func (app *Application) startBackgroundServices() {
	go app.eventBus.Start()
	app.operationService.Start()
	app.printerService.Start()

	app.logger.Info("Background services started",
		zap.Duration("session_idle_timeout", app.config.Printer.SessionIdleTimeout),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Open sessions are disconnected before the bus goes away so their
	// session_closed events still reach subscribers.
	app.printerService.Shutdown(ctx)
	app.operationService.Stop()
	app.eventBus.Stop()
	app.router.Close()

	if app.usbHost != nil {
		if err := app.usbHost.Close(); err != nil {
			app.logger.Error("USB host close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start runs the HTTP server and blocks until shutdown
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
