// cmd/relay/main.go
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
	"pos-printer/internal/discovery/tcp"
	"pos-printer/internal/protocol"
	"pos-printer/internal/relay"
	"pos-printer/internal/routes"
	"pos-printer/internal/utils"
)

// Relay writes raw print jobs to LAN printers on behalf of the printer
// service and probes the network for them.
type Relay struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *routes.RelayRouter
}

func main() {
	r, err := NewRelay()
	if err != nil {
		fmt.Printf("Failed to initialize relay: %v\n", err)
		os.Exit(1)
	}

	r.Start()
}

// NewRelay creates a relay instance from configuration
func NewRelay() (*Relay, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "pos-printer-relay")
	serviceLogger.LogServiceStart(cfg.App.Version,
		zap.Strings("allowed_networks", cfg.Relay.AllowedNetworks),
	)

	writer := protocol.NewTCPSender(protocol.TCPConfig{
		Port:         cfg.Printer.Network.DefaultPort,
		KeepAlive:    cfg.Printer.Network.KeepAlive,
		Timeout:      cfg.Printer.Network.ConnectTimeout,
		WriteTimeout: cfg.Printer.Network.WriteTimeout,
	}, logger)

	scanner := tcp.NewScanner(logger, &tcp.Config{
		NetworkRanges: cfg.Relay.ScanSubnets,
		CommonPorts:   cfg.Relay.ScanPorts,
		ConnTimeout:   cfg.Relay.ProbeTimeout,
		MaxConcurrent: cfg.Relay.ScanConcurrency,
		MaxHosts:      cfg.Relay.ScanMaxHosts,
		Identify:      cfg.Relay.Identify,
	})

	handlers, err := relay.NewServer(writer, scanner, relay.ServerConfig{
		AllowedNetworks: cfg.Relay.AllowedNetworks,
		MaxPayloadBytes: cfg.Relay.MaxPayloadBytes,
		WriteTimeout:    cfg.Printer.Network.WriteTimeout,
		MaxProbeTimeout: cfg.Relay.MaxProbeTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay server: %w", err)
	}

	router := routes.NewRelayRouter(cfg, logger, handlers)

	return &Relay{
		config: cfg,
		logger: logger,
		router: router,
		server: &http.Server{
			Addr:         cfg.GetRelayAddr(),
			Handler:      router.SetupRouter(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}, nil
}

// Start serves until SIGINT or SIGTERM
func (r *Relay) Start() {
	go func() {
		r.logger.Info("Starting relay", zap.String("address", r.server.Addr))

		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Fatal("Failed to start relay", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	r.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	r.shutdown()
}

func (r *Relay) shutdown() {
	utils.NewServiceLogger(r.logger, "pos-printer-relay").LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), r.config.Server.ShutdownTimeout)
	defer cancel()

	if err := r.server.Shutdown(ctx); err != nil {
		r.logger.Error("Relay shutdown error", zap.Error(err))
	}
	r.router.Close()

	if err := utils.CloseLogger(r.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
