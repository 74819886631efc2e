// internal/discovery/relay_scanner.go
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/internal/relay"
)

// RelayClient is the part of the relay client used for discovery
type RelayClient interface {
	Scan(ctx context.Context, req relay.ScanRequest) ([]model.DiscoveredPrinter, error)
	Ping(ctx context.Context) error
}

// RelayScanner asks the network relay to probe the local network. It never
// opens a session with the printers it reports.
type RelayScanner struct {
	client  RelayClient
	request relay.ScanRequest
	logger  *zap.Logger
}

// NewRelayScanner creates a relay backed network scanner. An empty request
// leaves subnets, ports and timeout to the relay's own defaults.
func NewRelayScanner(client RelayClient, request relay.ScanRequest, logger *zap.Logger) *RelayScanner {
	return &RelayScanner{
		client:  client,
		request: request,
		logger:  logger.With(zap.String("scanner", "network")),
	}
}

// ScannerType returns scanner type identifier
func (s *RelayScanner) ScannerType() string {
	return string(model.ConnectionNetwork)
}

// IsAvailable pings the relay
func (s *RelayScanner) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		s.logger.Debug("Relay not reachable", zap.Error(err))
		return false
	}
	return true
}

// Scan returns the candidates the relay found, tagged as network printers
func (s *RelayScanner) Scan(ctx context.Context) ([]model.DiscoveredPrinter, error) {
	start := time.Now()
	s.logger.Info("Starting relay network scan", zap.Strings("subnets", s.request.Subnets))

	printers, err := s.client.Scan(ctx, s.request)
	if err != nil {
		return nil, err
	}

	for i := range printers {
		if printers[i].Connection == "" {
			printers[i].Connection = model.ConnectionNetwork
		}
		if printers[i].Port == 0 {
			printers[i].Port = model.DefaultPrinterPort
		}
	}

	s.logger.Info("Relay network scan completed",
		zap.Int("printers_found", len(printers)),
		zap.Duration("scan_duration", time.Since(start)),
	)
	return printers, nil
}
