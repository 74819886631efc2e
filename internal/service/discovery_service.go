// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pos-printer/internal/discovery"
	"pos-printer/internal/model"
	"pos-printer/internal/utils"
)

// ScanTypeAll runs every registered scanner
const ScanTypeAll = "all"

// ErrUnsupportedScan is returned for a scan type no scanner serves
var ErrUnsupportedScan = errors.New("service: unsupported scan type")

// DiscoveryService finds printer candidates. Results are hints for
// PrinterSettings; discovery never opens a session.
type DiscoveryService struct {
	scanners *discovery.ScannerManager
	timeout  time.Duration
	logger   *utils.ServiceLogger
}

// ScanResult is the outcome of one discovery request
type ScanResult struct {
	ScanType string                    `json:"scan_type"`
	Printers []model.DiscoveredPrinter `json:"printers"`
	Count    int                       `json:"count"`
	Duration string                    `json:"duration"`
}

// NewDiscoveryService creates a discovery service over registered scanners.
// timeout bounds a single request; zero means no bound beyond the caller's.
func NewDiscoveryService(scanners *discovery.ScannerManager, timeout time.Duration, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		scanners: scanners,
		timeout:  timeout,
		logger:   utils.NewServiceLogger(logger, "discovery-service"),
	}
}

// Scan runs the scanner for scanType, or all of them for "all"
func (ds *DiscoveryService) Scan(ctx context.Context, scanType string) (*ScanResult, error) {
	if scanType == "" {
		scanType = ScanTypeAll
	}
	if ds.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ds.timeout)
		defer cancel()
	}

	start := time.Now()
	ds.logger.Info("Starting printer scan", zap.String("type", scanType))

	var printers []model.DiscoveredPrinter
	if scanType == ScanTypeAll {
		printers = ds.scanners.ScanAll(ctx)
	} else {
		var err error
		printers, err = ds.scanners.ScanByType(ctx, scanType)
		if errors.Is(err, discovery.ErrScannerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScan, scanType)
		}
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
	}

	if printers == nil {
		printers = []model.DiscoveredPrinter{}
	}

	ds.logger.Info("Printer scan completed",
		zap.String("type", scanType),
		zap.Int("printers_found", len(printers)),
		zap.Duration("duration", time.Since(start)),
	)

	return &ScanResult{
		ScanType: scanType,
		Printers: printers,
		Count:    len(printers),
		Duration: time.Since(start).String(),
	}, nil
}

// AvailableScanners lists scanner types that can run on this host
func (ds *DiscoveryService) AvailableScanners() []string {
	return ds.scanners.AvailableScanners()
}
