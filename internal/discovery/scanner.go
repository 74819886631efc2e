// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pos-printer/internal/model"
)

var (
	ErrScannerNotFound    = errors.New("scanner type not found")
	ErrScannerUnavailable = errors.New("scanner not available")
)

// DeviceScanner reports printer candidates for one transport family
type DeviceScanner interface {
	Scan(ctx context.Context) ([]model.DiscoveredPrinter, error)
	ScannerType() string
	IsAvailable() bool
}

// ScannerManager fans a discovery request out to registered scanners
type ScannerManager struct {
	mu       sync.RWMutex
	scanners map[string]DeviceScanner
	logger   *zap.Logger
}

// NewScannerManager creates an empty scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger.With(zap.String("component", "scanner_manager")),
	}
}

// RegisterScanner registers a scanner under its type, replacing any previous one
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	scannerType := scanner.ScannerType()

	sm.mu.Lock()
	sm.scanners[scannerType] = scanner
	sm.mu.Unlock()

	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. A failing scanner is logged and
// skipped so one missing subsystem does not hide the others.
func (sm *ScannerManager) ScanAll(ctx context.Context) []model.DiscoveredPrinter {
	var all []model.DiscoveredPrinter

	for _, scannerType := range sm.types() {
		scanner := sm.get(scannerType)
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		printers, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		all = append(all, printers...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("printers_found", len(printers)),
		)
	}

	return all
}

// ScanByType runs a single scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]model.DiscoveredPrinter, error) {
	scanner := sm.get(scannerType)
	if scanner == nil {
		return nil, fmt.Errorf("%w: %s", ErrScannerNotFound, scannerType)
	}
	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("%w: %s", ErrScannerUnavailable, scannerType)
	}
	return scanner.Scan(ctx)
}

// AvailableScanners returns the sorted types of scanners that can run here
func (sm *ScannerManager) AvailableScanners() []string {
	available := []string{}
	for _, scannerType := range sm.types() {
		if sm.get(scannerType).IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}

func (sm *ScannerManager) get(scannerType string) DeviceScanner {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.scanners[scannerType]
}

func (sm *ScannerManager) types() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	types := make([]string, 0, len(sm.scanners))
	for t := range sm.scanners {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
