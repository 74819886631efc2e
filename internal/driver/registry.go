// internal/driver/registry.go
package driver

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

// Factory creates a transport for one printing session
type Factory func(settings model.PrinterSettings, logger *zap.Logger) (driver.Transport, error)

// Registry maps connection kinds to transport factories
type Registry struct {
	factories map[model.ConnectionKind]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[model.ConnectionKind]Factory),
		logger:    logger,
	}
}

// Register registers a factory for kind, replacing any previous one
func (r *Registry) Register(kind model.ConnectionKind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = factory
	r.logger.Info("Transport registered", zap.String("connection", string(kind)))
}

// Create builds a new transport for settings. wifi falls back to the
// network factory when it has none of its own.
func (r *Registry) Create(settings model.PrinterSettings) (driver.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind := settings.ConnectionKind
	if factory, ok := r.factories[kind]; ok {
		return factory(settings, r.logger)
	}
	if kind.IsNetwork() {
		if factory, ok := r.factories[model.ConnectionNetwork]; ok {
			return factory(settings, r.logger)
		}
	}
	return nil, driver.NewError(driver.KindConfigurationError, "create transport",
		fmt.Sprintf("no transport registered for connection kind %q", kind), nil)
}

// IsSupported reports whether a transport exists for kind
func (r *Registry) IsSupported(kind model.ConnectionKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.factories[kind]; ok {
		return true
	}
	if kind.IsNetwork() {
		_, ok := r.factories[model.ConnectionNetwork]
		return ok
	}
	return false
}

// Kinds lists registered connection kinds
func (r *Registry) Kinds() []model.ConnectionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]model.ConnectionKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
