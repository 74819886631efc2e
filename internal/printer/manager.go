// internal/printer/manager.go
package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-printer/internal/escpos"
	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

// State of a printer session
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StatePrinting      State = "printing"
)

// Operation names reported to the event handler
const (
	OpInitialize = "initialize"
	OpPrint      = "print"
	OpDrawer     = "open_drawer"
	OpDisconnect = "disconnect"
)

// TransportFactory builds the transport selected by settings
type TransportFactory interface {
	Create(settings model.PrinterSettings) (driver.Transport, error)
}

// Manager drives one printer through one transport at a time. It never
// returns an error: every failure is reported as a driver.Result.
type Manager struct {
	id      string
	factory TransportFactory
	events  driver.EventHandler
	logger  *zap.Logger

	mu           sync.Mutex
	state        State
	busy         bool
	transport    driver.Transport
	settings     model.PrinterSettings
	lastActivity time.Time
}

// NewManager creates a manager in the uninitialized state. events may be nil.
func NewManager(id string, factory TransportFactory, events driver.EventHandler, logger *zap.Logger) *Manager {
	return &Manager{
		id:           id,
		factory:      factory,
		events:       events,
		logger:       logger.With(zap.String("session_id", id)),
		state:        StateUninitialized,
		lastActivity: time.Now(),
	}
}

// ID returns the session identifier
func (m *Manager) ID() string {
	return m.id
}

// Initialize selects and connects the transport for settings, replacing
// any previous session. On failure the manager stays uninitialized.
func (m *Manager) Initialize(ctx context.Context, settings model.PrinterSettings) *driver.Result {
	start := time.Now()

	kind, err := model.ParseConnectionKind(string(settings.ConnectionKind))
	if err == nil {
		settings.ConnectionKind = kind
		err = settings.Validate()
	}
	if err != nil {
		return m.complete(OpInitialize, start, 0, driver.NewError(driver.KindInvalidInput, OpInitialize, err.Error(), nil))
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return m.complete(OpInitialize, start, 0, driver.NewError(driver.KindBusy, OpInitialize, "an operation is already in progress", nil))
	}
	m.busy = true
	previous := m.transport
	m.transport = nil
	m.mu.Unlock()
	defer m.release()

	if previous != nil {
		if err := m.guard("disconnect", func() error { return previous.Disconnect(ctx) }); err != nil {
			m.logger.Warn("Previous transport did not disconnect cleanly", zap.Error(err))
		}
		m.setState(StateUninitialized)
	}

	transport, err := m.factory.Create(settings)
	if err != nil {
		return m.complete(OpInitialize, start, 0, driver.Wrap(OpInitialize, driver.KindConfigurationError, err))
	}

	m.setState(StateConnecting)
	m.logger.Info("Connecting printer", zap.String("connection", string(settings.ConnectionKind)))

	if err := m.guard("connect", func() error { return transport.Connect(ctx) }); err != nil {
		m.setState(StateUninitialized)
		return m.complete(OpInitialize, start, 0, driver.Wrap(OpInitialize, driver.KindConnectionLost, err))
	}

	m.mu.Lock()
	m.transport = transport
	m.settings = settings
	m.mu.Unlock()
	m.setState(StateConnected)

	info := transport.DeviceInfo()
	m.logger.Info("Printer connected",
		zap.String("connection", string(info.Connection)),
		zap.String("device", info.Name),
	)
	return m.complete(OpInitialize, start, 0, nil)
}

// Print encodes doc with the session settings and sends it. When the
// settings ask for it the drawer is kicked after a successful print.
func (m *Manager) Print(ctx context.Context, doc *model.ReceiptDocument) *driver.Result {
	start := time.Now()
	if doc == nil {
		return m.complete(OpPrint, start, 0, driver.NewError(driver.KindInvalidInput, OpPrint, "receipt document is required", nil))
	}

	transport, settings, err := m.acquire(OpPrint, StatePrinting)
	if err != nil {
		return m.complete(OpPrint, start, 0, err)
	}
	defer m.release()

	var data []byte
	if err := m.guard("encode", func() error {
		data = escpos.Encode(doc, settings)
		return nil
	}); err != nil {
		m.settle(transport, err)
		return m.complete(OpPrint, start, 0, err)
	}

	if err := m.send(ctx, transport, data); err != nil {
		m.settle(transport, err)
		return m.complete(OpPrint, start, 0, err)
	}

	if settings.OpenDrawer {
		if err := m.send(ctx, transport, escpos.DrawerPulse()); err != nil {
			m.logger.Warn("Cash drawer pulse after print failed", zap.Error(err))
			m.notifyError(err)
		}
	}

	m.settle(transport, nil)
	return m.complete(OpPrint, start, len(data), nil)
}

// OpenCashDrawer sends the drawer pulse on its own
func (m *Manager) OpenCashDrawer(ctx context.Context) *driver.Result {
	start := time.Now()

	transport, _, err := m.acquire(OpDrawer, StateConnected)
	if err != nil {
		return m.complete(OpDrawer, start, 0, err)
	}
	defer m.release()

	pulse := escpos.DrawerPulse()
	err = m.send(ctx, transport, pulse)
	m.settle(transport, err)
	if err != nil {
		return m.complete(OpDrawer, start, 0, err)
	}
	return m.complete(OpDrawer, start, len(pulse), nil)
}

// Disconnect tears down the active transport. Calling it without a session
// succeeds and does nothing.
func (m *Manager) Disconnect(ctx context.Context) *driver.Result {
	start := time.Now()

	m.mu.Lock()
	transport := m.transport
	m.transport = nil
	m.mu.Unlock()

	if transport == nil {
		m.setState(StateUninitialized)
		return driver.OK(0, time.Since(start))
	}

	err := m.guard("disconnect", func() error { return transport.Disconnect(ctx) })
	m.setState(StateUninitialized)
	if err != nil {
		return m.complete(OpDisconnect, start, 0, driver.Wrap(OpDisconnect, driver.KindConnectionLost, err))
	}

	m.logger.Info("Printer disconnected")
	return m.complete(OpDisconnect, start, 0, nil)
}

// IsConnected reports whether a session is up and its transport agrees
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil || (m.state != StateConnected && m.state != StatePrinting) {
		return false
	}
	return m.transport.IsConnected()
}

// DeviceInfo describes the connected device, or an empty disconnected
// descriptor when there is none.
func (m *Manager) DeviceInfo() driver.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return driver.DeviceInfo{Connection: m.settings.ConnectionKind}
	}
	return m.transport.DeviceInfo()
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Settings returns the settings of the active session
func (m *Manager) Settings() model.PrinterSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// LastActivity returns when the session last started or finished an operation
func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// acquire claims the connected session for op and moves it to next
func (m *Manager) acquire(op string, next State) (driver.Transport, model.PrinterSettings, error) {
	m.mu.Lock()
	if m.busy || m.state == StatePrinting {
		m.mu.Unlock()
		return nil, model.PrinterSettings{}, driver.NewError(driver.KindBusy, op, "an operation is already in progress", nil)
	}
	if m.state != StateConnected || m.transport == nil {
		m.mu.Unlock()
		return nil, model.PrinterSettings{}, driver.NewError(driver.KindNotConnected, op, "printer is not connected", nil)
	}
	m.busy = true
	m.lastActivity = time.Now()
	transport, settings := m.transport, m.settings
	m.mu.Unlock()

	m.setState(next)
	return transport, settings, nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.busy = false
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// settle returns the session to connected after an operation. A lost
// connection drops the transport; a concurrent Disconnect wins.
func (m *Manager) settle(transport driver.Transport, err error) {
	if err != nil && driver.KindOf(err) == driver.KindConnectionLost {
		m.mu.Lock()
		owned := m.transport == transport
		if owned {
			m.transport = nil
		}
		m.mu.Unlock()

		if owned {
			m.logger.Warn("Printer connection lost, closing session", zap.Error(err))
			if derr := m.guard("disconnect", func() error { return transport.Disconnect(context.Background()) }); derr != nil {
				m.logger.Warn("Disconnect after connection loss failed", zap.Error(derr))
			}
			m.setState(StateUninitialized)
		}
		return
	}

	m.mu.Lock()
	owned := m.transport == transport
	m.mu.Unlock()
	if owned {
		m.setState(StateConnected)
	}
}

func (m *Manager) send(ctx context.Context, transport driver.Transport, data []byte) error {
	err := m.guard("send", func() error { return transport.Send(ctx, data) })
	return driver.Wrap("send", driver.KindWriteFailure, err)
}

// guard runs a transport call, converting a panic in a platform binding
// into an internal error
func (m *Manager) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovered panic in printer operation",
				zap.String("operation", op),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = driver.NewError(driver.KindInternal, op, fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return fn()
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev == next {
		return
	}
	m.logger.Debug("Printer state changed", zap.String("from", string(prev)), zap.String("to", string(next)))
	if m.events != nil {
		m.events.OnStateChanged(m.id, string(prev), string(next))
	}
}

func (m *Manager) complete(op string, start time.Time, bytesSent int, err error) *driver.Result {
	duration := time.Since(start)
	var result *driver.Result
	if err != nil {
		result = driver.Failed(err, duration)
		var de *driver.Error
		if errors.As(err, &de) && de.Kind != driver.KindBusy && de.Kind != driver.KindNotConnected && de.Kind != driver.KindInvalidInput {
			m.notifyError(err)
		}
		m.logger.Warn("Printer operation failed",
			zap.String("operation", op),
			zap.String("error_code", result.ErrorCode),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
	} else {
		result = driver.OK(bytesSent, duration)
		m.logger.Info("Printer operation completed",
			zap.String("operation", op),
			zap.Int("bytes_sent", bytesSent),
			zap.Duration("duration", duration),
		)
	}

	if m.events != nil {
		m.events.OnOperationCompleted(m.id, op, result)
	}
	return result
}

func (m *Manager) notifyError(err error) {
	if m.events != nil {
		m.events.OnDeviceError(m.id, err)
	}
}
