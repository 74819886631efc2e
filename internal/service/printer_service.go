// internal/service/printer_service.go
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/config"
	"pos-printer/internal/model"
	"pos-printer/internal/printer"
	"pos-printer/internal/utils"
	"pos-printer/pkg/driver"
)

var (
	ErrSessionNotFound = errors.New("service: printer session not found")
	ErrTooManySessions = errors.New("service: printer session limit reached")
)

// Session event types published to subscribers
const (
	EventStateChanged       = "state_changed"
	EventOperationCompleted = "operation_completed"
	EventDeviceError        = "device_error"
	EventSessionClosed      = "session_closed"
)

// SessionEvent is pushed to websocket subscribers of a session
type SessionEvent struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventPublisher receives session events. Publish must not block.
type EventPublisher interface {
	Publish(event SessionEvent)
}

// Publishers hands every event to each publisher in order
type Publishers []EventPublisher

// Publish implements EventPublisher
func (p Publishers) Publish(event SessionEvent) {
	for _, publisher := range p {
		if publisher != nil {
			publisher.Publish(event)
		}
	}
}

// SessionInfo is the externally visible view of a printer session
type SessionInfo struct {
	ID           string                `json:"id"`
	State        printer.State         `json:"state"`
	IsConnected  bool                  `json:"is_connected"`
	Settings     model.PrinterSettings `json:"settings"`
	Device       driver.DeviceInfo     `json:"device"`
	CreatedAt    time.Time             `json:"created_at"`
	LastActivity time.Time             `json:"last_activity"`
}

type session struct {
	manager   *printer.Manager
	createdAt time.Time
}

// PrinterService owns the printer sessions of the server. Each session has
// its own printer manager and therefore its own transport.
type PrinterService struct {
	factory   printer.TransportFactory
	config    config.PrinterConfig
	publisher EventPublisher
	logger    *utils.ServiceLogger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	// sessions still initializing; they hold a slot against MaxSessions
	pending int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPrinterService creates the session registry. publisher may be nil.
func NewPrinterService(factory printer.TransportFactory, cfg config.PrinterConfig, publisher EventPublisher, logger *zap.Logger) *PrinterService {
	return &PrinterService{
		factory:   factory,
		config:    cfg,
		publisher: publisher,
		logger:    utils.NewServiceLogger(logger, "printer-service"),
		now:       time.Now,
		sessions:  make(map[string]*session),
		stop:      make(chan struct{}),
	}
}

// CreateSession opens a new session and initializes it with settings. A
// session whose initialization fails is discarded; the failed result is
// returned with an empty id.
func (s *PrinterService) CreateSession(ctx context.Context, settings model.PrinterSettings) (*SessionInfo, *driver.Result, error) {
	if !s.reserve() {
		return nil, nil, ErrTooManySessions
	}

	id := uuid.New().String()
	manager := printer.NewManager(id, s.factory, s, s.logger.Logger)

	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	result := manager.Initialize(ctx, s.applyDefaults(settings))
	if !result.Success {
		s.logger.Warn("Printer session initialization failed",
			zap.String("session_id", id),
			zap.String("connection", string(settings.ConnectionKind)),
			zap.String("error_code", result.ErrorCode),
		)
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
		return nil, result, nil
	}

	sess := &session{manager: manager, createdAt: s.now()}
	s.mu.Lock()
	s.pending--
	s.sessions[id] = sess
	s.mu.Unlock()

	utils.NewDeviceLogger(s.logger.Logger, id, string(manager.Settings().ConnectionKind)).
		LogConnection("open", manager.DeviceInfo().Name, nil)

	return s.info(id, sess), result, nil
}

// reserve claims a session slot for an initialization in flight
func (s *PrinterService) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.MaxSessions > 0 && len(s.sessions)+s.pending >= s.config.MaxSessions {
		return false
	}
	s.pending++
	return true
}

// Print sends a receipt through the session
func (s *PrinterService) Print(ctx context.Context, id string, doc *model.ReceiptDocument) (*driver.Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	return sess.manager.Print(ctx, doc), nil
}

// OpenCashDrawer kicks the drawer attached to the session's printer
func (s *PrinterService) OpenCashDrawer(ctx context.Context, id string) (*driver.Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	return sess.manager.OpenCashDrawer(ctx), nil
}

// GetSession returns the current view of one session
func (s *PrinterService) GetSession(id string) (*SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.info(id, sess), nil
}

// ListSessions returns every session ordered by creation time
func (s *PrinterService) ListSessions() []*SessionInfo {
	s.mu.RLock()
	infos := make([]*SessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		infos = append(infos, s.info(id, sess))
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseSession disconnects the session and forgets it
func (s *PrinterService) CloseSession(ctx context.Context, id string) (*driver.Result, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	return s.dispose(ctx, id, sess, "closed"), nil
}

// SessionCount returns the number of open sessions
func (s *PrinterService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start launches the idle session reaper when an idle timeout is configured
func (s *PrinterService) Start() {
	if s.config.SessionIdleTimeout <= 0 {
		return
	}

	interval := s.config.ReapInterval
	if interval <= 0 {
		interval = s.config.SessionIdleTimeout / 2
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.ReapIdle(context.Background()); n > 0 {
					s.logger.Info("Idle printer sessions reaped", zap.Int("count", n))
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// ReapIdle disconnects sessions idle for longer than the configured timeout
// and returns how many were removed. Printing sessions are never reaped.
func (s *PrinterService) ReapIdle(ctx context.Context) int {
	if s.config.SessionIdleTimeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.config.SessionIdleTimeout)

	s.mu.Lock()
	expired := make(map[string]*session)
	for id, sess := range s.sessions {
		if sess.manager.State() == printer.StatePrinting {
			continue
		}
		if sess.manager.LastActivity().Before(cutoff) {
			expired[id] = sess
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for id, sess := range expired {
		s.dispose(ctx, id, sess, "idle")
	}
	return len(expired)
}

// Shutdown stops the reaper and disconnects every session
func (s *PrinterService) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for id, sess := range sessions {
		s.dispose(ctx, id, sess, "shutdown")
	}
	s.logger.Info("Printer sessions closed", zap.Int("count", len(sessions)))
}

// OnStateChanged implements driver.EventHandler
func (s *PrinterService) OnStateChanged(sessionID string, from, to string) {
	s.publish(sessionID, EventStateChanged, map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// OnOperationCompleted implements driver.EventHandler
func (s *PrinterService) OnOperationCompleted(sessionID string, operation string, result *driver.Result) {
	s.publish(sessionID, EventOperationCompleted, map[string]interface{}{
		"operation": operation,
		"result":    result,
	})
}

// OnDeviceError implements driver.EventHandler
func (s *PrinterService) OnDeviceError(sessionID string, err error) {
	s.publish(sessionID, EventDeviceError, map[string]interface{}{
		"error_code": string(driver.KindOf(err)),
		"error":      err.Error(),
	})
}

func (s *PrinterService) dispose(ctx context.Context, id string, sess *session, reason string) *driver.Result {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	connection := string(sess.manager.Settings().ConnectionKind)
	result := sess.manager.Disconnect(ctx)

	var err error
	if !result.Success {
		err = errors.New(result.ErrorMessage)
	}
	utils.NewDeviceLogger(s.logger.Logger, id, connection).LogConnection(reason, sess.manager.DeviceInfo().Name, err)

	s.publish(id, EventSessionClosed, map[string]interface{}{"reason": reason})
	return result
}

func (s *PrinterService) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *PrinterService) info(id string, sess *session) *SessionInfo {
	return &SessionInfo{
		ID:           id,
		State:        sess.manager.State(),
		IsConnected:  sess.manager.IsConnected(),
		Settings:     sess.manager.Settings(),
		Device:       sess.manager.DeviceInfo(),
		CreatedAt:    sess.createdAt,
		LastActivity: sess.manager.LastActivity(),
	}
}

// applyDefaults fills the fields a caller may leave out from configuration
func (s *PrinterService) applyDefaults(settings model.PrinterSettings) model.PrinterSettings {
	if settings.PaperWidth == 0 && s.config.DefaultPaperWidth != 0 {
		settings.PaperWidth = model.PaperWidth(s.config.DefaultPaperWidth)
	}
	if settings.CharacterSet == "" && s.config.CharacterSet != "" {
		settings.CharacterSet = model.CharacterSet(s.config.CharacterSet)
	}
	if settings.Port == 0 && s.config.Network.DefaultPort != 0 {
		if kind, err := model.ParseConnectionKind(string(settings.ConnectionKind)); err == nil && kind.IsNetwork() {
			settings.Port = s.config.Network.DefaultPort
		}
	}
	return settings
}

func (s *PrinterService) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.OperationTimeout > 0 {
		return context.WithTimeout(ctx, s.config.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *PrinterService) publish(sessionID, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: s.now(),
	})
}
