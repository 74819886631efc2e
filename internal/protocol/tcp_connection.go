// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPConnection is a raw socket to a network printer
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open dials the printer
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	dialer := &net.Dialer{
		Timeout:   tc.config.Timeout,
		KeepAlive: 30 * time.Second,
	}
	if !tc.config.KeepAlive {
		dialer.KeepAlive = -1
	}

	address := net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.logger.Warn("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	tc.conn = conn
	tc.isOpen = true
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()

	tc.logger.Debug("TCP connection opened")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false
	tc.stats.IsConnected = false

	if err != nil {
		tc.logger.Warn("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}
	return nil
}

// Write writes data verbatim to the socket
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return fmt.Errorf("TCP connection not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Time{}
	if tc.config.WriteTimeout > 0 {
		deadline = time.Now().Add(tc.config.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	tc.conn.SetWriteDeadline(deadline)

	startTime := time.Now()
	n, err := tc.conn.Write(data)
	if err != nil {
		tc.stats.ErrorCount++
		tc.logger.Warn("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		tc.stats.ErrorCount++
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.stats.recordWrite(n, time.Since(startTime))
	tc.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return nil
}

// Stats returns a snapshot of the connection counters
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.stats
}

// TCPSender opens a fresh socket per payload, writes it and closes
type TCPSender struct {
	defaults TCPConfig
	logger   *zap.Logger
}

// NewTCPSender creates a direct socket sender; defaults supplies timeouts
func NewTCPSender(defaults TCPConfig, logger *zap.Logger) *TCPSender {
	return &TCPSender{defaults: defaults, logger: logger}
}

// Forward writes payload to address:port. Close runs even when the write
// fails and both errors are reported.
func (s *TCPSender) Forward(ctx context.Context, address string, port int, payload []byte) error {
	cfg := s.defaults
	cfg.Host = address
	cfg.Port = port

	var conn DeviceProtocol = NewTCPConnection(&cfg, s.logger)
	if err := conn.Open(ctx); err != nil {
		return err
	}
	writeErr := conn.Write(ctx, payload)
	closeErr := conn.Close()
	return errors.Join(writeErr, closeErr)
}
