// internal/relay/server.go
package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/driver"
	"pos-printer/internal/model"
)

// DefaultAllowedNetworks limits relay destinations to local networks
var DefaultAllowedNetworks = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8"}

// NetworkScanner probes the local network for raw printer ports
type NetworkScanner interface {
	ScanNetwork(ctx context.Context, subnets []string, ports []int, timeout time.Duration) ([]model.DiscoveredPrinter, error)
}

// ServerConfig tunes the relay handlers
type ServerConfig struct {
	AllowedNetworks []string
	MaxPayloadBytes int
	WriteTimeout    time.Duration
	MaxProbeTimeout time.Duration
}

// Server exposes the relay protocol over gin. It performs the socket writes
// the printing service cannot do itself.
type Server struct {
	writer  driver.Sender
	scanner NetworkScanner
	allowed []*net.IPNet
	config  ServerConfig
	logger  *zap.Logger
}

// NewServer creates relay handlers; scanner may be nil to disable scanning
func NewServer(writer driver.Sender, scanner NetworkScanner, config ServerConfig, logger *zap.Logger) (*Server, error) {
	if config.MaxPayloadBytes <= 0 {
		config.MaxPayloadBytes = 4 << 20
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.MaxProbeTimeout <= 0 {
		config.MaxProbeTimeout = 5 * time.Second
	}

	allowed := make([]*net.IPNet, 0, len(config.AllowedNetworks))
	for _, cidr := range config.AllowedNetworks {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed network %q: %w", cidr, err)
		}
		allowed = append(allowed, ipnet)
	}

	return &Server{
		writer:  writer,
		scanner: scanner,
		allowed: allowed,
		config:  config,
		logger:  logger.With(zap.String("component", "relay_server")),
	}, nil
}

// RegisterRoutes mounts the relay endpoints
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST(PrintPath, s.Print)
	r.POST(ScanPath, s.Scan)
}

// Print writes a payload to a printer socket
func (s *Server) Print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PrintResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if req.Port == 0 {
		req.Port = model.DefaultPrinterPort
	}

	if err := s.validate(req); err != nil {
		c.JSON(http.StatusBadRequest, PrintResponse{Error: err.Error(), JobID: req.JobID})
		return
	}

	logger := s.logger.With(
		zap.String("job_id", req.JobID),
		zap.String("address", req.Address),
		zap.Int("port", req.Port),
	)

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := s.writer.Forward(ctx, req.Address, req.Port, req.Payload); err != nil {
		logger.Warn("Relay write failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		c.JSON(http.StatusBadGateway, PrintResponse{Error: err.Error(), JobID: req.JobID})
		return
	}

	logger.Info("Relay write completed",
		zap.Int("bytes", len(req.Payload)),
		zap.Duration("duration", time.Since(start)),
	)
	c.JSON(http.StatusOK, PrintResponse{
		Success:      true,
		BytesWritten: len(req.Payload),
		JobID:        req.JobID,
	})
}

func (s *Server) validate(req PrintRequest) error {
	if req.Port < 1 || req.Port > 65535 {
		return fmt.Errorf("invalid port %d", req.Port)
	}
	if len(req.Payload) == 0 {
		return fmt.Errorf("payload is empty")
	}
	if len(req.Payload) > s.config.MaxPayloadBytes {
		return fmt.Errorf("payload of %d bytes exceeds limit of %d", len(req.Payload), s.config.MaxPayloadBytes)
	}
	if len(s.allowed) == 0 {
		return nil
	}
	ip := net.ParseIP(req.Address)
	if ip == nil {
		return fmt.Errorf("address %q must be an IP literal", req.Address)
	}
	if !s.permits(ip, net.IPv4len*8) {
		return fmt.Errorf("address %s is outside the allowed networks", req.Address)
	}
	return nil
}

// permits reports whether the block ip/ones lies inside one allowed network
func (s *Server) permits(ip net.IP, ones int) bool {
	if len(s.allowed) == 0 {
		return true
	}
	for _, n := range s.allowed {
		allowedOnes, _ := n.Mask.Size()
		if n.Contains(ip) && ones >= allowedOnes {
			return true
		}
	}
	return false
}

// validateScan checks requested subnets and ports against the relay limits
// and clamps the probe timeout
func (s *Server) validateScan(req *ScanRequest) error {
	for _, subnet := range req.Subnets {
		subnet = strings.TrimSpace(subnet)
		var (
			ip   net.IP
			ones int
		)
		if strings.Contains(subnet, "/") {
			_, ipnet, err := net.ParseCIDR(subnet)
			if err != nil {
				return fmt.Errorf("invalid subnet %q", subnet)
			}
			ip = ipnet.IP
			ones, _ = ipnet.Mask.Size()
		} else {
			if ip = net.ParseIP(subnet); ip == nil {
				return fmt.Errorf("invalid address %q", subnet)
			}
			ones = net.IPv4len * 8
		}
		if !s.permits(ip, ones) {
			return fmt.Errorf("subnet %s is outside the allowed networks", subnet)
		}
	}
	for _, port := range req.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %d", port)
		}
	}
	if req.TimeoutMs < 0 {
		req.TimeoutMs = 0
	}
	if max := int(s.config.MaxProbeTimeout.Milliseconds()); req.TimeoutMs > max {
		req.TimeoutMs = max
	}
	return nil
}

// Scan probes configured subnets for printers
func (s *Server) Scan(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusNotImplemented, ScanResponse{Error: "network scanning is disabled"})
		return
	}

	var req ScanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ScanResponse{Error: "invalid request: " + err.Error()})
			return
		}
	}

	if err := s.validateScan(&req); err != nil {
		s.logger.Warn("Relay scan rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, ScanResponse{Error: err.Error(), Printers: []model.DiscoveredPrinter{}})
		return
	}

	printers, err := s.scanner.ScanNetwork(c.Request.Context(), req.Subnets, req.Ports,
		time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		s.logger.Warn("Relay scan failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, ScanResponse{Error: err.Error()})
		return
	}
	if printers == nil {
		printers = []model.DiscoveredPrinter{}
	}

	s.logger.Info("Relay scan completed", zap.Int("found", len(printers)))
	c.JSON(http.StatusOK, ScanResponse{Success: true, Printers: printers})
}
