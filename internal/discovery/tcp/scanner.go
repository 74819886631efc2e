// internal/discovery/tcp/scanner.go
package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-printer/internal/model"
)

// DialFunc opens a TCP connection; net.Dialer.DialContext by default
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Scanner probes subnets for hosts accepting raw print connections
type Scanner struct {
	logger *zap.Logger
	config *Config
	dial   DialFunc
}

// Config for TCP scanner
type Config struct {
	NetworkRanges []string      `json:"network_ranges"`
	CommonPorts   []int         `json:"common_ports"`
	ConnTimeout   time.Duration `json:"connection_timeout"`
	MaxConcurrent int           `json:"max_concurrent"`
	MaxHosts      int           `json:"max_hosts"`
	Identify      bool          `json:"identify"`
}

// printer ID requests (GS I n); replies are framed as 0x5F ... NUL
var (
	requestManufacturer = []byte{0x1D, 0x49, 0x42}
	requestModel        = []byte{0x1D, 0x49, 0x43}
)

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			NetworkRanges: []string{"192.168.1.0/24"},
			CommonPorts:   []int{model.DefaultPrinterPort},
			ConnTimeout:   500 * time.Millisecond,
			MaxConcurrent: 64,
			MaxHosts:      1024,
			Identify:      true,
		}
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 64
	}
	if config.MaxHosts <= 0 {
		config.MaxHosts = 1024
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 500 * time.Millisecond
	}
	if len(config.CommonPorts) == 0 {
		config.CommonPorts = []int{model.DefaultPrinterPort}
	}

	dialer := &net.Dialer{}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
		dial:   dialer.DialContext,
	}
}

// WithDialer replaces the dial function
func (s *Scanner) WithDialer(dial DialFunc) *Scanner {
	s.dial = dial
	return s
}

// ScannerType returns scanner type
func (s *Scanner) ScannerType() string {
	return "tcp"
}

// IsAvailable reports true; plain TCP dialing needs no privileges
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan probes the configured ranges and ports
func (s *Scanner) Scan(ctx context.Context) ([]model.DiscoveredPrinter, error) {
	return s.ScanNetwork(ctx, nil, nil, 0)
}

type target struct {
	host string
	port int
}

// ScanNetwork probes every host of subnets on every port. Empty arguments use
// the configured defaults. Results follow subnet, host and port order.
func (s *Scanner) ScanNetwork(ctx context.Context, subnets []string, ports []int, timeout time.Duration) ([]model.DiscoveredPrinter, error) {
	if len(subnets) == 0 {
		subnets = s.config.NetworkRanges
	}
	if len(ports) == 0 {
		ports = s.config.CommonPorts
	}
	if timeout <= 0 {
		timeout = s.config.ConnTimeout
	}

	for _, p := range ports {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid port %d", p)
		}
	}

	var targets []target
	budget := s.config.MaxHosts
	for _, subnet := range subnets {
		hosts, err := ExpandSubnet(subnet, budget)
		if err != nil {
			return nil, err
		}
		budget -= len(hosts)
		for _, h := range hosts {
			for _, p := range ports {
				targets = append(targets, target{host: h, port: p})
			}
		}
	}

	start := time.Now()
	s.logger.Info("Starting TCP network scan",
		zap.Strings("subnets", subnets),
		zap.Ints("ports", ports),
		zap.Int("targets", len(targets)),
	)

	results := make([]*model.DiscoveredPrinter, len(targets))
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t target) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.probe(ctx, t, timeout)
		}(i, t)
	}
	wg.Wait()

	found := []model.DiscoveredPrinter{}
	for _, r := range results {
		if r != nil {
			found = append(found, *r)
		}
	}

	s.logger.Info("TCP scan completed",
		zap.Int("printers_found", len(found)),
		zap.Duration("scan_duration", time.Since(start)),
	)
	return found, ctx.Err()
}

func (s *Scanner) probe(ctx context.Context, t target, timeout time.Duration) *model.DiscoveredPrinter {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	conn, err := s.dial(dialCtx, "tcp", addr)
	if err != nil {
		return nil
	}
	defer conn.Close()

	printer := &model.DiscoveredPrinter{
		Name:       fmt.Sprintf("Network Printer (%s)", addr),
		Address:    t.host,
		Port:       t.port,
		Connection: model.ConnectionNetwork,
	}

	if s.config.Identify {
		printer.Manufacturer = queryPrinterID(conn, requestManufacturer, timeout)
		printer.Model = queryPrinterID(conn, requestModel, timeout)
		if printer.Model != "" {
			printer.Name = strings.TrimSpace(printer.Manufacturer + " " + printer.Model)
		}
	}

	s.logger.Debug("Printer port open", zap.String("address", addr), zap.String("model", printer.Model))
	return printer
}

// queryPrinterID sends a GS I request and returns the reply text, or ""
// when the device stays silent.
func queryPrinterID(conn net.Conn, request []byte, timeout time.Duration) string {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	if _, err := conn.Write(request); err != nil {
		return ""
	}

	buf := make([]byte, 0, 64)
	chunk := make([]byte, 64)
	for len(buf) < 256 {
		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if i := bytes.IndexByte(buf, 0x00); i >= 0 {
			return parsePrinterID(buf[:i])
		}
		if err != nil {
			break
		}
	}
	return ""
}

func parsePrinterID(reply []byte) string {
	i := bytes.IndexByte(reply, 0x5F)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(string(reply[i+1:]))
}

// ExpandSubnet lists the IPv4 host addresses of a CIDR block, or returns a
// bare address as is. Network and broadcast addresses are skipped for
// blocks larger than /31.
func ExpandSubnet(subnet string, maxHosts int) ([]string, error) {
	subnet = strings.TrimSpace(subnet)
	if !strings.Contains(subnet, "/") {
		ip := net.ParseIP(subnet)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", subnet)
		}
		if maxHosts < 1 {
			return nil, fmt.Errorf("scan exceeds host limit")
		}
		return []string{ip.To4().String()}, nil
	}

	_, ipnet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", subnet, err)
	}
	base := ipnet.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("subnet %q is not IPv4", subnet)
	}

	ones, bits := ipnet.Mask.Size()
	size := uint64(1) << uint(bits-ones)
	first, last := uint64(0), size-1
	if size > 2 {
		first, last = 1, size-2
	}
	if count := last - first + 1; count > uint64(maxHosts) {
		return nil, fmt.Errorf("subnet %s has %d hosts, limit is %d", subnet, count, maxHosts)
	}

	start := binary.BigEndian.Uint32(base)
	hosts := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, start+uint32(i))
		hosts = append(hosts, ip.String())
	}
	return hosts, nil
}
