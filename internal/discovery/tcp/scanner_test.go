package tcp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/internal/model"
)

// listenPrinter accepts connections on 127.0.0.1 and answers printer ID
// requests when identify is set.
func listenPrinter(t *testing.T, identify bool) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 3)
				for {
					c.SetReadDeadline(time.Now().Add(2 * time.Second))
					if _, err := readFull(c, buf); err != nil {
						return
					}
					if !identify {
						continue
					}
					switch {
					case bytes.Equal(buf, requestManufacturer):
						c.Write(append([]byte{0x5F}, append([]byte("EPSON"), 0x00)...))
					case bytes.Equal(buf, requestModel):
						c.Write(append([]byte{0x5F}, append([]byte("TM-T88V"), 0x00)...))
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestScanNetworkFindsListener(t *testing.T) {
	port := listenPrinter(t, true)
	s := NewScanner(zap.NewNop(), &Config{Identify: true, ConnTimeout: time.Second})

	printers, err := s.ScanNetwork(context.Background(), []string{"127.0.0.1/32"}, []int{port}, 0)
	require.NoError(t, err)
	require.Len(t, printers, 1)

	p := printers[0]
	assert.Equal(t, "127.0.0.1", p.Address)
	assert.Equal(t, port, p.Port)
	assert.Equal(t, "EPSON", p.Manufacturer)
	assert.Equal(t, "TM-T88V", p.Model)
	assert.Equal(t, "EPSON TM-T88V", p.Name)
	assert.Equal(t, model.ConnectionNetwork, p.Connection)
}

func TestScanNetworkSilentPrinter(t *testing.T) {
	port := listenPrinter(t, false)
	s := NewScanner(zap.NewNop(), &Config{Identify: true, ConnTimeout: 200 * time.Millisecond})

	printers, err := s.ScanNetwork(context.Background(), []string{"127.0.0.1"}, []int{port}, 0)
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.Empty(t, printers[0].Model)
	assert.Contains(t, printers[0].Name, "127.0.0.1")
}

func TestScanNetworkClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewScanner(zap.NewNop(), &Config{ConnTimeout: 200 * time.Millisecond})
	printers, err := s.ScanNetwork(context.Background(), []string{"127.0.0.1/32"}, []int{port}, 0)
	require.NoError(t, err)
	assert.Empty(t, printers)
}

func TestScanNetworkUsesDialer(t *testing.T) {
	var dialed []string
	s := NewScanner(zap.NewNop(), &Config{ConnTimeout: time.Second, MaxConcurrent: 1}).
		WithDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
			dialed = append(dialed, address)
			return nil, &net.OpError{Op: "dial", Err: assert.AnError}
		})

	printers, err := s.ScanNetwork(context.Background(), []string{"10.0.0.0/30"}, []int{9100, 515}, 0)
	require.NoError(t, err)
	assert.Empty(t, printers)
	assert.ElementsMatch(t, []string{"10.0.0.1:9100", "10.0.0.1:515", "10.0.0.2:9100", "10.0.0.2:515"}, dialed)
}

func TestScanNetworkRejectsBadInput(t *testing.T) {
	s := NewScanner(zap.NewNop(), &Config{MaxHosts: 256})

	_, err := s.ScanNetwork(context.Background(), []string{"10.0.0.0/16"}, nil, 0)
	assert.ErrorContains(t, err, "limit")

	_, err = s.ScanNetwork(context.Background(), []string{"not-a-subnet/24"}, nil, 0)
	assert.Error(t, err)

	_, err = s.ScanNetwork(context.Background(), []string{"10.0.0.1"}, []int{70000}, 0)
	assert.ErrorContains(t, err, "invalid port")
}

func TestExpandSubnet(t *testing.T) {
	hosts, err := ExpandSubnet("192.168.1.0/24", 1024)
	require.NoError(t, err)
	assert.Len(t, hosts, 254)
	assert.Equal(t, "192.168.1.1", hosts[0])
	assert.Equal(t, "192.168.1.254", hosts[253])

	hosts, err = ExpandSubnet("192.168.1.77/24", 1024)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", hosts[0])

	hosts, err = ExpandSubnet("10.1.2.3/32", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1.2.3"}, hosts)

	hosts, err = ExpandSubnet("10.1.2.2/31", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1.2.2", "10.1.2.3"}, hosts)

	_, err = ExpandSubnet("fe80::/64", 1024)
	assert.Error(t, err)
}

func TestParsePrinterID(t *testing.T) {
	assert.Equal(t, "EPSON", parsePrinterID([]byte{0x5F, 'E', 'P', 'S', 'O', 'N'}))
	assert.Equal(t, "", parsePrinterID([]byte("garbage")))
}
