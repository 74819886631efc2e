package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/internal/relay"
)

type fakeScanner struct {
	kind      string
	available bool
	printers  []model.DiscoveredPrinter
	err       error
	calls     int
}

func (f *fakeScanner) Scan(ctx context.Context) ([]model.DiscoveredPrinter, error) {
	f.calls++
	return f.printers, f.err
}

func (f *fakeScanner) ScannerType() string { return f.kind }
func (f *fakeScanner) IsAvailable() bool   { return f.available }

type fakeRelay struct {
	printers []model.DiscoveredPrinter
	err      error
	pingErr  error
	request  relay.ScanRequest
}

func (f *fakeRelay) Scan(ctx context.Context, req relay.ScanRequest) ([]model.DiscoveredPrinter, error) {
	f.request = req
	return f.printers, f.err
}

func (f *fakeRelay) Ping(ctx context.Context) error { return f.pingErr }

func TestScanAllSkipsUnavailableAndFailing(t *testing.T) {
	usb := &fakeScanner{kind: "usb", available: true, printers: []model.DiscoveredPrinter{{Name: "TM-T20III"}}}
	broken := &fakeScanner{kind: "broken", available: true, err: errors.New("boom")}
	offline := &fakeScanner{kind: "network", available: false}

	sm := NewScannerManager(zap.NewNop())
	sm.RegisterScanner(usb)
	sm.RegisterScanner(broken)
	sm.RegisterScanner(offline)

	printers := sm.ScanAll(context.Background())
	require.Len(t, printers, 1)
	assert.Equal(t, "TM-T20III", printers[0].Name)
	assert.Equal(t, 0, offline.calls)
	assert.Equal(t, 1, broken.calls)

	assert.Equal(t, []string{"broken", "usb"}, sm.AvailableScanners())
}

func TestScanByType(t *testing.T) {
	sm := NewScannerManager(zap.NewNop())
	sm.RegisterScanner(&fakeScanner{kind: "network", available: false})

	_, err := sm.ScanByType(context.Background(), "usb")
	assert.ErrorIs(t, err, ErrScannerNotFound)

	_, err = sm.ScanByType(context.Background(), "network")
	assert.ErrorIs(t, err, ErrScannerUnavailable)
	assert.ErrorContains(t, err, "network")
}

func TestRelayScannerFillsDefaults(t *testing.T) {
	client := &fakeRelay{printers: []model.DiscoveredPrinter{
		{Name: "EPSON TM-m30", Address: "192.168.1.50", Manufacturer: "EPSON", Model: "TM-m30"},
	}}
	req := relay.ScanRequest{Subnets: []string{"192.168.1.0/24"}}
	s := NewRelayScanner(client, req, zap.NewNop())

	assert.Equal(t, "network", s.ScannerType())
	assert.True(t, s.IsAvailable())

	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.Equal(t, model.DefaultPrinterPort, printers[0].Port)
	assert.Equal(t, model.ConnectionNetwork, printers[0].Connection)
	assert.Equal(t, req, client.request)
}

func TestRelayScannerUnavailable(t *testing.T) {
	s := NewRelayScanner(&fakeRelay{pingErr: errors.New("refused")}, relay.ScanRequest{}, zap.NewNop())
	assert.False(t, s.IsAvailable())
}

func TestRelayScannerError(t *testing.T) {
	s := NewRelayScanner(&fakeRelay{err: relay.ErrRelayRejected}, relay.ScanRequest{}, zap.NewNop())
	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, relay.ErrRelayRejected)
}
