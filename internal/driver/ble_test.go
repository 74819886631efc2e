package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/pkg/driver"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func printerServer(profile BLEProfile, char *MockCharacteristic) *MockGATTServer {
	return &MockGATTServer{Services: map[string]*MockGATTService{
		profile.Service: {Characteristics: map[string]*MockCharacteristic{profile.Characteristic: char}},
	}}
}

func connectedBLE(t *testing.T, char *MockCharacteristic, rec *sleepRecorder) *BLEDriver {
	t.Helper()
	host := &MockBLEHost{Peripheral: &MockPeripheral{Server: printerServer(DefaultBLEProfiles[0], char)}}
	d, err := NewBLEDriver(host, BLEOptions{Sleep: rec.Sleep}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))
	return d
}

func TestBLEChunking(t *testing.T) {
	tests := []struct {
		size       int
		wantWrites int
	}{
		{0, 0},
		{1, 1},
		{512, 1},
		{513, 2},
		{1024, 2},
		{1300, 3},
	}

	for _, tt := range tests {
		char := &MockCharacteristic{}
		rec := &sleepRecorder{}
		d := connectedBLE(t, char, rec)

		require.NoError(t, d.Send(context.Background(), make([]byte, tt.size)))

		assert.Len(t, char.Writes, tt.wantWrites, "size %d", tt.size)
		total := 0
		for _, w := range char.Writes {
			assert.LessOrEqual(t, len(w), MaxBLEChunk)
			total += len(w)
		}
		assert.Equal(t, tt.size, total)

		wantDelays := tt.wantWrites - 1
		if wantDelays < 0 {
			wantDelays = 0
		}
		assert.Len(t, rec.delays, wantDelays, "size %d", tt.size)
		for _, delay := range rec.delays {
			assert.Equal(t, DefaultBLEChunkDelay, delay)
		}
	}
}

func TestBLEPreservesOrder(t *testing.T) {
	char := &MockCharacteristic{}
	d := connectedBLE(t, char, &sleepRecorder{})

	payload := make([]byte, 1100)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, d.Send(context.Background(), payload))

	var joined []byte
	for _, w := range char.Writes {
		joined = append(joined, w...)
	}
	assert.Equal(t, payload, joined)
}

func TestBLEFallbackService(t *testing.T) {
	char := &MockCharacteristic{}
	server := printerServer(DefaultBLEProfiles[1], char)
	host := &MockBLEHost{Peripheral: &MockPeripheral{Server: server}}

	d, err := NewBLEDriver(host, BLEOptions{Sleep: (&sleepRecorder{}).Sleep}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))

	assert.Equal(t, []string{DefaultBLEProfiles[0].Service, DefaultBLEProfiles[1].Service}, server.Requested)
	assert.Equal(t, []string{DefaultBLEProfiles[0].Service, DefaultBLEProfiles[1].Service}, host.Request.ServiceUUIDs)
	assert.Equal(t, DefaultBLENamePrefixes, host.Request.NamePrefixes)

	info := d.DeviceInfo()
	assert.Equal(t, "TM-P20", info.Name)
	assert.True(t, info.Connected)
}

func TestBLEServiceNotSupported(t *testing.T) {
	server := &MockGATTServer{Services: map[string]*MockGATTService{}}
	host := &MockBLEHost{Peripheral: &MockPeripheral{Server: server}}
	d, err := NewBLEDriver(host, BLEOptions{}, zap.NewNop())
	require.NoError(t, err)

	err = d.Connect(context.Background())
	assert.Equal(t, driver.KindServiceNotSupported, driver.KindOf(err))
	assert.Equal(t, 1, server.Disconnects)
	assert.False(t, d.IsConnected())
}

func TestBLEMissingCharacteristic(t *testing.T) {
	server := &MockGATTServer{Services: map[string]*MockGATTService{
		DefaultBLEProfiles[0].Service: {Characteristics: map[string]*MockCharacteristic{}},
	}}
	d, err := NewBLEDriver(&MockBLEHost{Peripheral: &MockPeripheral{Server: server}}, BLEOptions{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, driver.KindServiceNotSupported, driver.KindOf(d.Connect(context.Background())))
}

func TestBLEChooserDismissed(t *testing.T) {
	d, err := NewBLEDriver(&MockBLEHost{Err: driver.ErrDeviceNotSelected}, BLEOptions{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, driver.KindDeviceNotSelected, driver.KindOf(d.Connect(context.Background())))
}

func TestBLEScanFailure(t *testing.T) {
	d, err := NewBLEDriver(&MockBLEHost{Err: errors.New("bluetooth scan: adapter busy")}, BLEOptions{}, zap.NewNop())
	require.NoError(t, err)

	err = d.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, driver.KindConnectionLost, driver.KindOf(err))
	assert.False(t, d.IsConnected())
}

func TestBLEWriteFailureStopsSend(t *testing.T) {
	char := &MockCharacteristic{FailAt: 1, Err: errors.New("gatt write failed")}
	rec := &sleepRecorder{}
	d := connectedBLE(t, char, rec)

	err := d.Send(context.Background(), make([]byte, 1500))
	assert.Equal(t, driver.KindWriteFailure, driver.KindOf(err))
	assert.Len(t, char.Writes, 1)
	assert.Len(t, rec.delays, 1)
}

func TestBLEDisconnectUnconditional(t *testing.T) {
	char := &MockCharacteristic{}
	host := &MockBLEHost{Peripheral: &MockPeripheral{Server: printerServer(DefaultBLEProfiles[0], char)}}
	host.Peripheral.Server.DisconnectErr = errors.New("already gone")
	d, err := NewBLEDriver(host, BLEOptions{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))

	assert.Error(t, d.Disconnect(context.Background()))
	assert.False(t, d.IsConnected())
	assert.Equal(t, driver.KindNotConnected, driver.KindOf(d.Send(context.Background(), []byte("x"))))
	assert.NoError(t, d.Disconnect(context.Background()))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
