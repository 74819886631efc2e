package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/pkg/driver"
)

func newUSB(t *testing.T, host USBHost, hint string) *USBDriver {
	t.Helper()
	d, err := NewUSBDriver(host, nil, hint, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestUSBConnectSelectsFirstConfiguration(t *testing.T) {
	dev := &MockUSBDevice{Configs: []int{1, 2}}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")

	require.NoError(t, d.Connect(context.Background()))

	assert.True(t, d.IsConnected())
	assert.Equal(t, 1, dev.Selected)
	assert.Equal(t, []string{"select", "claim"}, dev.Calls)

	info := d.DeviceInfo()
	assert.True(t, info.Connected)
	assert.Equal(t, "04b8", info.VendorID)
}

func TestUSBConnectKeepsActiveConfiguration(t *testing.T) {
	dev := &MockUSBDevice{Active: 2, Configs: []int{1, 2}}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")

	require.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, 2, dev.Selected)
}

func TestUSBConnectFiltersByVendor(t *testing.T) {
	host := &MockUSBHost{Device: &MockUSBDevice{Configs: []int{1}}}
	d := newUSB(t, host, "")
	require.NoError(t, d.Connect(context.Background()))

	require.Len(t, host.Filters, len(DefaultUSBVendors))
	assert.Equal(t, USBFilter{VendorID: 0x04B8}, host.Filters[0])

	host = &MockUSBHost{Device: &MockUSBDevice{Configs: []int{1}}}
	d = newUSB(t, host, "0x0519:0003")
	require.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, []USBFilter{{VendorID: 0x0519, ProductID: 0x0003}}, host.Filters)
}

func TestUSBInvalidHint(t *testing.T) {
	_, err := NewUSBDriver(&MockUSBHost{}, nil, "epson", zap.NewNop())
	assert.Equal(t, driver.KindConfigurationError, driver.KindOf(err))
}

func TestUSBConnectChooserDismissed(t *testing.T) {
	d := newUSB(t, &MockUSBHost{Err: driver.ErrDeviceNotSelected}, "")

	err := d.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, driver.KindDeviceNotSelected, driver.KindOf(err))
	assert.False(t, d.IsConnected())

	d = newUSB(t, &MockUSBHost{}, "")
	assert.Equal(t, driver.KindDeviceNotSelected, driver.KindOf(d.Connect(context.Background())))
}

func TestUSBConnectEnumerationFailure(t *testing.T) {
	d := newUSB(t, &MockUSBHost{Err: errors.New("libusb: io error [code -1]")}, "")

	err := d.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, driver.KindConnectionLost, driver.KindOf(err))
	assert.NotErrorIs(t, err, driver.ErrDeviceNotSelected)
	assert.False(t, d.IsConnected())
}

func TestUSBConnectPermissionDenied(t *testing.T) {
	d := newUSB(t, &MockUSBHost{Err: driver.ErrPermissionDenied}, "")
	assert.Equal(t, driver.KindPermissionDenied, driver.KindOf(d.Connect(context.Background())))
}

func TestUSBConnectClaimFailureClosesDevice(t *testing.T) {
	dev := &MockUSBDevice{Configs: []int{1}, ClaimErr: errors.New("resource busy")}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")

	err := d.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"select", "claim", "close"}, dev.Calls)
	assert.False(t, d.IsConnected())
}

func TestUSBSendSingleBulkTransfer(t *testing.T) {
	dev := &MockUSBDevice{Configs: []int{1}}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")
	require.NoError(t, d.Connect(context.Background()))

	payload := make([]byte, 4096)
	require.NoError(t, d.Send(context.Background(), payload))

	require.Len(t, dev.Transfers, 1)
	assert.Len(t, dev.Transfers[0], 4096)
}

func TestUSBSendShortWrite(t *testing.T) {
	dev := &MockUSBDevice{
		Configs:    []int{1},
		OnTransfer: func(ctx context.Context, data []byte) (int, error) { return len(data) - 1, nil },
	}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")
	require.NoError(t, d.Connect(context.Background()))

	err := d.Send(context.Background(), []byte("abc"))
	assert.Equal(t, driver.KindWriteFailure, driver.KindOf(err))
}

func TestUSBSendDeviceGone(t *testing.T) {
	dev := &MockUSBDevice{
		Configs:    []int{1},
		OnTransfer: func(ctx context.Context, data []byte) (int, error) { return 0, driver.ErrDeviceGone },
	}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")
	require.NoError(t, d.Connect(context.Background()))

	assert.Equal(t, driver.KindConnectionLost, driver.KindOf(d.Send(context.Background(), []byte("abc"))))
}

func TestUSBSendNotConnected(t *testing.T) {
	d := newUSB(t, &MockUSBHost{}, "")
	assert.Equal(t, driver.KindNotConnected, driver.KindOf(d.Send(context.Background(), []byte("x"))))
}

func TestUSBDisconnectRunsBothSteps(t *testing.T) {
	releaseErr := errors.New("release failed")
	dev := &MockUSBDevice{Configs: []int{1}, ReleaseErr: releaseErr}
	d := newUSB(t, &MockUSBHost{Device: dev}, "")
	require.NoError(t, d.Connect(context.Background()))

	err := d.Disconnect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, releaseErr)
	assert.Equal(t, []string{"select", "claim", "release", "close"}, dev.Calls)
	assert.False(t, d.IsConnected())

	// idempotent
	assert.NoError(t, d.Disconnect(context.Background()))
}

func TestParseUSBID(t *testing.T) {
	v, p, err := ParseUSBID("04b8:0e28")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x04B8), v)
	assert.Equal(t, uint16(0x0E28), p)

	_, _, err = ParseUSBID("04b8")
	assert.Error(t, err)
	_, _, err = ParseUSBID("zz:01")
	assert.Error(t, err)

	assert.Equal(t, "04b8", FormatUSBID(0x04B8))
}
