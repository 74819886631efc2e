package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/pkg/driver"
)

func TestNetworkConnectRequiresAddress(t *testing.T) {
	sender := &MockSender{}
	d, err := NewNetworkDriver(sender, model.PrinterSettings{ConnectionKind: model.ConnectionNetwork}, zap.NewNop())
	require.NoError(t, err)

	err = d.Connect(context.Background())
	assert.Equal(t, driver.KindConfigurationError, driver.KindOf(err))
	assert.False(t, d.IsConnected())
	assert.Empty(t, sender.Payloads)
}

func TestNetworkSendForwardsDefaultPort(t *testing.T) {
	sender := &MockSender{}
	d, err := NewNetworkDriver(sender, model.PrinterSettings{
		ConnectionKind: model.ConnectionWiFi,
		Address:        "192.168.1.50",
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, d.Connect(context.Background()))
	assert.Empty(t, sender.Payloads, "connect performs no I/O")

	require.NoError(t, d.Send(context.Background(), []byte{0x1B, 0x40}))
	assert.Equal(t, "192.168.1.50", sender.Address)
	assert.Equal(t, 9100, sender.Port)
	assert.Equal(t, [][]byte{{0x1B, 0x40}}, sender.Payloads)

	info := d.DeviceInfo()
	assert.Equal(t, model.ConnectionWiFi, info.Connection)
	assert.Equal(t, 9100, info.Port)
}

func TestNetworkSendFailure(t *testing.T) {
	sender := &MockSender{OnForward: func(ctx context.Context, address string, port int, payload []byte) error {
		return errors.New("relay: connection refused")
	}}
	d, err := NewNetworkDriver(sender, model.PrinterSettings{Address: "10.0.0.9", Port: 9101}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))

	err = d.Send(context.Background(), []byte("x"))
	assert.Equal(t, driver.KindWriteFailure, driver.KindOf(err))
	assert.Equal(t, 9101, sender.Port)
}

func TestNetworkDisconnect(t *testing.T) {
	d, err := NewNetworkDriver(&MockSender{}, model.PrinterSettings{Address: "10.0.0.9"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Disconnect(context.Background()))

	assert.False(t, d.IsConnected())
	assert.Equal(t, driver.KindNotConnected, driver.KindOf(d.Send(context.Background(), []byte("x"))))
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	RegisterDefaultDrivers(reg, Platform{Network: &MockSender{}}, zap.NewNop())

	assert.True(t, reg.IsSupported(model.ConnectionWiFi))
	assert.False(t, reg.IsSupported(model.ConnectionUSB))
	assert.Equal(t, []model.ConnectionKind{model.ConnectionNetwork, model.ConnectionWiFi}, reg.Kinds())

	tr, err := reg.Create(model.PrinterSettings{ConnectionKind: model.ConnectionNetwork, Address: "10.0.0.1"})
	require.NoError(t, err)
	assert.IsType(t, &NetworkDriver{}, tr)

	_, err = reg.Create(model.PrinterSettings{ConnectionKind: model.ConnectionUSB})
	assert.Equal(t, driver.KindConfigurationError, driver.KindOf(err))
}
