package driver

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapClassifiesSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrDeviceNotSelected, KindDeviceNotSelected},
		{fmt.Errorf("chooser: %w", ErrPermissionDenied), KindPermissionDenied},
		{ErrServiceNotFound, KindServiceNotSupported},
		{ErrDeviceGone, KindConnectionLost},
		{io.ErrShortWrite, KindWriteFailure},
	}

	for _, tt := range tests {
		err := Wrap("send", KindWriteFailure, tt.err)
		assert.Equal(t, tt.want, KindOf(err), tt.err.Error())
		assert.ErrorIs(t, err, tt.err)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := NewError(KindConfigurationError, "connect", "address is required", nil)
	err := Wrap("initialize", KindWriteFailure, inner)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindConfigurationError, de.Kind)
	assert.Equal(t, "connect ConfigurationError: address is required", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap("send", KindWriteFailure, nil))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestFailedResult(t *testing.T) {
	r := Failed(NewError(KindDeviceNotSelected, "connect", "", ErrDeviceNotSelected), time.Millisecond)
	assert.False(t, r.Success)
	assert.Equal(t, "DeviceNotSelected", r.ErrorCode)
	assert.Contains(t, r.ErrorMessage, "no device selected")
}
