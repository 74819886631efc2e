// pkg/driver/errors.go
package driver

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies transport failures
type ErrorKind string

const (
	KindDeviceNotSelected   ErrorKind = "DeviceNotSelected"
	KindPermissionDenied    ErrorKind = "PermissionDenied"
	KindServiceNotSupported ErrorKind = "ServiceNotSupported"
	KindConnectionLost      ErrorKind = "ConnectionLost"
	KindWriteFailure        ErrorKind = "WriteFailure"
	KindConfigurationError  ErrorKind = "ConfigurationError"
	KindNotConnected        ErrorKind = "NotConnected"
	KindBusy                ErrorKind = "Busy"
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindInternal            ErrorKind = "Internal"
)

// Sentinel errors returned by platform bindings
var (
	ErrDeviceNotSelected = errors.New("driver: no device selected")
	ErrPermissionDenied  = errors.New("driver: permission denied")
	ErrServiceNotFound   = errors.New("driver: printer service not found")
	ErrNotConnected      = errors.New("driver: not connected")
	ErrDeviceGone        = errors.New("driver: device disconnected")
)

// Error is a classified transport error
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Wrap classifies err for op. Errors that already carry a kind keep it;
// otherwise sentinels map to their kind and anything else becomes fallback.
func Wrap(op string, fallback ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	kind := classify(err)
	if kind == "" {
		kind = fallback
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, KindInternal when unclassified
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if kind := classify(err); kind != "" {
		return kind
	}
	return KindInternal
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDeviceNotSelected):
		return KindDeviceNotSelected
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrServiceNotFound):
		return KindServiceNotSupported
	case errors.Is(err, ErrDeviceGone):
		return KindConnectionLost
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindWriteFailure
	}
	return ""
}
