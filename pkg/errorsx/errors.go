package errorsx

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned by capture devices when the user or the OS refused access.
var ErrPermissionDenied = errors.New("permission denied")

// DeviceError reports a failed device acquisition. It ends the attempted start.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device %s unavailable", e.Device)
	}
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError builds a reasoned DeviceError. Permission failures get
// ReasonDeviceDenied, everything else ReasonDeviceUnavailable.
func NewDeviceError(device string, err error) error {
	reason := ReasonDeviceUnavailable
	if errors.Is(err, ErrPermissionDenied) {
		reason = ReasonDeviceDenied
	}
	return ReasonedError{Err: &DeviceError{Device: device, Err: err}, Reason: reason}
}

// TransportError reports a connection that failed to open or closed unexpectedly.
type TransportError struct {
	URL string
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s %s", e.Op, e.URL)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError builds a reasoned TransportError.
func NewTransportError(url, op string, err error, reason ReasonCode) error {
	return ReasonedError{Err: &TransportError{URL: url, Op: op, Err: err}, Reason: reason}
}

// DecodeError reports an inbound structured payload that could not be parsed.
// It is per-message and never fatal.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode structured payload (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError builds a reasoned DecodeError.
func NewDecodeError(size int, err error) error {
	return ReasonedError{Err: &DecodeError{Size: size, Err: err}, Reason: ReasonDecodeStructured}
}

// IsDeviceError reports whether err carries a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// IsTransportError reports whether err carries a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecodeError reports whether err carries a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
