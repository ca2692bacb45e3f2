package sicp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sicp package.
var (
	// ErrColorOutOfRange is returned when a colour component is outside 0-255.
	ErrColorOutOfRange = errors.New("sicp: color values must be in range 0-255")

	// ErrDeviceNotFound is returned when a manager operation names an
	// identifier with no configured panel.
	ErrDeviceNotFound = errors.New("sicp: device not found")

	// ErrInvalidConfig is returned when a device configuration fails
	// validation.
	ErrInvalidConfig = errors.New("sicp: invalid device config")
)

// ConnectionError reports a network-layer failure reaching a panel:
// refused, timeout, reset, or an I/O error mid-exchange.
//
// Connection errors are transient and are the only errors the
// RetryExecutor retries.
type ConnectionError struct {
	Host  string
	Port  int
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sicp: unable to reach %s:%d: %v", e.Host, e.Port, e.Cause)
}

// Unwrap exposes the underlying socket error for errors.Is/As chains.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports a malformed or unexpected reply: short frame,
// unknown command echo, bad payload byte, or an LED confirmation mismatch.
//
// Protocol errors indicate a reply that was received but cannot be
// trusted; a retry is unlikely to fix them and they surface immediately.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "sicp: protocol error: " + e.Reason
}

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
