package candiag

import (
	"errors"
	"fmt"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var ue unrecoverableError
	return !errors.As(err, &ue)
}

var (
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrNotAcknowledged   = errors.New("node did not acknowledge request")
	ErrUnsupported       = errors.New("operation not supported by transport")
	ErrSessionCancelled  = errors.New("diagnostic session cancelled")
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrTransportNotReady = errors.New("transport not open")
)

// InvalidFrameError is returned by the codec before any I/O happens.
type InvalidFrameError struct {
	Field  string
	Value  uint32
	Reason string
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame: %s=%d: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidFrameError) Unwrap() error {
	return ErrInvalidFrame
}

// TransportError is a failed send, receive, status or reinit call. Unless
// wrapped with Unrecoverable it is worth retrying.
type TransportError struct {
	Op        string
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ProtocolFault is raised when the bus is off or the error counters grew
// past the configured threshold.
type ProtocolFault struct {
	Status    BusStatus
	Reason    string
	Recovered bool
	Err       error // reinit failure, nil when recovered
}

func (e *ProtocolFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol fault: %s (recovery failed: %v)", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol fault: %s", e.Reason)
}

func (e *ProtocolFault) Unwrap() error {
	return e.Err
}
