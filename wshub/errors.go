package wshub

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentity is returned when registering an identity that is
	// already present in the registry.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrNotFound is returned for operations on an identity that is not in
	// the registry.
	ErrNotFound = errors.New("identity not found")

	// ErrConnectionClosed is returned for sends after a connection has left
	// the Open state.
	ErrConnectionClosed = errors.New("connection closed")
)

// TransportError wraps an I/O failure on the underlying socket. A transport
// error is terminal for its connection; it triggers teardown rather than
// propagating into application handlers.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError wraps a failure raised by an application handler, including
// recovered panics. Handler errors are logged and answered to the sender;
// they never tear down the connection loop.
type HandlerError struct {
	Route string
	Event string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s/%s failed: %v", e.Route, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
