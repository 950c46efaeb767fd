package rpc

import "errors"

// Sentinel errors returned by clients and servers.
var (
	// ErrTimeout is returned when no result arrived for any attempt of a call.
	// The procedure may still have run.
	ErrTimeout = errors.New("rpc: timeout")

	// ErrBusRequired is returned when a nil bus is passed to a constructor.
	ErrBusRequired = errors.New("rpc: bus is required")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("rpc: invalid configuration")

	// ErrClientClosed is returned by calls made after Shutdown.
	ErrClientClosed = errors.New("rpc: client closed")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("rpc: server already started")

	// ErrServerStopped is returned when subscriptions are requested after shutdown began.
	ErrServerStopped = errors.New("rpc: server stopped")

	// ErrNoProcedures is returned by Run when nothing was registered.
	ErrNoProcedures = errors.New("rpc: no procedures registered")

	// ErrDuplicateProcedure is returned when two handlers resolve to the same subject.
	ErrDuplicateProcedure = errors.New("rpc: procedure already registered")
)
