package rpc

import "github.com/RidgeA/bus-rpc/types"

type (
	// Logger is the structured logger used by clients and servers.
	Logger = types.Logger
	// MetricsCollector receives client and server metrics.
	MetricsCollector = types.MetricsCollector
	// State is the server lifecycle state.
	State = types.State
)

const (
	StateStarting = types.StateStarting
	StateRunning  = types.StateRunning
	StateStopping = types.StateStopping
	StateStopped  = types.StateStopped
)
