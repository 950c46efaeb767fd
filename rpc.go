// Package rpc runs request/reply procedure calls over a publish/subscribe bus.
//
// A Client publishes a request to the subject of a procedure and waits on a
// private reply address for two messages: an ACK from whichever server picked
// the request up, then the result. A Server subscribes to the subject of every
// registered procedure in a queue group named after the subject, so servers
// sharing a bus split the load, and runs procedures on a bounded worker pool.
//
// Procedure failures and overload are never reported to the caller; both look
// like a timeout, and timed out calls are retried. A timeout therefore means
// "unknown outcome": the procedure may have run, possibly more than once.
package rpc

import (
	"bytes"
	"os"
	"strconv"
	"time"

	"github.com/RidgeA/bus-rpc/internal/logging"
	"github.com/RidgeA/bus-rpc/internal/metrics"
)

const defaultName = "busrpc"

// ackMessage is published to the reply address as soon as a server receives
// a request.
var ackMessage = []byte{0x01}

type (
	// HandlerFunc implements one procedure. The payload encoding is up to the
	// caller and the handler.
	HandlerFunc func([]byte) ([]byte, error)

	// OptionsFunc configures a Client or a Server.
	OptionsFunc func(*options)

	options struct {
		cfg     Config
		name    string
		logger  Logger
		metrics MetricsCollector
	}
)

func SetConfig(cfg Config) OptionsFunc {
	return func(o *options) {
		o.cfg = cfg
	}
}

func SetName(name string) OptionsFunc {
	return func(o *options) {
		o.name = name
	}
}

func SetLogger(logger Logger) OptionsFunc {
	return func(o *options) {
		o.logger = logger
	}
}

func SetMetrics(m MetricsCollector) OptionsFunc {
	return func(o *options) {
		o.metrics = m
	}
}

func SetAckTimeout(d time.Duration) OptionsFunc {
	return func(o *options) {
		o.cfg.AckTimeout = d
	}
}

func SetResultTimeout(d time.Duration) OptionsFunc {
	return func(o *options) {
		o.cfg.ResultTimeout = d
	}
}

// SetRetryBudget sets the total number of attempts per call, the first one included.
func SetRetryBudget(attempts int) OptionsFunc {
	return func(o *options) {
		o.cfg.RetryBudget = attempts
	}
}

func SetThreadPoolSize(n int) OptionsFunc {
	return func(o *options) {
		o.cfg.ThreadPoolSize = n
	}
}

// SetMaxQueue sets how many admitted requests may wait for a free worker.
func SetMaxQueue(n int) OptionsFunc {
	return func(o *options) {
		o.cfg.MaxQueue = n
	}
}

// SetShutdownTimeout bounds how long Run waits for running procedures on stop.
// Procedures still running after d keep the server in StateStopping.
func SetShutdownTimeout(d time.Duration) OptionsFunc {
	return func(o *options) {
		o.cfg.ShutdownTimeout = d
	}
}

func newOptions(opts []OptionsFunc) (*options, error) {
	o := &options{
		cfg:     DefaultConfig(),
		name:    defaultName,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}

	for _, setter := range opts {
		setter(o)
	}

	SetDefaults(&o.cfg)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}

	return o, nil
}

func isAck(data []byte) bool {
	return bytes.Equal(data, ackMessage)
}

func createInstanceID(name string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown.host"
	}
	pid := strconv.Itoa(os.Getpid())
	return name + "." + pid + "." + host
}
