package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RidgeA/bus-rpc/transport"
	"github.com/RidgeA/bus-rpc/types"
)

// Client calls procedures served over a Bus.
//
// Calls block until the result arrives, every attempt timed out, or ctx is
// done. A Client is safe for concurrent use; each call owns its own reply
// address.
type Client struct {
	bus      transport.Bus
	cfg      Config
	resolver *SubjectResolver
	invoker  *retryingInvoker
	logger   Logger
	metrics  MetricsCollector
	closed   atomic.Bool
}

// NewClient creates a client publishing on bus. The bus stays owned by the caller.
func NewClient(bus transport.Bus, opts ...OptionsFunc) (*Client, error) {
	if bus == nil {
		return nil, ErrBusRequired
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &Client{
		bus:      bus,
		cfg:      o.cfg,
		resolver: NewSubjectResolver(o.cfg.SubjectPrefix),
		logger:   o.logger,
		metrics:  o.metrics,
	}
	c.invoker = &retryingInvoker{
		correlator: &replyCorrelator{
			bus:     bus,
			logger:  o.logger,
			metrics: o.metrics,
		},
		budget:        o.cfg.RetryBudget,
		ackTimeout:    o.cfg.AckTimeout,
		resultTimeout: o.cfg.ResultTimeout,
		logger:        o.logger,
		metrics:       o.metrics,
	}

	return c, nil
}

// Subject returns the subject requests for service and method are published on.
func (c *Client) Subject(service, method string) string {
	return c.resolver.Resolve(service, method)
}

// Call invokes method of service with payload and returns the result payload.
//
// An error matching ErrTimeout means no attempt got a result; the procedure
// may have run anyway.
func (c *Client) Call(ctx context.Context, service, method string, payload []byte) ([]byte, error) {
	return c.CallSubject(ctx, c.Subject(service, method), payload)
}

// CallSubject is Call for an already resolved subject.
func (c *Client) CallSubject(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	c.logger.Debug("Calling procedure", "subject", subject)
	start := time.Now()

	res, err := c.invoker.invoke(ctx, subject, payload)
	c.metrics.RecordCall(subject, callOutcome(err), time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}

	return res, nil
}

// Notify publishes payload to the procedure without waiting. The server runs
// the procedure but sends neither an ACK nor the result.
func (c *Client) Notify(service, method string, payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	subject := c.Subject(service, method)
	if err := c.bus.Publish(subject, payload, ""); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Shutdown makes later calls fail with ErrClientClosed. Calls already waiting
// are not interrupted.
func (c *Client) Shutdown() {
	if c.closed.CompareAndSwap(false, true) {
		c.logger.Info("Shutting down rpc client")
	}
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return types.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return types.OutcomeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.OutcomeCanceled
	default:
		return types.OutcomeError
	}
}
