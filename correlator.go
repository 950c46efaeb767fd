package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RidgeA/bus-rpc/transport"
)

// pendingCall is the state of one in-flight attempt. Its reply address
// receives at most an ACK and a result; anything after the first result is
// dropped.
type pendingCall struct {
	acked   chan struct{}
	result  chan []byte
	ackOnce sync.Once
}

func newPendingCall() *pendingCall {
	return &pendingCall{
		acked:  make(chan struct{}),
		result: make(chan []byte, 1),
	}
}

func (p *pendingCall) deliver(msg *transport.Msg) {
	if isAck(msg.Data) {
		p.ackOnce.Do(func() { close(p.acked) })
		return
	}

	select {
	case p.result <- msg.Data:
	default:
	}
}

// replyCorrelator performs single request attempts: publish, then wait for
// the ACK and the result on a fresh reply address.
type replyCorrelator struct {
	bus     transport.Bus
	logger  Logger
	metrics MetricsCollector
}

// call publishes payload to subject and waits for the reply.
//
// The ACK wait ends early when the result itself arrives. Missing the ACK
// deadline only moves on to the result wait, which then gets the full
// resultTimeout. A result already delivered when a wait gives up is still
// returned; ErrTimeout means none arrived.
//
// The reply address is unsubscribed before call returns.
func (c *replyCorrelator) call(ctx context.Context, subject string, payload []byte, ackTimeout, resultTimeout time.Duration) ([]byte, error) {
	pc := newPendingCall()
	inbox := c.bus.NewInbox()

	sub, err := c.bus.Subscribe(inbox, "", pc.deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe to reply address: %w", err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Debug("failed to release reply address", "inbox", inbox, "error", err)
		}
	}()

	if err := c.bus.Publish(subject, payload, inbox); err != nil {
		return nil, fmt.Errorf("publish to %s: %w", subject, err)
	}

	start := time.Now()
	ackTimer := time.NewTimer(ackTimeout)
	defer ackTimer.Stop()

	select {
	case res := <-pc.result:
		c.metrics.RecordAckWait(subject, true, time.Since(start).Seconds())
		return res, nil
	case <-pc.acked:
		c.metrics.RecordAckWait(subject, true, time.Since(start).Seconds())
	case <-ackTimer.C:
		c.metrics.RecordAckWait(subject, false, time.Since(start).Seconds())
		c.logger.Debug("no ack received", "subject", subject, "ackTimeout", ackTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	resultTimer := time.NewTimer(resultTimeout)
	defer resultTimer.Stop()

	return awaitResult(ctx, pc, resultTimer.C, subject, resultTimeout)
}

// awaitResult waits for the result until expired fires. A result delivered by
// the time expired fires still wins over the timeout.
func awaitResult(ctx context.Context, pc *pendingCall, expired <-chan time.Time, subject string, timeout time.Duration) ([]byte, error) {
	select {
	case res := <-pc.result:
		return res, nil
	case <-expired:
		select {
		case res := <-pc.result:
			return res, nil
		default:
		}
		return nil, fmt.Errorf("%w: no result on %s within %s", ErrTimeout, subject, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
