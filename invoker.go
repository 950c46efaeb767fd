package rpc

import (
	"context"
	"errors"
	"time"
)

// retryingInvoker repeats timed out attempts up to a fixed budget. Every
// attempt runs the whole protocol again with a new reply address.
type retryingInvoker struct {
	correlator    *replyCorrelator
	budget        int
	ackTimeout    time.Duration
	resultTimeout time.Duration
	logger        Logger
	metrics       MetricsCollector
}

func (r *retryingInvoker) invoke(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	budget := max(r.budget, 1)

	var err error
	for attempt := 1; attempt <= budget; attempt++ {
		var res []byte
		res, err = r.correlator.call(ctx, subject, payload, r.ackTimeout, r.resultTimeout)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrTimeout) {
			return nil, err
		}

		if attempt < budget {
			r.metrics.RecordRetry(subject)
			r.logger.Warn("call timed out, retrying", "subject", subject, "attempt", attempt, "budget", budget)
		}
	}

	return nil, err
}
