package rpc

import (
	"github.com/RidgeA/bus-rpc/internal/gate"
	"github.com/RidgeA/bus-rpc/transport"
	"github.com/RidgeA/bus-rpc/types"
	"github.com/pkg/errors"
)

// workItem is one accepted request waiting for, or running on, the gate.
type workItem struct {
	payload []byte
	reply   string
	proc    *Procedure
}

// dispatcher serves the subscription of one procedure.
type dispatcher struct {
	proc    *Procedure
	bus     transport.Bus
	gate    *gate.Gate
	logger  Logger
	metrics MetricsCollector
}

// handle acknowledges the request and hands it to the gate. It never blocks
// on the procedure. When the gate is full the request is dropped and the
// caller sees a timeout.
func (d *dispatcher) handle(msg *transport.Msg) {
	if msg.Reply != "" {
		if err := d.bus.Publish(msg.Reply, ackMessage, ""); err != nil {
			d.logger.Warn("Failed to publish ack", "subject", d.proc.Subject, "error", err)
		}
	}

	item := workItem{payload: msg.Data, reply: msg.Reply, proc: d.proc}
	if d.gate.Submit(func() error { return d.execute(item) }) {
		return
	}

	d.metrics.RecordDispatch(d.proc.Subject, types.DispatchRejected)
	if d.gate.Closed() {
		d.logger.Warn("Server is stopping, dropping message", "subject", d.proc.Subject)
		return
	}
	d.logger.Error("Thread pool is full! Dropping message", "subject", d.proc.Subject)
}

// execute runs the procedure and publishes its result. A failed procedure
// publishes nothing; the returned error carries a stack for the gate's log.
func (d *dispatcher) execute(item workItem) error {
	res, err := invokeHandler(item.proc.Handler, item.payload)
	if err != nil {
		d.metrics.RecordDispatch(item.proc.Subject, types.DispatchFailed)
		return errors.Wrapf(err, "procedure %s failed", item.proc.Subject)
	}

	d.metrics.RecordDispatch(item.proc.Subject, types.DispatchOK)

	if item.reply == "" {
		return nil
	}

	if res == nil {
		res = []byte{}
	}
	if err := d.bus.Publish(item.reply, res, ""); err != nil {
		return errors.Wrapf(err, "publish result of %s", item.proc.Subject)
	}

	return nil
}

func invokeHandler(h HandlerFunc, payload []byte) (res []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("procedure panicked: %v", r)
		}
	}()

	return h(payload)
}
