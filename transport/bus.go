// Package transport defines the publish/subscribe boundary the rpc package runs
// on, plus NATS and AMQP implementations of it.
package transport

import (
	"errors"
	"sync"
)

//go:generate mockgen -destination=mocks/bus.go -package=mocks github.com/RidgeA/bus-rpc/transport Bus,Subscription

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("transport: bus closed")

type (
	// Msg is one message delivered by a Bus.
	Msg struct {
		Subject string
		// Reply is the address the publisher asked replies to go to. Empty when
		// no reply is expected.
		Reply string
		Data  []byte
	}

	// Handler receives messages of a subscription. Handlers run on transport
	// goroutines and must not block for long.
	Handler func(msg *Msg)

	// Subscription is a live interest in a subject.
	Subscription interface {
		Subject() string
		Unsubscribe() error
	}

	// Bus is a best-effort publish/subscribe messaging bus.
	//
	// Messages published to one subject by one publisher are expected to reach a
	// subscriber in publish order; nothing else is guaranteed, including delivery.
	Bus interface {
		// Publish sends data to subject. A non-empty reply is passed to receivers
		// as the address replies should be published to.
		Publish(subject string, data []byte, reply string) error

		// Subscribe registers handler for subject. Subscribers sharing a
		// non-empty group split the messages between them, each message going to
		// one member only.
		Subscribe(subject, group string, handler Handler) (Subscription, error)

		// NewInbox returns a fresh, globally unique reply address.
		NewInbox() string

		// OnReconnect registers a callback run after the bus re-established its connection.
		OnReconnect(cb func())

		// OnDisconnect registers a callback run when the bus loses its connection.
		OnDisconnect(cb func(err error))

		Close() error
	}
)

// Notifier keeps reconnect and disconnect callbacks for Bus implementations.
// The zero value is ready to use.
type Notifier struct {
	mu         sync.Mutex
	reconnect  []func()
	disconnect []func(error)
}

// OnReconnect registers a reconnect callback.
func (n *Notifier) OnReconnect(cb func()) {
	n.mu.Lock()
	n.reconnect = append(n.reconnect, cb)
	n.mu.Unlock()
}

// OnDisconnect registers a disconnect callback.
func (n *Notifier) OnDisconnect(cb func(error)) {
	n.mu.Lock()
	n.disconnect = append(n.disconnect, cb)
	n.mu.Unlock()
}

// FireReconnect runs the reconnect callbacks in registration order.
func (n *Notifier) FireReconnect() {
	n.mu.Lock()
	cbs := append([]func(){}, n.reconnect...)
	n.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// FireDisconnect runs the disconnect callbacks in registration order.
func (n *Notifier) FireDisconnect(err error) {
	n.mu.Lock()
	cbs := append([]func(error){}, n.disconnect...)
	n.mu.Unlock()

	for _, cb := range cbs {
		cb(err)
	}
}
