package transport

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

type (
	// NATSBus implements Bus on a NATS connection. Groups map to NATS queue groups.
	NATSBus struct {
		Notifier
		conn    *nats.Conn
		ownConn bool
	}

	natsSubscription struct {
		sub *nats.Subscription
	}
)

var _ Bus = (*NATSBus)(nil)

// NewNATS wraps an existing connection. The connection's reconnect and
// disconnect handlers are replaced so the bus can fan them out; Close leaves
// the connection open.
func NewNATS(conn *nats.Conn) *NATSBus {
	b := &NATSBus{conn: conn}

	conn.SetReconnectHandler(func(*nats.Conn) {
		b.FireReconnect()
	})
	conn.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		b.FireDisconnect(err)
	})

	return b
}

// DialNATS connects to url and returns a bus owning the connection. Reconnects
// are unlimited unless opts say otherwise.
func DialNATS(url string, opts ...nats.Option) (*NATSBus, error) {
	opts = append([]nats.Option{nats.MaxReconnects(-1)}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	b := NewNATS(conn)
	b.ownConn = true

	return b, nil
}

// Conn returns the underlying connection.
func (b *NATSBus) Conn() *nats.Conn {
	return b.conn
}

func (b *NATSBus) Publish(subject string, data []byte, reply string) error {
	if reply == "" {
		return b.conn.Publish(subject, data)
	}

	return b.conn.PublishRequest(subject, reply, data)
}

func (b *NATSBus) Subscribe(subject, group string, handler Handler) (Subscription, error) {
	cb := func(m *nats.Msg) {
		handler(&Msg{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group == "" {
		sub, err = b.conn.Subscribe(subject, cb)
	} else {
		sub, err = b.conn.QueueSubscribe(subject, group, cb)
	}
	if err != nil {
		return nil, err
	}

	return &natsSubscription{sub: sub}, nil
}

func (b *NATSBus) NewInbox() string {
	return nats.NewInbox()
}

// Flush round-trips to the server so earlier subscriptions are known to it.
func (b *NATSBus) Flush() error {
	return b.conn.Flush()
}

func (b *NATSBus) Close() error {
	if b.ownConn {
		b.conn.Close()
	}

	return nil
}

func (s *natsSubscription) Subject() string {
	return s.sub.Subject
}

func (s *natsSubscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}

	return err
}
