package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

const defaultReconnectWait = 2 * time.Second

type (
	// AMQPBus implements Bus on an AMQP 0-9-1 broker.
	//
	// Every subject is a routing key on one direct exchange. A group
	// subscription consumes a shared queue named after the group, so members
	// compete for messages; a plain subscription gets its own exclusive queue.
	//
	// When the connection drops the bus redials every reconnect wait until it
	// succeeds or is closed. Subscriptions do not survive that; reconnect
	// callbacks are expected to recreate them.
	AMQPBus struct {
		Notifier

		url           string
		name          string
		exchangeName  string
		reconnectWait time.Duration

		mu      sync.Mutex
		conn    *amqp.Connection
		out     *amqp.Channel
		closeCh chan *amqp.Error
		closed  bool
		done    chan struct{}
	}

	// AMQPOptionsFunc configures an AMQPBus.
	AMQPOptionsFunc func(*AMQPBus)

	amqpSubscription struct {
		subject string
		tag     string
		ch      *amqp.Channel
		once    sync.Once
		err     error
	}
)

var _ Bus = (*AMQPBus)(nil)

// SetReconnectWait sets the pause between redial attempts.
func SetReconnectWait(d time.Duration) AMQPOptionsFunc {
	return func(b *AMQPBus) {
		b.reconnectWait = d
	}
}

// DialAMQP connects to the broker at url and declares the exchange for name.
func DialAMQP(url, name string, options ...AMQPOptionsFunc) (*AMQPBus, error) {
	b := &AMQPBus{
		url:           url,
		name:          name,
		exchangeName:  exchangeName(name),
		reconnectWait: defaultReconnectWait,
		done:          make(chan struct{}),
	}

	for _, f := range options {
		f(b)
	}

	if err := b.connect(); err != nil {
		return nil, err
	}

	go b.watch()

	return b, nil
}

func (b *AMQPBus) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	out, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}

	err = out.ExchangeDeclare(b.exchangeName, "direct", false, true, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", b.exchangeName, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		conn.Close()
		return ErrClosed
	}

	b.conn = conn
	b.out = out
	b.closeCh = conn.NotifyClose(make(chan *amqp.Error, 1))

	return nil
}

func (b *AMQPBus) watch() {
	for {
		b.mu.Lock()
		closeCh := b.closeCh
		b.mu.Unlock()

		// closed without an error means Close was called
		amqpErr := <-closeCh
		if amqpErr == nil {
			return
		}

		b.FireDisconnect(amqpErr)

		if !b.redial() {
			return
		}

		b.FireReconnect()
	}
}

func (b *AMQPBus) redial() bool {
	for {
		select {
		case <-b.done:
			return false
		case <-time.After(b.reconnectWait):
		}

		if err := b.connect(); err == nil {
			return true
		}
	}
}

func (b *AMQPBus) Publish(subject string, data []byte, reply string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	return b.out.Publish(b.exchangeName, subject, false, false, amqp.Publishing{
		ReplyTo: reply,
		Body:    data,
	})
}

func (b *AMQPBus) Subscribe(subject, group string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	conn, closed := b.conn, b.closed
	b.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(group, false, true, group == "", false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue for %s: %w", subject, err)
	}

	if err = ch.QueueBind(q.Name, subject, b.exchangeName, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	tag := consumerTag(b.name)
	deliveries, err := ch.Consume(q.Name, tag, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume queue %s: %w", q.Name, err)
	}

	go func() {
		for d := range deliveries {
			handler(&Msg{Subject: d.RoutingKey, Reply: d.ReplyTo, Data: d.Body})
		}
	}()

	return &amqpSubscription{subject: subject, tag: tag, ch: ch}, nil
}

func (b *AMQPBus) NewInbox() string {
	return "_INBOX." + uuid.NewString()
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	if b.conn == nil {
		return nil
	}

	return b.conn.Close()
}

func (s *amqpSubscription) Subject() string {
	return s.subject
}

func (s *amqpSubscription) Unsubscribe() error {
	s.once.Do(func() {
		if err := s.ch.Cancel(s.tag, false); err != nil && err != amqp.ErrClosed {
			s.err = err
		}
		if err := s.ch.Close(); err != nil && err != amqp.ErrClosed {
			s.err = err
		}
	})

	return s.err
}

func exchangeName(name string) string {
	return name + ".rpc.exchange"
}

func consumerTag(name string) string {
	return name + ".rpc." + uuid.NewString()
}
