// In-memory implementation of transport just for testing purposes.
// Not meant to use in production

package inmemory

import (
	"sync"

	"github.com/RidgeA/bus-rpc/transport"
	"github.com/google/uuid"
)

type (
	// InMemory is a process-local transport.Bus.
	//
	// Each subscription has its own delivery goroutine and an unbounded
	// mailbox, so publishing never blocks and a subscriber sees messages in the
	// order they were published.
	InMemory struct {
		transport.Notifier

		mu            sync.Mutex
		subscriptions map[string][]*subscription
		next          map[string]int // subject + "\x00" + group -> round robin cursor
		published     map[string]int
		drop          bool
		closed        bool
	}

	subscription struct {
		bus     *InMemory
		subject string
		group   string
		handler transport.Handler

		mu      sync.Mutex
		pending []*transport.Msg
		notify  chan struct{}
		done    chan struct{}
		once    sync.Once
	}
)

var _ transport.Bus = (*InMemory)(nil)

func New() *InMemory {
	return &InMemory{
		subscriptions: make(map[string][]*subscription),
		next:          make(map[string]int),
		published:     make(map[string]int),
	}
}

func (t *InMemory) Publish(subject string, data []byte, reply string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}

	t.published[subject]++
	if t.drop {
		return nil
	}

	msg := &transport.Msg{Subject: subject, Reply: reply, Data: data}

	groups := make(map[string][]*subscription)
	for _, sub := range t.subscriptions[subject] {
		if sub.group == "" {
			sub.enqueue(msg)
			continue
		}
		groups[sub.group] = append(groups[sub.group], sub)
	}

	for group, members := range groups {
		key := subject + "\x00" + group
		cursor := t.next[key]
		t.next[key] = cursor + 1
		members[cursor%len(members)].enqueue(msg)
	}

	return nil
}

func (t *InMemory) Subscribe(subject, group string, handler transport.Handler) (transport.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, transport.ErrClosed
	}

	sub := &subscription{
		bus:     t,
		subject: subject,
		group:   group,
		handler: handler,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	t.subscriptions[subject] = append(t.subscriptions[subject], sub)

	go sub.deliver()

	return sub, nil
}

func (t *InMemory) NewInbox() string {
	return "_INBOX." + uuid.NewString()
}

func (t *InMemory) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var all []*subscription
	for _, subs := range t.subscriptions {
		all = append(all, subs...)
	}
	t.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}

	return nil
}

// SimulateReconnect runs the disconnect callbacks followed by the reconnect
// callbacks. Existing subscriptions stay in place, like NATS restoring them.
func (t *InMemory) SimulateReconnect() {
	t.FireDisconnect(nil)
	t.FireReconnect()
}

// SetDropPublishes makes Publish silently discard messages while drop is true.
// Publishes are still counted.
func (t *InMemory) SetDropPublishes(drop bool) {
	t.mu.Lock()
	t.drop = drop
	t.mu.Unlock()
}

// Published returns how many messages were published to subject.
func (t *InMemory) Published(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.published[subject]
}

// SubscriptionCount returns the number of live subscriptions on subject.
func (t *InMemory) SubscriptionCount(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.subscriptions[subject])
}

func (t *InMemory) remove(sub *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.subscriptions[sub.subject]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}

	if len(subs) == 0 {
		delete(t.subscriptions, sub.subject)
		return
	}
	t.subscriptions[sub.subject] = subs
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})

	return nil
}

func (s *subscription) enqueue(msg *transport.Msg) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) deliver() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}

			s.handler(msg)
		}
	}
}
