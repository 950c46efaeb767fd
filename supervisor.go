package rpc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RidgeA/bus-rpc/internal/gate"
	"github.com/RidgeA/bus-rpc/transport"
)

// subscriptionEntry is the live subscription of one procedure. The group is
// the subject itself so every server of the procedure shares one queue group.
type subscriptionEntry struct {
	subject string
	group   string
	sub     transport.Subscription
}

// supervisor owns the procedure subscriptions of a server. activateAll and
// deactivateAll are serialized, so a reconnect can never race shutdown or
// another recreation.
type supervisor struct {
	bus        transport.Bus
	gate       *gate.Gate
	procedures []*Procedure
	logger     Logger
	metrics    MetricsCollector

	mu      sync.Mutex
	entries map[string]*subscriptionEntry
	closed  bool
}

func newSupervisor(bus transport.Bus, g *gate.Gate, procedures []*Procedure, logger Logger, m MetricsCollector) *supervisor {
	return &supervisor{
		bus:        bus,
		gate:       g,
		procedures: procedures,
		logger:     logger,
		metrics:    m,
		entries:    make(map[string]*subscriptionEntry),
	}
}

// watch hooks the supervisor to the bus connection events.
func (s *supervisor) watch() {
	s.bus.OnReconnect(func() {
		s.logger.Warn("Reconnected to bus, recreating subscriptions")
		if err := s.activateAll(); err != nil && !errors.Is(err, ErrServerStopped) {
			s.logger.Error("Failed to recreate subscriptions", "error", err)
		}
	})

	s.bus.OnDisconnect(func(err error) {
		s.logger.Warn("Disconnected from bus", "error", err)
	})
}

// activateAll (re)creates one subscription per procedure. An existing
// subscription for a subject is released before its replacement is made, so
// a subject never has two entries.
func (s *supervisor) activateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerStopped
	}

	s.logger.Info("Creating subscriptions", "count", len(s.procedures))

	var errs []error
	for _, p := range s.procedures {
		if old, ok := s.entries[p.Subject]; ok {
			if err := old.sub.Unsubscribe(); err != nil {
				s.logger.Debug("Failed to release stale subscription", "subject", p.Subject, "error", err)
			}
			delete(s.entries, p.Subject)
		}

		d := &dispatcher{
			proc:    p,
			bus:     s.bus,
			gate:    s.gate,
			logger:  s.logger,
			metrics: s.metrics,
		}

		sub, err := s.bus.Subscribe(p.Subject, p.Subject, d.handle)
		if err != nil {
			errs = append(errs, fmt.Errorf("subscribe to %s: %w", p.Subject, err))
			continue
		}

		s.entries[p.Subject] = &subscriptionEntry{subject: p.Subject, group: p.Subject, sub: sub}
		s.logger.Info("  - subscribed", "subject", p.Subject)
	}

	s.metrics.RecordResubscribe(len(s.entries))

	return errors.Join(errs...)
}

// deactivateAll unsubscribes everything. Later activations are refused.
func (s *supervisor) deactivateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for subject, e := range s.entries {
		if err := e.sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
		delete(s.entries, subject)
	}
}

// subjects returns the subjects with a live subscription.
func (s *supervisor) subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.entries))
	for subject := range s.entries {
		out = append(out, subject)
	}

	return out
}
