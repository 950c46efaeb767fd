package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RidgeA/bus-rpc/internal/gate"
	"github.com/RidgeA/bus-rpc/transport"
)

// Server serves registered procedures over a Bus.
//
// Lifecycle:
//   - Create with NewServer and register handlers
//   - Run blocks: it subscribes, serves until Stop or ctx is done, then
//     unsubscribes and waits for running procedures
//   - Stopped and Done report when all of that is over
//
// Thread Safety:
//   - Stop, State, Running and Stopped are safe to call from any goroutine
type Server struct {
	bus        transport.Bus
	cfg        Config
	name       string
	instanceID string
	resolver   *SubjectResolver
	registry   *registry
	logger     Logger
	metrics    MetricsCollector

	state atomic.Int32 // State

	mu         sync.Mutex
	started    bool
	gate       *gate.Gate
	supervisor *supervisor

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewServer creates a server on bus. The bus stays owned by the caller.
func NewServer(bus transport.Bus, opts ...OptionsFunc) (*Server, error) {
	if bus == nil {
		return nil, ErrBusRequired
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Server{
		bus:        bus,
		cfg:        o.cfg,
		name:       o.name,
		instanceID: createInstanceID(o.name),
		resolver:   NewSubjectResolver(o.cfg.SubjectPrefix),
		registry:   newRegistry(),
		logger:     o.logger,
		metrics:    o.metrics,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(StateStarting))

	return s, nil
}

// RegisterHandler advertises method of service. Handlers must be registered
// before Run.
func (s *Server) RegisterHandler(service, method string, f HandlerFunc) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if started {
		return ErrAlreadyStarted
	}

	p := &Procedure{
		Service: service,
		Method:  method,
		Subject: s.resolver.Resolve(service, method),
		Handler: f,
	}
	if err := s.registry.register(p); err != nil {
		return err
	}

	s.logger.Debug("Registered handler", "service", service, "method", method, "subject", p.Subject)

	return nil
}

// Procedures returns the registered procedures ordered by subject.
func (s *Server) Procedures() []*Procedure {
	return s.registry.procedures()
}

// Run subscribes to every registered procedure and serves until Stop is
// called or ctx is done. It returns after subscriptions are gone and running
// procedures finished. With a non-zero shutdown timeout it may return earlier
// with an error; the server then stays Stopping until the last procedure ends.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	procs := s.registry.procedures()
	s.gate = gate.New(s.cfg.ThreadPoolSize, s.cfg.MaxQueue,
		gate.WithLogger(s.logger),
		gate.WithInflightObserver(s.metrics.RecordInflight),
	)
	s.supervisor = newSupervisor(s.bus, s.gate, procs, s.logger, s.metrics)

	// Stop before Run: nothing may be admitted, not even during subscribing.
	stopped := false
	select {
	case <-s.stopCh:
		s.gate.Close()
		stopped = true
	default:
	}
	s.mu.Unlock()

	if len(procs) == 0 {
		s.finish()
		return ErrNoProcedures
	}

	if stopped {
		return s.shutdown()
	}

	s.logger.Info("Starting rpc server", "instance", s.instanceID, "procedures", len(procs), "threads", s.cfg.ThreadPoolSize)

	s.supervisor.watch()
	if err := s.supervisor.activateAll(); err != nil {
		s.supervisor.deactivateAll()
		_ = s.gate.Shutdown(context.Background())
		s.finish()
		return fmt.Errorf("activate subscriptions: %w", err)
	}

	s.setState(StateRunning)

	select {
	case <-s.stopCh:
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.setState(StateStopping)
	s.logger.Info("Shutting down rpc server", "instance", s.instanceID)

	s.gate.Close()
	s.supervisor.deactivateAll()

	if s.cfg.ShutdownTimeout == 0 {
		_ = s.gate.Shutdown(context.Background())
		s.finish()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.gate.Shutdown(ctx); err != nil {
		s.logger.Error("Running procedures did not finish in time", "timeout", s.cfg.ShutdownTimeout, "inflight", s.gate.Inflight())
		go func() {
			_ = s.gate.Shutdown(context.Background())
			s.finish()
		}()
		return err
	}

	s.finish()

	return nil
}

// finish marks shutdown as completed. Callers make sure no procedure runs.
func (s *Server) finish() {
	s.setState(StateStopped)
	s.logger.Info("Rpc server stopped", "instance", s.instanceID)
	close(s.done)
}

// Stop asks Run to shut down. From this point no new request is admitted,
// even when Run has not been called yet.
// Stop is idempotent and does not wait; use Done or Stopped for that.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.Lock()
	g := s.gate
	s.mu.Unlock()

	if g != nil {
		g.Close()
	}
}

// Done is closed once the server is Stopped: subscriptions are gone and no
// procedure runs. It stays open if Run is never called.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) Running() bool {
	return s.State() == StateRunning
}

// Stopped reports whether shutdown completed.
func (s *Server) Stopped() bool {
	return s.State() == StateStopped
}

func (s *Server) InstanceID() string {
	return s.instanceID
}

func (s *Server) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.metrics.RecordStateTransition(from, to)
	}
}
