package rpc

import (
	"fmt"
	"sort"
	"sync"
)

// Procedure is one registered (service, method) pair and its handler.
type Procedure struct {
	Service string
	Method  string
	Subject string
	Handler HandlerFunc
}

// registry is the table of procedures a server advertises, keyed by subject.
type registry struct {
	mu        sync.RWMutex
	bySubject map[string]*Procedure
}

func newRegistry() *registry {
	return &registry{bySubject: make(map[string]*Procedure)}
}

func (r *registry) register(p *Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bySubject[p.Subject]; ok {
		return fmt.Errorf("%w: %s.%s and %s.%s both resolve to %s",
			ErrDuplicateProcedure, existing.Service, existing.Method, p.Service, p.Method, p.Subject)
	}
	r.bySubject[p.Subject] = p

	return nil
}

// procedures returns the registered procedures ordered by subject.
func (r *registry) procedures() []*Procedure {
	r.mu.RLock()
	defer r.mu.RUnlock()

	procs := make([]*Procedure, 0, len(r.bySubject))
	for _, p := range r.bySubject {
		procs = append(procs, p)
	}
	sort.Slice(procs, func(i, j int) bool {
		return procs[i].Subject < procs[j].Subject
	})

	return procs
}
