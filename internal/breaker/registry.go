package breaker

import (
	"sort"
	"sync"

	"gatekeeper/internal/models"
)

// Registry holds the named breakers built from configuration. Breakers are
// created up front and live for the life of the process; looking one up
// never mutates the set.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry builds one breaker per configured name. The onTransition
// hook, if non-nil, fires on every state change and must not call back
// into the breaker.
func NewRegistry(cfgs map[string]models.Breaker, onTransition func(name string, from, to State)) *Registry {
	r := &Registry{breakers: make(map[string]*Breaker, len(cfgs))}
	for name, cfg := range cfgs {
		r.breakers[name] = newBreaker(name, cfg, onTransition)
	}
	return r
}

// Get returns the named breaker, or nil if none is configured. Callers
// treat a nil breaker as an always-allow dependency.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// Snapshots returns the state of every breaker, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// Do runs fn under the named breaker: rejected when the circuit is open,
// recorded as success or failure otherwise. An unconfigured name runs fn
// directly.
func (r *Registry) Do(name string, fn func() error) error {
	b := r.Get(name)
	if b == nil {
		return fn()
	}
	if !b.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.OnFailure()
		return err
	}
	b.OnSuccess()
	return nil
}
