package cmd

import (
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

type key struct {
	scope Scope
	name  string
}

// snapshot is an immutable view of the registry. Mutations build a new one and
// publish it with a single pointer swap, so readers never lock and never see
// a half-applied change.
type snapshot struct {
	order []Descriptor
	index map[key]int
}

func (s *snapshot) get(scope Scope, name string) (Descriptor, bool) {
	i, ok := s.index[key{scope, name}]
	if !ok {
		return Descriptor{}, false
	}
	return s.order[i], true
}

func (s *snapshot) with(order []Descriptor) *snapshot {
	index := make(map[key]int, len(order))
	for i, d := range order {
		index[key{d.Scope, d.Name}] = i
	}
	return &snapshot{order: order, index: index}
}

// Registry stores command descriptors by (scope, name). It does not dispatch;
// the Dispatcher and the sync coordinator read from it.
type Registry struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{index: map[key]int{}})
	return r
}

// Register adds a descriptor. It fails with ErrDuplicateCommand when the
// (scope, name) pair is taken; the existing descriptor stays in place.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.get(d.Scope, d.Name); ok {
		return fmt.Errorf("%w: /%s in %s", ErrDuplicateCommand, d.Name, d.Scope)
	}
	order := make([]Descriptor, len(cur.order), len(cur.order)+1)
	copy(order, cur.order)
	order = append(order, d.clone())
	r.snap.Store(cur.with(order))
	return nil
}

// Replace swaps the descriptor registered under d's (scope, name), keeping its
// position in insertion order.
func (r *Registry) Replace(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	i, ok := cur.index[key{d.Scope, d.Name}]
	if !ok {
		return fmt.Errorf("%w: /%s in %s", ErrNotFound, d.Name, d.Scope)
	}
	order := make([]Descriptor, len(cur.order))
	copy(order, cur.order)
	order[i] = d.clone()
	r.snap.Store(cur.with(order))
	return nil
}

// Unregister removes a descriptor. It fails with ErrNotFound when absent, so a
// retry after success reports ErrNotFound and changes nothing.
func (r *Registry) Unregister(scope Scope, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	i, ok := cur.index[key{scope, name}]
	if !ok {
		return fmt.Errorf("%w: /%s in %s", ErrNotFound, name, scope)
	}
	order := make([]Descriptor, 0, len(cur.order)-1)
	order = append(order, cur.order[:i]...)
	order = append(order, cur.order[i+1:]...)
	r.snap.Store(cur.with(order))
	return nil
}

// Lookup returns the descriptor registered exactly under (scope, name).
func (r *Registry) Lookup(scope Scope, name string) (Descriptor, bool) {
	return r.snap.Load().get(scope, name)
}

// Resolve finds the descriptor an invocation in scope should run: the guild's
// own command first, then the global one of the same name.
func (r *Registry) Resolve(scope Scope, name string) (Descriptor, bool) {
	snap := r.snap.Load()
	if !scope.IsGlobal() {
		if d, ok := snap.get(scope, name); ok {
			return d, true
		}
	}
	return snap.get(Global(), name)
}

// List yields the descriptors of one scope in insertion order. The sequence is
// lazy and can be ranged over again; each range reads the registry as it is
// when that range starts.
func (r *Registry) List(scope Scope) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, d := range r.snap.Load().order {
			if d.Scope != scope {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Descriptors returns a copy of one scope's descriptors.
func (r *Registry) Descriptors(scope Scope) []Descriptor {
	var out []Descriptor
	for d := range r.List(scope) {
		out = append(out, d)
	}
	return out
}

// Scopes returns every scope holding at least one descriptor, in order of
// first registration.
func (r *Registry) Scopes() []Scope {
	seen := map[Scope]bool{}
	var out []Scope
	for _, d := range r.snap.Load().order {
		if !seen[d.Scope] {
			seen[d.Scope] = true
			out = append(out, d.Scope)
		}
	}
	return out
}

// Len returns the number of registered descriptors across all scopes.
func (r *Registry) Len() int { return len(r.snap.Load().order) }

// Diff compares one scope of the registry against a remote snapshot.
func (r *Registry) Diff(scope Scope, remote []RemoteCommand) Changes {
	return Diff(r.Descriptors(scope), remote)
}
