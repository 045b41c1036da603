package registry

import (
	"sync"
)

// Entry is a registered listener together with its registration ID.
type Entry[L any] struct {
	ID       uint64
	Listener L
}

// Registry is an ordered, thread-safe set of listeners.
//
// Listeners are kept in registration order. Each registration gets a unique
// ID so that removing one listener never affects another, even when the same
// function value is registered twice. Once closed, the registry is empty and
// rejects further registrations.
type Registry[L any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []Entry[L]
	closed  bool
}

// New creates an empty [Registry].
func New[L any]() *Registry[L] {
	return &Registry[L]{}
}

// Add registers listener and returns its ID.
//
// Returns false if the registry has been closed; the listener is not stored.
func (r *Registry[L]) Add(listener L) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, false
	}

	r.nextID++
	r.entries = append(r.entries, Entry[L]{ID: r.nextID, Listener: listener})
	return r.nextID, true
}

// Remove unregisters the listener with the given ID.
//
// Returns false if the ID is unknown (never added, already removed, or
// cleared by [Registry.Close]). Safe to call multiple times.
func (r *Registry[L]) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether the listener with the given ID is still registered.
func (r *Registry[L]) Contains(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns the registered entries in registration order.
//
// The returned slice is a copy; later registrations and removals do not
// affect it.
func (r *Registry[L]) Snapshot() []Entry[L] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry[L], len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered listeners.
func (r *Registry[L]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close removes every listener and rejects further registrations.
// Idempotent.
func (r *Registry[L]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.entries = nil
}
