package server

import (
	"github.com/jpalmerr/fetchstore"
)

// Source is the view of a store the server needs.
//
// Snapshots handed out by a Source must be JSON-marshalable and independent
// of the store's internal state.
type Source interface {
	// URL is the address the store fetches.
	URL() string

	// State returns the current snapshot.
	State() any

	// Phase returns the store's state machine phase.
	Phase() fetchstore.Phase

	// Subscribe registers fn for every notification. fn is called once with
	// the current snapshot before Subscribe returns.
	Subscribe(fn func(any)) (unsubscribe func())

	Refetch()
	Abort()

	// Done is closed once the store has stopped.
	Done() <-chan struct{}
}

// FromStore adapts a [fetchstore.Store] to [Source].
func FromStore[T any](st *fetchstore.Store[T]) Source {
	return storeSource[T]{st: st}
}

type storeSource[T any] struct {
	st *fetchstore.Store[T]
}

func (s storeSource[T]) URL() string             { return s.st.URL() }
func (s storeSource[T]) State() any              { return s.st.State() }
func (s storeSource[T]) Phase() fetchstore.Phase { return s.st.Phase() }
func (s storeSource[T]) Refetch()                { s.st.Refetch() }
func (s storeSource[T]) Abort()                  { s.st.Abort() }
func (s storeSource[T]) Done() <-chan struct{}   { return s.st.Done() }

func (s storeSource[T]) Subscribe(fn func(any)) func() {
	return s.st.Subscribe(func(state fetchstore.State[T]) {
		fn(state)
	})
}
