package fetchstore

import (
	"encoding/json"

	"github.com/jpalmerr/fetchstore/internal/clone"
)

// Phase is the position of a [Store] in its request/retry state machine.
//
// Phase is a string type so it logs and serializes readably. Transitions:
//
//	idle ──► attempting ──► succeeded
//	             │  ▲
//	             ▼  │ (retry delay elapsed)
//	          retrying
//	             │ (retries exhausted)
//	             ▼
//	           failed
//
// Any phase moves to aborted on [Store.Abort]. [Store.Refetch] moves any
// phase other than aborted back to attempting.
type Phase string

const (
	// PhaseIdle is the phase between construction and the first attempt.
	PhaseIdle Phase = "idle"

	// PhaseAttempting indicates a request is in flight.
	PhaseAttempting Phase = "attempting"

	// PhaseSucceeded indicates the last attempt succeeded.
	PhaseSucceeded Phase = "succeeded"

	// PhaseRetrying indicates an attempt failed and another is scheduled
	// after the retry delay.
	PhaseRetrying Phase = "retrying"

	// PhaseFailed indicates the last attempt failed and no retries remain.
	PhaseFailed Phase = "failed"

	// PhaseAborted indicates the store was aborted. It is final.
	PhaseAborted Phase = "aborted"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether the phase ends an attempt sequence.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseAborted
}

// State is a snapshot of a [Store].
//
// Every State handed out by a Store is an independent deep copy: mutating
// Results (or anything reachable from it through pointers, slices, maps,
// interfaces and exported struct fields) never affects the store or other
// subscribers. Unexported struct fields are copied by value, so a slice or
// map held in an unexported field is shared with the store and must be
// treated as read-only. Channels and funcs are always shared.
type State[T any] struct {
	// Results is the last successfully decoded and transformed payload.
	// Nil until the first successful attempt.
	Results *T

	// Loading is true while an attempt is in flight.
	Loading bool

	// Error is the failure of the last attempt, cleared when a new attempt
	// starts. It is a *TransportError, *HTTPStatusError or *DecodeError.
	Error error
}

// copyState returns a deep copy of s. Errors are immutable and shared.
func copyState[T any](s State[T]) State[T] {
	out := State[T]{Loading: s.Loading, Error: s.Error}
	if s.Results != nil {
		r := clone.Deep(*s.Results)
		out.Results = &r
	}
	return out
}

// stateJSON is the wire form of [State].
type stateJSON[T any] struct {
	Results *T      `json:"results"`
	Loading bool    `json:"loading"`
	Error   *string `json:"error"`
}

// MarshalJSON renders the state with the error as a message string, or null.
func (s State[T]) MarshalJSON() ([]byte, error) {
	out := stateJSON[T]{Results: s.Results, Loading: s.Loading}
	if s.Error != nil {
		msg := s.Error.Error()
		out.Error = &msg
	}
	return json.Marshal(out)
}
