package fetchstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/fetchstore/internal/registry"
	"github.com/jpalmerr/fetchstore/internal/transport"
)

// Store is a reactive wrapper around a single HTTP request.
//
// A Store holds a [State] snapshot (results, loading, error), a set of
// subscribers notified on every state change, and a driver goroutine that
// issues the request, retries failures with a fixed delay, and honours
// cancellation. It is created with [New], which starts the first attempt
// immediately.
//
// The typical lifecycle is:
//
//	store, err := fetchstore.New[[]Post](ctx, "https://api.example.com/posts",
//	    fetchstore.WithRetries(2),
//	    fetchstore.WithRetryDelay(500*time.Millisecond),
//	)
//	if err != nil {
//	    return err
//	}
//	defer store.Abort()
//
//	unsubscribe := store.Subscribe(func(s fetchstore.State[[]Post]) {
//	    render(s)
//	})
//	defer unsubscribe()
//
// All methods are safe for concurrent use, including from inside a
// subscriber. Notifications other than the initial call made by
// [Store.Subscribe] are delivered sequentially from the driver goroutine.
type Store[T any] struct {
	url        string
	request    transport.Request
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	transform  func(T) T
	decode     DecodeFunc[T]
	onError    func(error)
	client     *transport.Client
	logger     *slog.Logger
	clock      Clock

	// ctx spans the store's lifetime; cancelled by Abort or by the parent
	ctx    context.Context
	cancel context.CancelFunc

	listeners *registry.Registry[*subscription[T]]

	// refetch wakes the driver; buffered so Refetch never blocks
	refetch chan struct{}
	done    chan struct{}

	mu             sync.Mutex
	state          State[T]
	phase          Phase
	retryCount     int
	aborted        bool
	cancelAttempt  context.CancelFunc
	pendingRefetch bool
	settled        chan struct{}
	settledOpen    bool
}

// New creates a [Store] for rawURL and starts the first attempt.
//
// The store lives until [Store.Abort] is called or ctx is cancelled,
// whichever comes first; cancelling ctx is equivalent to calling Abort.
// Defaults:
//   - Method: GET
//   - Retries: 0
//   - Retry delay: 1 second
//   - Timeout per attempt: 30 seconds
//   - Transform: identity
//   - Decoder: [DecodeBody] (JSON, or YAML by Content-Type)
//
// Returns an error if rawURL is not an absolute http(s) URL or if any option
// is invalid; in that case no request is made.
func New[T any](ctx context.Context, rawURL string, opts ...Option) (*Store[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL must have an http or https scheme, got %q", rawURL)
	}

	cfg := &storeConfig{
		method:     "GET",
		headers:    make(map[string]string),
		retryDelay: defaultRetryDelay,
		timeout:    defaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	transform := func(v T) T { return v }
	if cfg.transform != nil {
		fn, ok := cfg.transform.(func(T) T)
		if !ok {
			return nil, fmt.Errorf("transform has type %T, want func(%s) %s",
				cfg.transform, typeName[T](), typeName[T]())
		}
		transform = fn
	}

	decode := DecodeFunc[T](DecodeBody[T])
	if cfg.decoder != nil {
		fn, ok := cfg.decoder.(DecodeFunc[T])
		if !ok {
			return nil, fmt.Errorf("decoder has type %T, want fetchstore.DecodeFunc[%s]",
				cfg.decoder, typeName[T]())
		}
		decode = fn
	}

	headers := copyMap(cfg.headers)
	if cfg.contentType != "" {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = cfg.contentType
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.clock
	if clock == nil {
		clock = realClock{}
	}

	storeCtx, cancel := context.WithCancel(ctx)

	s := &Store[T]{
		url: rawURL,
		request: transport.Request{
			Method:  cfg.method,
			URL:     rawURL,
			Headers: headers,
			Body:    cfg.body,
		},
		retries:     cfg.retries,
		retryDelay:  cfg.retryDelay,
		timeout:     cfg.timeout,
		transform:   transform,
		decode:      decode,
		onError:     cfg.onError,
		client:      transport.NewClient(cfg.doer),
		logger:      logger.With("url", rawURL),
		clock:       clock,
		ctx:         storeCtx,
		cancel:      cancel,
		listeners:   registry.New[*subscription[T]](),
		refetch:     make(chan struct{}, 1),
		done:        make(chan struct{}),
		state:       State[T]{Loading: true},
		phase:       PhaseIdle,
		settled:     make(chan struct{}),
		settledOpen: true,
	}

	go s.run()

	return s, nil
}

// typeName renders T for error messages; a bare any reports as "interface {}".
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// State returns a deep copy of the current state.
//
// Two calls without an intervening mutation return separate, equal values.
func (s *Store[T]) State() State[T] {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	return copyState(st)
}

// Phase returns the current position in the request/retry state machine.
func (s *Store[T]) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Subscribe registers listener and immediately calls it once with the
// current state, then again after every state change. The returned function
// removes exactly this registration; it is idempotent.
//
// Each call receives its own deep copy of the state. Panics in listener are
// recovered and logged; other listeners still run.
//
// Calls to one listener never overlap, and the initial call always comes
// before any notification. A listener may call Subscribe, Refetch, Abort or
// the returned unsubscribe, but must not block waiting for the store to make
// progress (for example with [Store.Wait]): the driver waits for it.
//
// After [Store.Abort], Subscribe still calls listener once with the final
// state but does not register it, and the returned function is a no-op.
// Nil listeners are ignored.
func (s *Store[T]) Subscribe(listener func(State[T])) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	sub := &subscription[T]{fn: listener}

	// held until the initial call returns, so a notification racing with
	// registration waits and is delivered after it
	sub.mu.Lock()
	id, ok := s.listeners.Add(sub)
	s.deliver(listener, s.State())
	sub.mu.Unlock()

	if !ok {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.listeners.Remove(id) })
	}
}

// Refetch restarts the request from the first attempt with a fresh retry
// budget.
//
// If an attempt is in flight it is cancelled and its outcome discarded; if a
// retry delay is pending it is skipped. Refetch never blocks and is a no-op
// after [Store.Abort]. Calls made before the driver picks up a previous one
// coalesce.
func (s *Store[T]) Refetch() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.retryCount = 0
	s.pendingRefetch = true
	s.openSettledLocked()
	s.mu.Unlock()

	select {
	case s.refetch <- struct{}{}:
	default:
		// a refetch is already queued
	}
}

// Abort cancels the in-flight request, removes every subscriber and stops
// the store for good.
//
// Abort does not change or publish the state: subscribers simply hear
// nothing further, and an in-flight failure or success is discarded. Abort
// is idempotent. A notification already being delivered when Abort is called
// may finish its current listener call.
func (s *Store[T]) Abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.phase = PhaseAborted
	if s.cancelAttempt != nil {
		s.cancelAttempt()
	}
	s.closeSettledLocked(true)
	s.mu.Unlock()

	s.cancel()
	s.listeners.Close()

	s.logger.Info("fetch aborted")
}

// Wait blocks until the current attempt sequence settles (success, failure
// with no retries left, or abort) and returns the state at that point.
//
// Returns ctx.Err() if ctx ends first, and [ErrAborted] if the store was
// aborted.
func (s *Store[T]) Wait(ctx context.Context) (State[T], error) {
	s.mu.Lock()
	ch := s.settled
	s.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}

	s.mu.Lock()
	aborted := s.aborted
	s.mu.Unlock()
	if aborted {
		return s.State(), ErrAborted
	}
	return s.State(), nil
}

// Done returns a channel that is closed once the store has been aborted and
// its driver goroutine has exited.
func (s *Store[T]) Done() <-chan struct{} {
	return s.done
}

// URL returns the URL the store fetches.
func (s *Store[T]) URL() string {
	return s.url
}

// openSettledLocked makes sure Wait callers block until the next settlement.
func (s *Store[T]) openSettledLocked() {
	if !s.settledOpen {
		s.settled = make(chan struct{})
		s.settledOpen = true
	}
}

// closeSettledLocked releases Wait callers. Unless forced, a queued refetch
// keeps them waiting for the sequence it is about to start.
func (s *Store[T]) closeSettledLocked(force bool) {
	if !s.settledOpen || (s.pendingRefetch && !force) {
		return
	}
	close(s.settled)
	s.settledOpen = false
}

// notify delivers the current state to every registered listener in
// registration order. Listeners removed during delivery, or all of them once
// the store is aborted, are skipped.
func (s *Store[T]) notify() {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	for _, e := range s.listeners.Snapshot() {
		e.Listener.mu.Lock()
		if s.listeners.Contains(e.ID) {
			s.deliver(e.Listener.fn, copyState(st))
		}
		e.Listener.mu.Unlock()
	}
}

// subscription is one registered listener. mu serializes calls to fn.
type subscription[T any] struct {
	mu sync.Mutex
	fn func(State[T])
}

// deliver calls a listener with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func (s *Store[T]) deliver(listener func(State[T]), st State[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	listener(st)
}

// reportError calls the error callback with panic recovery.
func (s *Store[T]) reportError(err error) {
	if s.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.onError(err)
}
