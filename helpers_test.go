package fetchstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances instantly: After moves Now forward by d and fires at once.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.delays = append(c.delays, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// stuckClock never fires, leaving the store parked in its retry delay.
type stuckClock struct{}

func (stuckClock) Now() time.Time                       { return time.Now() }
func (stuckClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

// scriptedDoer answers requests with respond and records when they arrived.
type scriptedDoer struct {
	clock   Clock
	respond func(n int, r *http.Request) (*http.Response, error)
	started chan int

	mu    sync.Mutex
	times []time.Time
	reqs  []*http.Request
}

func newScriptedDoer(clock Clock, respond func(n int, r *http.Request) (*http.Response, error)) *scriptedDoer {
	if clock == nil {
		clock = realClock{}
	}
	return &scriptedDoer{
		clock:   clock,
		respond: respond,
		started: make(chan int, 64),
	}
}

func (d *scriptedDoer) Do(r *http.Request) (*http.Response, error) {
	d.mu.Lock()
	n := len(d.times)
	d.times = append(d.times, d.clock.Now())
	d.reqs = append(d.reqs, r)
	d.mu.Unlock()

	d.started <- n
	return d.respond(n, r)
}

func (d *scriptedDoer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.times)
}

func (d *scriptedDoer) Times() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.times...)
}

func (d *scriptedDoer) Request(n int) *http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reqs[n]
}

// waitStarted blocks until the n-th (zero-based) request reaches the doer.
func (d *scriptedDoer) waitStarted(n int) {
	for got := range d.started {
		if got == n {
			return
		}
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func alwaysStatus(status int) func(int, *http.Request) (*http.Response, error) {
	return func(int, *http.Request) (*http.Response, error) {
		return jsonResponse(status, `{"error":"nope"}`), nil
	}
}

// blockUntilCancelled parks the request until its context ends.
func blockUntilCancelled(_ int, r *http.Request) (*http.Response, error) {
	<-r.Context().Done()
	return nil, r.Context().Err()
}

// recorder collects every state a subscriber receives.
type recorder[T any] struct {
	mu     sync.Mutex
	states []State[T]
}

func (r *recorder[T]) listen(s State[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder[T]) States() []State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State[T](nil), r.states...)
}

func (r *recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// errCounter counts error callback invocations.
type errCounter struct {
	mu   sync.Mutex
	errs []error
}

func (c *errCounter) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *errCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// waitCtx bounds a Wait call in tests.
func waitCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
