// Package fetchstore provides a small reactive wrapper around a single HTTP
// request.
//
// A [Store] exposes a subscribable [State] (results, loading, error) and
// convenience operations: retry-on-failure with a fixed delay, manual
// refetch, and cancellation. Request construction and transport are
// delegated to an HTTP client; the interesting part is the store's lifecycle
// and its retry/cancellation state machine.
//
// # Quick Start
//
//	type Post struct {
//	    ID    int    `json:"id"`
//	    Title string `json:"title"`
//	}
//
//	store, err := fetchstore.New[[]Post](ctx, "https://api.example.com/posts",
//	    fetchstore.WithRetries(2),
//	    fetchstore.WithRetryDelay(500*time.Millisecond),
//	    fetchstore.WithTransform(func(posts []Post) []Post { return posts[:3] }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer store.Abort()
//
//	store.Subscribe(func(s fetchstore.State[[]Post]) {
//	    switch {
//	    case s.Loading:
//	        fmt.Println("loading…")
//	    case s.Error != nil:
//	        fmt.Println("failed:", s.Error)
//	    default:
//	        fmt.Println("got", len(*s.Results), "posts")
//	    }
//	})
//
// # Lifecycle
//
// [New] starts the first attempt immediately. Each attempt publishes
// loading=true when it starts and loading=false with either results or an
// error when it ends, so subscribers see loading oscillate between retries.
// A failing request with N retries is attempted N+1 times, reporting each
// failure to the [WithErrorCallback] callback. [Store.Refetch] starts over
// with a fresh retry budget. [Store.Abort] cancels the in-flight request and
// silences the store for good. [Store.Phase] exposes the explicit state
// machine.
//
// # Errors
//
// Failures surface through [State.Error] and the error callback, never as
// return values: [*TransportError] (the request could not complete),
// [*HTTPStatusError] (non-2xx status) and [*DecodeError] (undecodable body
// or failing transform). All three are retried alike.
//
// # Transforms
//
// For a Store[any], the built-in transforms [JSONPath], [Limit], [Pluck] and
// [Chain] reshape generically decoded bodies; the CLI builds its transforms
// from these.
//
// # Architecture
//
// fetchstore consists of several internal packages (under internal/):
//
//   - internal/transport: HTTP client wrapper with timeouts, request IDs and size limits
//   - internal/registry: ordered listener registry behind Subscribe
//   - internal/clone: deep copies for state snapshots
//   - internal/server: HTTP API and Server-Sent Events for a single store
//
// The internal packages are not part of the public API and may change
// without notice.
package fetchstore
