package fetchstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/fetchstore/internal/transport"
)

const (
	defaultRetryDelay = time.Second
	defaultTimeout    = 30 * time.Second
)

// Doer is the HTTP capability a [Store] uses to send requests.
// *http.Client satisfies Doer.
type Doer = transport.Doer

// storeConfig holds mutable state during Store construction.
type storeConfig struct {
	method      string
	headers     map[string]string
	body        []byte
	contentType string
	retries     int
	retryDelay  time.Duration
	timeout     time.Duration
	transform   any // func(T) T, checked against T in New
	decoder     any // DecodeFunc[T], checked against T in New
	onError     func(error)
	doer        Doer
	logger      *slog.Logger
	clock       Clock
}

// Option is a function that configures a [Store] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails, in which case New fails and
// no request is made.
type Option func(*storeConfig) error

// WithMethod sets the HTTP method. Defaults to GET.
//
// Returns an error for methods other than GET, POST, PUT, PATCH, DELETE and
// OPTIONS. HEAD is rejected: its responses have no body to decode.
func WithMethod(method string) Option {
	return func(cfg *storeConfig) error {
		switch method {
		case http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions:
			cfg.method = method
			return nil
		default:
			return fmt.Errorf("unsupported method %q", method)
		}
	}
}

// WithHeaders adds HTTP headers to every attempt.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
// Keys are canonicalized, so a later "content-type" replaces an earlier
// "Content-Type".
//
// Example:
//
//	store, err := fetchstore.New[[]Post](ctx, url,
//	    fetchstore.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) Option {
	return func(cfg *storeConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[http.CanonicalHeaderKey(keyValues[i])] = keyValues[i+1]
		}
		return nil
	}
}

// WithBody sets the raw request body sent with every attempt.
func WithBody(body []byte) Option {
	return func(cfg *storeConfig) error {
		cfg.body = append([]byte(nil), body...)
		return nil
	}
}

// WithJSONBody marshals v as the request body and defaults the Content-Type
// header to application/json. An explicit Content-Type from [WithHeaders]
// wins.
//
// Returns an error if v cannot be marshalled.
func WithJSONBody(v any) Option {
	return func(cfg *storeConfig) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		cfg.body = data
		cfg.contentType = "application/json"
		return nil
	}
}

// WithRetries sets how many times a failed attempt is retried.
//
// With n retries a request that always fails is attempted n+1 times.
// Defaults to 0. Returns an error if n is negative.
func WithRetries(n int) Option {
	return func(cfg *storeConfig) error {
		if n < 0 {
			return errors.New("retries cannot be negative")
		}
		cfg.retries = n
		return nil
	}
}

// WithRetryDelay sets the fixed delay between a failed attempt and the next.
//
// Defaults to 1 second. Returns an error if d is zero or negative.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *storeConfig) error {
		if d <= 0 {
			return errors.New("retry delay must be positive")
		}
		cfg.retryDelay = d
		return nil
	}
}

// WithTimeout bounds each individual attempt, including reading the body.
//
// Defaults to 30 seconds. Returns an error if d is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *storeConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithTransform sets a function applied to every decoded body before it is
// stored as [State.Results]. Defaults to the identity.
//
// The type parameter must match the store's: [New] fails if a transform for
// a different type is supplied. A panicking transform fails the attempt with
// a [*DecodeError].
//
// Example:
//
//	store, err := fetchstore.New[[]Post](ctx, url,
//	    fetchstore.WithTransform(func(posts []Post) []Post { return posts[:3] }),
//	)
func WithTransform[T any](fn func(T) T) Option {
	return func(cfg *storeConfig) error {
		if fn == nil {
			return nil
		}
		cfg.transform = fn
		return nil
	}
}

// WithDecoder replaces [DecodeBody] as the body decoder.
//
// As with [WithTransform], the type parameter must match the store's.
func WithDecoder[T any](fn DecodeFunc[T]) Option {
	return func(cfg *storeConfig) error {
		if fn == nil {
			return nil
		}
		cfg.decoder = fn
		return nil
	}
}

// WithErrorCallback registers a function invoked once per failed attempt.
//
// A request with 2 retries that always fails invokes the callback 3 times.
// The callback runs on the store's driver goroutine before subscribers are
// notified; panics are recovered and logged. Nil callbacks are ignored.
func WithErrorCallback(fn func(error)) Option {
	return func(cfg *storeConfig) error {
		cfg.onError = fn
		return nil
	}
}

// WithHTTPClient sets the HTTP capability used for requests.
//
// Defaults to a pooled *http.Client owned by the store, whose idle
// connections are closed when the store is aborted. A supplied client is
// never closed by the store. Returns an error if d is nil.
func WithHTTPClient(d Doer) Option {
	return func(cfg *storeConfig) error {
		if d == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.doer = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the store.
//
// If not specified, [slog.Default] is used. Returns an error if the logger
// is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock sets the [Clock] used for retry delays. Returns an error if c
// is nil.
func WithClock(c Clock) Option {
	return func(cfg *storeConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
