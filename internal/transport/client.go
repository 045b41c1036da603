package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxResponseBodySize = 1 << 20 // 1MB

// HeaderRequestID carries the per-attempt request identifier.
const HeaderRequestID = "X-Request-ID"

// connection pooling limits; a store talks to one host, so per-host limits matter most
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Doer is the HTTP capability the client depends on.
//
// *http.Client satisfies Doer. Tests substitute scripted implementations.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes a single HTTP attempt.
type Request struct {
	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// URL is the target URL.
	URL string

	// Headers are sent with the request. A caller-supplied X-Request-ID
	// is left untouched.
	Headers map[string]string

	// Body is the request payload. Nil means no body.
	Body []byte
}

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	StatusCode int

	// ContentType is the response Content-Type header, verbatim.
	ContentType string

	// RequestID is the X-Request-ID sent with the request.
	RequestID string

	// Latency is the total time taken for the request.
	Latency time.Duration
}

// OK reports whether the status code is in the 2xx success range.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps a [Doer] with request construction, per-request timeouts and
// response size limits.
type Client struct {
	doer  Doer
	owned bool
}

// NewHTTPClient returns an *http.Client with pooled connections and no global
// timeout; timeouts are applied per request via context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			DisableKeepAlives:   false,
		},
	}
}

// NewClient creates a [Client] around doer. If doer is nil, a pooled client
// from [NewHTTPClient] is used and owned by the returned Client.
func NewClient(doer Doer) *Client {
	if doer == nil {
		return &Client{doer: NewHTTPClient(), owned: true}
	}
	return &Client{doer: doer}
}

// Fetch performs req and returns the response.
//
// The timeout, when positive, is applied via context cancellation. A non-2xx
// status is not an error at this layer; callers inspect [Response.OK].
// Returned errors are transport-level: the request could not be built or
// sent, or the body could not be read.
func (c *Client) Fetch(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{Latency: time.Since(start)}, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	requestID := httpReq.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		httpReq.Header.Set(HeaderRequestID, requestID)
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return Response{RequestID: requestID, Latency: time.Since(start)}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Latency:    time.Since(start),
		}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Response{
		Body:        data,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RequestID:   requestID,
		Latency:     time.Since(start),
	}, nil
}

// Close closes idle connections of a client created by [NewClient] with a nil
// doer. Caller-supplied doers are left alone. Safe to call multiple times and
// on a nil receiver.
func (c *Client) Close() {
	if c == nil || !c.owned {
		return
	}
	if hc, ok := c.doer.(*http.Client); ok {
		if transport, ok := hc.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
}
