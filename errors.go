package fetchstore

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAborted is returned by [Store.Wait] once the store has been aborted.
var ErrAborted = errors.New("fetchstore: store aborted")

var errEmptyBody = errors.New("empty response body")

// TransportError reports that a request could not be sent or its response
// could not be read (connection refused, DNS failure, timeout, reset).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a response whose status code is outside 2xx.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http error: %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// DecodeError reports that a successful response body could not be decoded,
// or that the response transform failed.
type DecodeError struct {
	URL         string
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("decode error: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("decode error: %s (%s): %v", e.URL, e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
