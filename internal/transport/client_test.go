package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClient_ConnectionReuse verifies that sequential requests to the same
// host reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(nil)
	defer client.Close()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		_, err := client.Fetch(ctx, Request{URL: server.URL}, 5*time.Second)
		require.NoError(t, err, "request %d", i)
	}

	// allow some tolerance; everything after the first should normally reuse
	assert.GreaterOrEqual(t, reusedCount, numRequests-2)
}

func TestClient_Fetch_SendsMethodHeadersAndBody(t *testing.T) {
	var (
		gotMethod string
		gotHeader string
		gotBody   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.Fetch(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    []byte(`{"q":1}`),
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer abc", gotHeader)
	assert.Equal(t, `{"q":1}`, gotBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.True(t, resp.OK())
}

func TestClient_Fetch_DefaultsToGET(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer server.Close()

	_, err := NewClient(nil).Fetch(context.Background(), Request{URL: server.URL}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestClient_Fetch_StampsRequestID(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderRequestID)
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), Request{URL: server.URL}, time.Second)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(gotID)
	assert.NoError(t, parseErr, "request id should be a uuid, got %q", gotID)
	assert.Equal(t, gotID, resp.RequestID)
}

func TestClient_Fetch_KeepsCallerRequestID(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderRequestID)
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{HeaderRequestID: "req-42"},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "req-42", gotID)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestClient_Fetch_NonOKIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), Request{URL: server.URL}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestClient_Fetch_LimitsBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBodySize+1024)))
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), Request{URL: server.URL}, 5*time.Second)
	require.NoError(t, err)
	assert.Len(t, resp.Body, maxResponseBodySize)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewClient(nil).Fetch(context.Background(), Request{URL: server.URL}, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(nil).Fetch(ctx, Request{URL: server.URL}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_Fetch_UsesSuppliedDoer(t *testing.T) {
	boom := errors.New("connection refused")
	client := NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}))

	resp, err := client.Fetch(context.Background(), Request{URL: "http://example.invalid"}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, resp.StatusCode)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	_, err := NewClient(nil).Fetch(context.Background(), Request{URL: "://bad"}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient(nil)
	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()

	// caller-owned doers are not touched
	NewClient(doerFunc(func(*http.Request) (*http.Response, error) { return nil, nil })).Close()
}

// TestClient_Close_ClientStaysUsable verifies that Close only drops idle
// connections.
func TestClient_Close_ClientStaysUsable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(nil)
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), Request{URL: server.URL}, time.Second)
		require.NoError(t, err)
	}

	client.Close()

	resp, err := client.Fetch(context.Background(), Request{URL: server.URL}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
