package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// post is the shape served by the mock /posts endpoint.
type post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// flakyPosts fails the first failures requests of every cycle of
// failures+1 requests with a 503, then serves ten posts.
type flakyPosts struct {
	failures int

	mu    sync.Mutex
	count int
}

func (f *flakyPosts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	f.mu.Lock()
	n := f.count
	f.count++
	f.mu.Unlock()

	if n%(f.failures+1) < f.failures {
		slog.Info("mock failing request", "request", n, "request_id", r.Header.Get("X-Request-ID"))
		http.Error(w, `{"error":"temporarily unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	posts := make([]post, 10)
	for i := range posts {
		posts[i] = post{ID: i + 1, Title: fmt.Sprintf("post #%d (served at %s)", i+1, time.Now().Format(time.TimeOnly))}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(posts); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// StartMockServer runs a mock API whose /posts endpoint fails twice before
// every success.
// Call this in a goroutine before creating the store.
func StartMockServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/posts", &flakyPosts{failures: 2})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
