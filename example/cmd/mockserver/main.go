// Standalone mock server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/fetchstore get -c example/config.yaml
//	go run ./cmd/fetchstore serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	failures := flag.Int("failures", 2, "failed requests before every success")
	flag.Parse()

	fmt.Printf("Mock API starting on %s\n", *addr)
	fmt.Printf("/posts and /posts.yaml fail %d time(s) before every success\n", *failures)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var count atomic.Int64
	cycle := int64(*failures + 1)

	flaky := func(encode func(w http.ResponseWriter, v any) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

			n := count.Add(1) - 1
			if n%cycle < int64(*failures) {
				slog.Info("failing request", "request", n, "request_id", r.Header.Get("X-Request-ID"))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}

			items := make([]map[string]any, 10)
			for i := range items {
				items[i] = map[string]any{"id": i + 1, "title": fmt.Sprintf("post #%d", i+1)}
			}
			if err := encode(w, map[string]any{"data": map[string]any{"items": items}}); err != nil {
				slog.Error("failed to write response", "error", err)
			}
		}
	}

	http.HandleFunc("/posts", flaky(func(w http.ResponseWriter, v any) error {
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(v)
	}))
	http.HandleFunc("/posts.yaml", flaky(func(w http.ResponseWriter, v any) error {
		w.Header().Set("Content-Type", "application/yaml")
		return yaml.NewEncoder(w).Encode(v)
	}))

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
