package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/jpalmerr/fetchstore"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestBuildTransform(t *testing.T) {
	body := `{"data": {"items": [{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}]}}`

	tests := []struct {
		name string
		tc   TransformConfig
		want string
	}{
		{"path only", TransformConfig{Path: "data.items.1.id"}, `2`},
		{"limit only", TransformConfig{Limit: 2}, body},
		{"path and limit", TransformConfig{Path: "data.items", Limit: 2}, `[{"id": 1}, {"id": 2}]`},
		{"missing path", TransformConfig{Path: "data.nope", Limit: 2}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform := BuildTransform(tt.tc)
			if transform == nil {
				t.Fatal("BuildTransform() = nil, want transform")
			}
			got := transform(decode(t, body))
			want := decode(t, tt.want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("transform() = %v, want %v", got, want)
			}
		})
	}
}

func TestBuildTransform_EmptyIsNil(t *testing.T) {
	if BuildTransform(TransformConfig{}) != nil {
		t.Error("BuildTransform(empty) should be nil")
	}
}

func TestMapToKeyValuePairs_Sorted(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1", "c": "3"})
	want := []string{"a", "1", "b", "2", "c", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}

func TestBuildOptions_Defaults(t *testing.T) {
	cfg, err := FromURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}

	opts := BuildOptions(cfg, nil)
	if len(opts) != 1 {
		t.Errorf("len(opts) = %d, want 1 (method only)", len(opts))
	}
}

// BuildOptions output drives a real store against a test server.
func TestBuildOptions_DrivesStore(t *testing.T) {
	type seen struct {
		method, auth, body string
	}
	requests := make(chan seen, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		requests <- seen{method: r.Method, auth: r.Header.Get("Authorization"), body: string(b)}

		if len(requests) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"items": ["a", "b", "c", "d"]}}`))
	}))
	defer srv.Close()

	cfg, err := Parse([]byte(`
url: ` + srv.URL + `
method: POST
headers:
  authorization: Bearer abc
body: '{"q": 1}'
retries: 1
retry_delay: 20ms
timeout: 2s
transform:
  path: data.items
  limit: 2
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := fetchstore.New[any](context.Background(), cfg.URL, BuildOptions(cfg, logger)...)
	if err != nil {
		t.Fatalf("fetchstore.New() error = %v", err)
	}
	defer store.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := store.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if st.Error != nil {
		t.Fatalf("state error = %v", st.Error)
	}
	want := []any{"a", "b"}
	if st.Results == nil || !reflect.DeepEqual(*st.Results, any(want)) {
		t.Errorf("Results = %v, want %v", st.Results, want)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2 (one retry)", len(requests))
	}
	first := <-requests
	if first.method != http.MethodPost || first.auth != "Bearer abc" || first.body != `{"q": 1}` {
		t.Errorf("request = %+v", first)
	}
}
