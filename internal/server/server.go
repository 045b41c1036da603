package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jpalmerr/fetchstore"
)

const (
	// sseWriteTimeout bounds one event write; keep it <= shutdownTimeout
	sseWriteTimeout = 5 * time.Second

	// sseBuffer is how many notifications a slow SSE client may fall behind
	// before further ones are dropped for it.
	sseBuffer = 64

	shutdownTimeout = 5 * time.Second
)

// Server exposes a single store over HTTP.
//
// Server provides four endpoints:
//   - GET /api/state: Returns the current state and phase as JSON
//   - GET /api/sse: Server-Sent Events stream of every notification
//   - POST /api/refetch: Restarts the request with a fresh retry budget
//   - POST /api/abort: Aborts the store
//
// Cancelling the context given to [Server.Start] shuts it down gracefully.
type Server struct {
	source     Source
	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// stateResponse is the body of GET /api/state.
type stateResponse struct {
	URL   string           `json:"url"`
	Phase fetchstore.Phase `json:"phase"`
	State any              `json:"state"`
}

// actionResponse is the body of the POST endpoints.
type actionResponse struct {
	Phase fetchstore.Phase `json:"phase"`
}

// NewServer returns a [Server] for src. Nothing listens until [Server.Start].
func NewServer(src Source, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source: src,
		port:   port,
		logger: logger,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/refetch", s.handleRefetch)
	mux.HandleFunc("/api/abort", s.handleAbort)
	return mux
}

// Start binds the port and serves in the background until ctx is cancelled,
// then shuts down with a grace period of shutdownTimeout.
//
// A bind failure is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, which unblocks open SSE streams
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// handleState returns the current state as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, stateResponse{
		URL:   s.source.URL(),
		Phase: s.source.Phase(),
		State: s.source.State(),
	})
}

// handleRefetch restarts the store's request.
func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.source.Phase() == fetchstore.PhaseAborted {
		http.Error(w, "store aborted", http.StatusConflict)
		return
	}

	s.source.Refetch()
	s.logger.Info("refetch requested", "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, actionResponse{Phase: s.source.Phase()})
}

// handleAbort aborts the store. Repeated aborts succeed.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.source.Abort()
	s.logger.Info("abort requested", "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, actionResponse{Phase: s.source.Phase()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sseWriter writes events with a per-write deadline so a stalled client
// cannot pin the handler past shutdown.
type sseWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	deadlines bool
	logger    *slog.Logger
}

func (sw *sseWriter) send(state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		sw.logger.Error("failed to encode sse event", "error", err)
		return nil
	}

	if sw.deadlines {
		if err := sw.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
			sw.logger.Debug("sse write deadlines unavailable", "error", err)
			sw.deadlines = false
		}
	}
	if _, err := sw.w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	return sw.rc.Flush()
}

// handleSSE streams every notification of the source as an SSE event,
// starting with the current state. The stream ends when the client leaves,
// the server shuts down, or the store stops.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")

	sw := &sseWriter{w: w, rc: http.NewResponseController(w), deadlines: true, logger: s.logger}

	// the listener runs on the store's driver goroutine and must not block it
	ch := make(chan any, sseBuffer)
	unsubscribe := s.source.Subscribe(func(state any) {
		select {
		case ch <- state:
		default:
			s.logger.Warn("sse client too slow, dropping notification", "remote_addr", r.RemoteAddr)
		}
	})
	defer unsubscribe()

	for {
		select {
		case state := <-ch:
			if err := sw.send(state); err != nil {
				return
			}

		case <-s.source.Done():
			// drain what was published before the store stopped
			for {
				select {
				case state := <-ch:
					if err := sw.send(state); err != nil {
						return
					}
				default:
					return
				}
			}

		case <-r.Context().Done():
			// client gone, or server shutting down via BaseContext
			return
		}
	}
}
