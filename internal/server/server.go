// Package server hosts the backend functions the call client talks to: the
// streaming chat proxy, the photo generator and the browser call endpoint.
package server

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/ai/llm"
	"github.com/chriscow/maya-go/pkg/photo"
)

// Route paths.
const (
	ChatPath   = "/functions/v1/maya-chat"
	PhotoPath  = "/functions/v1/maya-photo"
	CallPath   = "/call"
	VarsPath   = "/debug/vars"
	HealthPath = "/healthz"
)

var (
	callsTotal  = expvar.NewInt("maya_calls_total")
	callsActive = expvar.NewInt("maya_calls_active")
	callTurns   = expvar.NewInt("maya_call_turns")
	callFailed  = expvar.NewInt("maya_call_failed_turns")
	chatStreams = expvar.NewInt("maya_chat_streams")
	chatErrors  = expvar.NewMap("maya_chat_errors")
)

// Options configures a Server.
type Options struct {
	Addr string

	// Upstream streams completions for the chat proxy and for browser
	// calls. A nil Upstream makes both report a configuration error.
	Upstream llm.Relay
	// Photos generates photos. A nil Photos makes the photo endpoint fail.
	Photos photo.Requester

	// Call configures controllers created for browser calls. Devices and
	// relay are filled in per connection.
	Call agent.Config

	Logger *slog.Logger
}

// Server serves the chat, photo and call endpoints.
type Server struct {
	opts   Options
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts, logger: opts.Logger, mux: http.NewServeMux()}
	s.mux.Handle(ChatPath, cors(http.HandlerFunc(s.handleChat)))
	s.mux.Handle(PhotoPath, cors(http.HandlerFunc(s.handlePhoto)))
	s.mux.HandleFunc(CallPath, s.handleCall)
	s.mux.Handle(VarsPath, expvar.Handler())
	s.mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", slog.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"encode failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
