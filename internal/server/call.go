package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chriscow/maya-go/internal/bridge"
	"github.com/chriscow/maya-go/pkg/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleCall runs one voice call per WebSocket. The page supplies the
// devices through the bridge; the server owns the controller.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if s.opts.Upstream == nil {
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade call connection", slog.String("error", err.Error()))
		return
	}

	logger := s.logger.With(slog.String("remote", r.RemoteAddr))
	b := bridge.New(conn, logger)

	cfg := s.opts.Call
	cfg.Microphone = b.Microphone()
	cfg.STT = b.Recognizer()
	cfg.TTS = b.Synthesizer()
	cfg.Relay = s.opts.Upstream
	if cfg.Photos == nil {
		cfg.Photos = s.opts.Photos
	}
	cfg.Observer = b.Observer()
	cfg.Logger = logger

	ctrl, err := agent.New(cfg)
	if err != nil {
		logger.Error("Failed to create call controller", slog.String("error", err.Error()))
		conn.Close()
		return
	}

	callsActive.Add(1)
	defer callsActive.Add(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.controlCall(ctx, b, ctrl, logger)

	if err := b.Run(ctx); err != nil {
		logger.Info("Call connection ended", slog.String("error", err.Error()))
	}
	ctrl.EndCall()

	m := ctrl.Metrics()
	callTurns.Add(m.Turns.Value())
	callFailed.Add(m.FailedTurns.Value())
}

// controlCall applies the page's call controls. StartCall runs on its own
// goroutine so end requests are still handled while the page shows the
// permission prompt.
func (s *Server) controlCall(ctx context.Context, b *bridge.Bridge, ctrl *agent.Controller, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Done():
			return
		case c := <-b.Controls():
			logger.Debug("Call control", slog.String("control", c.String()))
			switch c {
			case bridge.ControlStart:
				go func() {
					err := ctrl.StartCall(ctx)
					switch {
					case err == nil:
						callsTotal.Add(1)
					case errors.Is(err, agent.ErrCallActive), errors.Is(err, agent.ErrCallEnded):
						logger.Debug("Start ignored", slog.String("reason", err.Error()))
					default:
						logger.Info("Call failed to start", slog.String("error", err.Error()))
					}
				}()
			case bridge.ControlEnd:
				ctrl.EndCall()
			case bridge.ControlInterrupt:
				ctrl.Interrupt()
			}
		}
	}
}
