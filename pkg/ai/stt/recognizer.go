package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/maya-go/pkg/ai"
)

// Gate decides whether recognition may start right now.
type Gate interface {
	CanListen() bool
}

// Config holds the recognizer's locale and restart timing.
type Config struct {
	Lang              string
	ErrorRestartDelay time.Duration // restart delay after an engine error
	EndRestartDelay   time.Duration // restart delay after the engine ends a session
}

// DefaultConfig returns the recognizer defaults.
func DefaultConfig() Config {
	return Config{
		Lang:              "hi-IN",
		ErrorRestartDelay: 400 * time.Millisecond,
		EndRestartDelay:   350 * time.Millisecond,
	}
}

// Recognizer keeps an Engine listening for the whole call.
//
// Only interim transcripts, final transcripts and non-transient errors are
// forwarded on Events. Engine ends and errors schedule a restart; every
// restart consults the Gate when it fires.
type Recognizer struct {
	engine Engine
	gate   Gate
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	listening bool
	opened    bool
	closed    bool
	timers    map[*time.Timer]struct{}

	events chan SpeechEvent
	done   chan struct{}
}

// NewRecognizer creates a recognizer. The engine may be nil, in which case
// Open reports the capability as unsupported.
func NewRecognizer(engine Engine, gate Gate, cfg Config, logger *slog.Logger) *Recognizer {
	def := DefaultConfig()
	if cfg.Lang == "" {
		cfg.Lang = def.Lang
	}
	if cfg.ErrorRestartDelay <= 0 {
		cfg.ErrorRestartDelay = def.ErrorRestartDelay
	}
	if cfg.EndRestartDelay <= 0 {
		cfg.EndRestartDelay = def.EndRestartDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		engine: engine,
		gate:   gate,
		cfg:    cfg,
		logger: logger,
		timers: make(map[*time.Timer]struct{}),
		events: make(chan SpeechEvent, 16),
		done:   make(chan struct{}),
	}
}

// Open checks the engine capability and starts forwarding its events. It
// does not start recognition; call Resume for that.
func (r *Recognizer) Open(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("no speech engine: %w", ai.ErrCapabilityUnsupported)
	}
	if caps := r.engine.Capabilities(); !caps.Streaming {
		return fmt.Errorf("engine cannot recognize continuously: %w", ai.ErrCapabilityUnsupported)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recognizer closed")
	}
	if r.opened {
		return nil
	}
	r.opened = true
	r.ctx, r.cancel = context.WithCancel(context.Background())

	go r.forward(r.ctx, r.engine.Events())
	return nil
}

// Events returns forwarded transcripts and reportable errors. It is closed
// by Close.
func (r *Recognizer) Events() <-chan SpeechEvent {
	return r.events
}

// Listening reports whether the engine is believed to be running.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Resume starts recognition if the gate allows it. The gate is checked and
// the engine started under the same lock Stop takes, so a concurrent Stop
// either sees the started engine or the start never happens.
func (r *Recognizer) Resume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened || r.closed {
		return false
	}
	if r.gate != nil && !r.gate.CanListen() {
		return false
	}

	err := r.engine.Start(r.ctx, StreamConfig{
		Lang:           r.cfg.Lang,
		Continuous:     true,
		InterimResults: true,
	})
	switch {
	case err == nil:
		r.listening = true
	case errors.Is(err, ErrAlreadyStarted):
		r.listening = true
	default:
		r.logger.Debug("Recognition start refused", slog.String("error", err.Error()))
		return false
	}
	return true
}

// ResumeAfter schedules Resume after d.
func (r *Recognizer) ResumeAfter(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		r.Resume()
	})
	r.timers[t] = struct{}{}
}

// Stop stops recognition. Stopping a stopped recognizer is a no-op.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recognizer) stopLocked() {
	if r.engine == nil {
		return
	}
	if err := r.engine.Stop(); err != nil {
		r.logger.Debug("Recognition stop failed", slog.String("error", err.Error()))
	}
	r.listening = false
}

// Close stops recognition, cancels pending restarts and closes Events.
// It is idempotent.
func (r *Recognizer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	r.stopLocked()
	opened := r.opened
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if opened {
		<-r.done
	} else {
		close(r.done)
	}
	close(r.events)
}

func (r *Recognizer) forward(ctx context.Context, in <-chan SpeechEvent) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Recognizer) handle(ctx context.Context, ev SpeechEvent) {
	switch ev.Type {
	case SpeechEventInterim:
		r.emit(ctx, ev)

	case SpeechEventFinal:
		ev.Text = strings.TrimSpace(ev.Text)
		if ev.Text == "" {
			return
		}
		r.emit(ctx, ev)

	case SpeechEventError:
		r.setListening(false)
		if IsTransient(ev.Code) {
			r.logger.Debug("Transient speech error, restarting", slog.String("code", ev.Code))
		} else {
			r.logger.Warn("Speech error", slog.String("code", ev.Code))
			ev.Error = &ai.RecognitionError{Code: ev.Code}
			r.emit(ctx, ev)
		}
		r.ResumeAfter(r.cfg.ErrorRestartDelay)

	case SpeechEventEnd:
		r.setListening(false)
		r.ResumeAfter(r.cfg.EndRestartDelay)
	}
}

func (r *Recognizer) setListening(v bool) {
	r.mu.Lock()
	r.listening = v
	r.mu.Unlock()
}

func (r *Recognizer) emit(ctx context.Context, ev SpeechEvent) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}
