package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/maya-go/pkg/ai/stt"
)

// FakeSTT is a scriptable recognition engine for testing. Tests drive it
// with EmitFinal, EmitError and EmitEnd.
type FakeSTT struct {
	// Unsupported makes Capabilities report no streaming support.
	Unsupported bool

	mu      sync.Mutex
	running bool
	starts  int
	stops   int
	lastCfg stt.StreamConfig
	events  chan stt.SpeechEvent
}

// NewFakeSTT creates a new fake recognition engine.
func NewFakeSTT() *FakeSTT {
	return &FakeSTT{events: make(chan stt.SpeechEvent, 64)}
}

// Start marks the engine running.
func (f *FakeSTT) Start(ctx context.Context, cfg stt.StreamConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return stt.ErrAlreadyStarted
	}
	f.running = true
	f.starts++
	f.lastCfg = cfg
	return nil
}

// Stop marks the engine stopped and, like a browser engine, reports the
// end of the session.
func (f *FakeSTT) Stop() error {
	f.mu.Lock()
	wasRunning := f.running
	f.running = false
	if wasRunning {
		f.stops++
	}
	f.mu.Unlock()

	if wasRunning {
		f.send(stt.SpeechEvent{Type: stt.SpeechEventEnd})
	}
	return nil
}

// Events returns the events channel.
func (f *FakeSTT) Events() <-chan stt.SpeechEvent {
	return f.events
}

// Capabilities returns the fake capabilities.
func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	if f.Unsupported {
		return stt.STTCapabilities{}
	}
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"hi-IN", "en-IN", "en-US"},
	}
}

// EmitInterim sends an interim transcript.
func (f *FakeSTT) EmitInterim(text string) {
	f.send(stt.SpeechEvent{Type: stt.SpeechEventInterim, Text: text})
}

// EmitFinal sends a final transcript, whether or not the engine is running.
// Real engines can deliver a result right after being stopped.
func (f *FakeSTT) EmitFinal(text string) {
	f.send(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: text})
}

// EmitError stops the engine with an error code.
func (f *FakeSTT) EmitError(code string) {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.send(stt.SpeechEvent{Type: stt.SpeechEventError, Code: code})
}

// EmitEnd stops the engine as if it timed out on its own.
func (f *FakeSTT) EmitEnd() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.send(stt.SpeechEvent{Type: stt.SpeechEventEnd})
}

// Running reports whether the engine is running.
func (f *FakeSTT) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Starts returns how many times the engine was started.
func (f *FakeSTT) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many times a running engine was stopped.
func (f *FakeSTT) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// LastConfig returns the config of the most recent successful Start.
func (f *FakeSTT) LastConfig() stt.StreamConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCfg
}

func (f *FakeSTT) send(ev stt.SpeechEvent) {
	ev.Timestamp = time.Now().UnixMilli()
	f.events <- ev
}
