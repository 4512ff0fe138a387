package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/maya-go/pkg/ai/tts"
)

// FakeTTS is a fake synthesis engine for testing. With AutoFinish zero an
// utterance plays until Finish, Fail or Cancel is called.
type FakeTTS struct {
	// AutoFinish ends each utterance after the given duration when non-zero.
	AutoFinish time.Duration
	// FailStart makes Speak return an error.
	FailStart error

	mu         sync.Mutex
	voices     []tts.Voice
	utterances []tts.Utterance
	cancels    int
	active     chan tts.PlaybackEvent
	stop       chan struct{}
}

// NewFakeTTS creates a new fake synthesis engine.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{
		voices: []tts.Voice{
			{Name: "Microsoft David", Lang: "en-US"},
			{Name: "Lekha", Lang: "hi-IN"},
		},
	}
}

// Speak starts a fake utterance.
func (f *FakeTTS) Speak(ctx context.Context, u tts.Utterance) (<-chan tts.PlaybackEvent, error) {
	if f.FailStart != nil {
		return nil, f.FailStart
	}

	events := make(chan tts.PlaybackEvent, 4)
	stop := make(chan struct{})

	f.mu.Lock()
	f.utterances = append(f.utterances, u)
	f.active = events
	f.stop = stop
	f.mu.Unlock()

	events <- tts.PlaybackEvent{Type: tts.PlaybackStart}

	if f.AutoFinish > 0 {
		go func() {
			select {
			case <-time.After(f.AutoFinish):
				f.end(events, tts.PlaybackEvent{Type: tts.PlaybackEnd})
			case <-stop:
			case <-ctx.Done():
				f.end(events, tts.PlaybackEvent{Type: tts.PlaybackError, Err: ctx.Err()})
			}
		}()
	}
	return events, nil
}

// Cancel stops the current utterance.
func (f *FakeTTS) Cancel() {
	f.mu.Lock()
	f.cancels++
	events := f.active
	f.mu.Unlock()
	if events != nil {
		f.end(events, tts.PlaybackEvent{Type: tts.PlaybackError})
	}
}

// Finish ends the current utterance normally.
func (f *FakeTTS) Finish() {
	f.mu.Lock()
	events := f.active
	f.mu.Unlock()
	if events != nil {
		f.end(events, tts.PlaybackEvent{Type: tts.PlaybackEnd})
	}
}

// Fail ends the current utterance with an engine error.
func (f *FakeTTS) Fail(err error) {
	f.mu.Lock()
	events := f.active
	f.mu.Unlock()
	if events != nil {
		f.end(events, tts.PlaybackEvent{Type: tts.PlaybackError, Err: err})
	}
}

// Voices returns the fake voices.
func (f *FakeTTS) Voices() []tts.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.Voice(nil), f.voices...)
}

// SetVoices replaces the fake voice list.
func (f *FakeTTS) SetVoices(voices []tts.Voice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = voices
}

// Capabilities returns the fake capabilities.
func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages:   []string{"hi-IN", "en-US"},
		SupportsVoiceSelect:  true,
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}

// Utterances returns every utterance spoken so far.
func (f *FakeTTS) Utterances() []tts.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.Utterance(nil), f.utterances...)
}

// Cancels returns how many times Cancel was called.
func (f *FakeTTS) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// Playing reports whether an utterance is in progress.
func (f *FakeTTS) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active != nil
}

func (f *FakeTTS) end(events chan tts.PlaybackEvent, last tts.PlaybackEvent) {
	f.mu.Lock()
	if f.active != events {
		f.mu.Unlock()
		return
	}
	f.active = nil
	close(f.stop)
	f.stop = nil
	f.mu.Unlock()

	events <- last
	close(events)
}
