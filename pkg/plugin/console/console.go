// Package console provides terminal engines: typed lines stand in for
// recognized speech and replies are printed instead of spoken. The console
// microphone is silent, so the audio level stays at zero.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
	"github.com/chriscow/maya-go/pkg/plugin"
	"github.com/chriscow/maya-go/pkg/rtc"
)

// Recognizer turns lines read from an io.Reader into final transcripts.
// A line typed while recognition is stopped is held and delivered on the
// next Start; a newer line replaces it.
type Recognizer struct {
	in     io.Reader
	events chan stt.SpeechEvent
	once   sync.Once

	mu      sync.Mutex
	running bool
	pending string
}

// NewRecognizer creates a recognizer reading from in.
func NewRecognizer(in io.Reader) *Recognizer {
	return &Recognizer{in: in, events: make(chan stt.SpeechEvent, 16)}
}

// Start begins delivering lines.
func (r *Recognizer) Start(ctx context.Context, cfg stt.StreamConfig) error {
	r.once.Do(func() { go r.read() })

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return stt.ErrAlreadyStarted
	}
	r.running = true
	line := r.pending
	r.pending = ""
	r.mu.Unlock()

	if line != "" {
		r.emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: line})
	}
	return nil
}

// Stop stops delivering lines and reports the end of the session.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	was := r.running
	r.running = false
	r.mu.Unlock()
	if was {
		r.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
	}
	return nil
}

// Events returns the event channel.
func (r *Recognizer) Events() <-chan stt.SpeechEvent { return r.events }

// Capabilities reports continuous recognition without interim results.
func (r *Recognizer) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{Streaming: true}
}

func (r *Recognizer) read() {
	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.mu.Lock()
		if !r.running {
			r.pending = line
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()
		r.emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: line})
	}
}

func (r *Recognizer) emit(ev stt.SpeechEvent) {
	ev.Timestamp = time.Now().UnixMilli()
	r.events <- ev
}

// Synthesizer prints each utterance and holds playback for the time a
// person would take to say it.
type Synthesizer struct {
	out     io.Writer
	name    string
	perRune time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewSynthesizer creates a synthesizer writing to out, labelling lines with
// name. perRune is the simulated speaking time per character.
func NewSynthesizer(out io.Writer, name string, perRune time.Duration) *Synthesizer {
	return &Synthesizer{out: out, name: name, perRune: perRune}
}

// Speak prints the utterance and finishes after the simulated duration.
func (s *Synthesizer) Speak(ctx context.Context, u tts.Utterance) (<-chan tts.PlaybackEvent, error) {
	if _, err := fmt.Fprintf(s.out, "%s: %s\n", s.name, u.Text); err != nil {
		return nil, err
	}

	events := make(chan tts.PlaybackEvent, 2)
	stop := make(chan struct{})
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	events <- tts.PlaybackEvent{Type: tts.PlaybackStart}
	d := time.Duration(utf8.RuneCountInString(u.Text)) * s.perRune
	go func() {
		defer close(events)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			events <- tts.PlaybackEvent{Type: tts.PlaybackEnd}
		case <-stop:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// Cancel ends the current utterance.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// Voices returns the single console voice.
func (s *Synthesizer) Voices() []tts.Voice {
	return []tts.Voice{{Name: s.name, Lang: "hi-IN"}}
}

// Capabilities returns the console capabilities.
func (s *Synthesizer) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{SupportedLanguages: []string{"hi-IN"}}
}

// SilentMic is a microphone that is always granted and never hears anything.
type SilentMic struct{}

// Open returns a stream with no frames.
func (SilentMic) Open(ctx context.Context) (meter.Stream, error) {
	return &silentStream{frames: make(chan rtc.AudioFrame)}, nil
}

type silentStream struct {
	frames chan rtc.AudioFrame
}

func (s *silentStream) Frames() <-chan rtc.AudioFrame { return s.frames }
func (s *silentStream) Close() error                  { return nil }

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindMic,
		Name:        "console",
		Factory:     func(map[string]any) (any, error) { return SilentMic{}, nil },
		Description: "Silent microphone for terminal calls",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindSTT,
		Name: "console",
		Factory: func(cfg map[string]any) (any, error) {
			in, ok := cfg["reader"].(io.Reader)
			if !ok {
				in = os.Stdin
			}
			return NewRecognizer(in), nil
		},
		Description: "Reads transcripts from standard input",
		Version:     "1.0.0",
		Config:      map[string]any{"reader": "io.Reader to read lines from (default stdin)"},
	})

	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindTTS,
		Name: "console",
		Factory: func(cfg map[string]any) (any, error) {
			out, ok := cfg["writer"].(io.Writer)
			if !ok {
				out = os.Stdout
			}
			perRune := time.Duration(plugin.Int(cfg, "ms_per_rune", 40)) * time.Millisecond
			return NewSynthesizer(out, plugin.String(cfg, "name", "Maya"), perRune), nil
		},
		Description: "Prints replies to standard output",
		Version:     "1.0.0",
		Config: map[string]any{
			"writer":      "io.Writer to print to (default stdout)",
			"name":        "speaker label",
			"ms_per_rune": "simulated speaking time per character",
		},
	})
}
