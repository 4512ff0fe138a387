package tts

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Suppressor is stopped while Maya speaks so the microphone does not
// transcribe her own voice.
type Suppressor interface {
	Stop()
}

// Activity records whether Maya is speaking.
type Activity interface {
	SetSpeaking(speaking bool)
}

// Config holds the voice settings for every utterance.
type Config struct {
	Lang            string
	Voice           string   // exact voice name; empty selects from PreferredVoices
	PreferredVoices []string // substrings tried in order
	Rate            float32
	Pitch           float32
	Volume          float32
}

// DefaultConfig returns Maya's voice settings.
func DefaultConfig() Config {
	return Config{
		Lang: "hi-IN",
		PreferredVoices: []string{
			"Google हिन्दी", "Lekha", "Veena", "Samantha", "Karen", "Moira", "Tessa", "Victoria",
		},
		Rate:   1.05,
		Pitch:  1.1,
		Volume: 1,
	}
}

// Synthesizer speaks replies through an Engine. Speak never fails: engine
// errors are logged and reported as completion, so a call can never get
// stuck speaking.
type Synthesizer struct {
	engine     Engine
	cfg        Config
	suppress   Suppressor
	activity   Activity
	onSpeaking func(bool)
	logger     *slog.Logger

	mu      sync.Mutex
	current *playback
}

type playback struct {
	id      string
	done    chan struct{}
	once    sync.Once
	started bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSuppressor sets what to stop while speaking.
func WithSuppressor(s Suppressor) Option {
	return func(syn *Synthesizer) { syn.suppress = s }
}

// WithActivity sets where the speaking flag is recorded.
func WithActivity(a Activity) Option {
	return func(syn *Synthesizer) { syn.activity = a }
}

// WithSpeakingHook sets a callback for audible start and finish.
func WithSpeakingHook(fn func(speaking bool)) Option {
	return func(syn *Synthesizer) { syn.onSpeaking = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(syn *Synthesizer) { syn.logger = l }
}

// NewSynthesizer creates a synthesizer over the engine.
func NewSynthesizer(engine Engine, cfg Config, opts ...Option) *Synthesizer {
	s := &Synthesizer{engine: engine, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak vocalizes text after cleaning it. The returned channel is closed
// when the utterance has finished, failed or been cancelled. Cleaned text
// that is empty completes immediately without touching the engine.
func (s *Synthesizer) Speak(ctx context.Context, text string) <-chan struct{} {
	// A new reply always replaces whatever is playing.
	s.Cancel()

	pb := &playback{id: uuid.NewString(), done: make(chan struct{})}
	clean := CleanText(text)
	if clean == "" || s.engine == nil {
		close(pb.done)
		return pb.done
	}

	s.mu.Lock()
	s.current = pb
	s.mu.Unlock()

	if s.activity != nil {
		s.activity.SetSpeaking(true)
	}
	if s.suppress != nil {
		s.suppress.Stop()
	}

	u := Utterance{
		ID:     pb.id,
		Text:   clean,
		Lang:   s.cfg.Lang,
		Voice:  s.cfg.Voice,
		Rate:   s.cfg.Rate,
		Pitch:  s.cfg.Pitch,
		Volume: s.cfg.Volume,
	}
	if u.Voice == "" {
		if v, ok := SelectVoice(s.engine.Voices(), s.cfg.PreferredVoices, s.cfg.Lang); ok {
			u.Voice = v.Name
		}
	}

	events, err := s.engine.Speak(ctx, u)
	if err != nil {
		s.logger.Warn("Speech synthesis failed to start", slog.String("error", err.Error()))
		s.finish(pb)
		return pb.done
	}

	go func() {
		defer s.finish(pb)
		for ev := range events {
			switch ev.Type {
			case PlaybackStart:
				s.mu.Lock()
				live := s.current == pb
				if live {
					pb.started = true
				}
				s.mu.Unlock()
				if live && s.onSpeaking != nil {
					s.onSpeaking(true)
				}
			case PlaybackError:
				if ev.Err != nil {
					s.logger.Warn("Speech synthesis error", slog.String("error", ev.Err.Error()))
				}
				return
			case PlaybackEnd:
				return
			}
		}
	}()

	return pb.done
}

// Cancel stops any in-progress utterance and signals it finished.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	pb := s.current
	s.mu.Unlock()

	if s.engine != nil {
		s.engine.Cancel()
	}
	if pb != nil {
		s.finish(pb)
	}
}

// Speaking reports whether an utterance is in progress.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Synthesizer) finish(pb *playback) {
	pb.once.Do(func() {
		s.mu.Lock()
		wasCurrent := s.current == pb
		if wasCurrent {
			s.current = nil
		}
		started := pb.started
		s.mu.Unlock()

		if wasCurrent && s.activity != nil {
			s.activity.SetSpeaking(false)
		}
		if started && s.onSpeaking != nil {
			s.onSpeaking(false)
		}
		close(pb.done)
	})
}
