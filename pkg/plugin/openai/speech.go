package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/maya-go/pkg/ai/tts"
	"github.com/chriscow/maya-go/pkg/plugin"
)

// SpeechSampleRate is the rate of the raw PCM the speech endpoint returns.
const SpeechSampleRate = 24000

// Player plays mono PCM16 at SpeechSampleRate. Play returns once pcm is
// exhausted and played, or when ctx is done.
type Player interface {
	Play(ctx context.Context, pcm io.Reader) error
}

// SpeechConfig configures a Speaker.
type SpeechConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	HTTPClient *http.Client
}

// Speaker synthesizes replies with the OpenAI speech endpoint and plays
// them through a Player.
type Speaker struct {
	client *openai.Client
	cfg    SpeechConfig
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSpeaker creates a speech engine.
func NewSpeaker(cfg SpeechConfig, player Player, logger *slog.Logger) (*Speaker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if player == nil {
		return nil, fmt.Errorf("speaker needs a player")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceNova)
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Speaker{client: openai.NewClientWithConfig(oc), cfg: cfg, player: player, logger: logger}, nil
}

// Speak requests the audio and plays it. A cancelled utterance closes the
// channel without an end event.
func (s *Speaker) Speak(ctx context.Context, u tts.Utterance) (<-chan tts.PlaybackEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.Model),
		Input:          tts.CleanText(u.Text),
		Voice:          openai.SpeechVoice(s.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	}
	if u.Voice != "" {
		req.Voice = openai.SpeechVoice(u.Voice)
	}
	if u.Rate > 0 {
		req.Speed = float64(u.Rate)
	}

	events := make(chan tts.PlaybackEvent, 2)
	go func() {
		defer close(events)
		defer cancel()

		start := time.Now()
		audio, err := s.client.CreateSpeech(ctx, req)
		if err != nil {
			if ctx.Err() == nil {
				err = MapError(err)
				s.logger.Warn("Speech request failed", slog.String("error", err.Error()))
				events <- tts.PlaybackEvent{Type: tts.PlaybackError, Err: err}
			}
			return
		}
		defer audio.Close()

		events <- tts.PlaybackEvent{Type: tts.PlaybackStart}
		err = s.player.Play(ctx, audio)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			s.logger.Warn("Speech playback failed", slog.String("error", err.Error()))
			events <- tts.PlaybackEvent{Type: tts.PlaybackError, Err: err}
		default:
			s.logger.Debug("Speech played",
				slog.String("voice", string(req.Voice)),
				slog.Duration("duration", time.Since(start)))
			events <- tts.PlaybackEvent{Type: tts.PlaybackEnd}
		}
	}()
	return events, nil
}

// Cancel stops the current utterance.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Voices returns the endpoint's voices.
func (s *Speaker) Voices() []tts.Voice {
	names := []openai.SpeechVoice{
		openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer,
	}
	voices := make([]tts.Voice, len(names))
	for i, n := range names {
		voices[i] = tts.Voice{Name: string(n), Lang: "hi-IN"}
	}
	return voices
}

// Capabilities reports voice and speed control.
func (s *Speaker) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages:   []string{"hi-IN", "en-IN"},
		SupportsVoiceSelect:  true,
		SupportsSpeedControl: true,
	}
}

// pcmQueue decouples a network body from an audio callback that must not
// block. read pads with silence while the body lags.
type pcmQueue struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	eof     bool
	err     error
	drained chan struct{}
	once    sync.Once
}

func newPCMQueue() *pcmQueue {
	return &pcmQueue{drained: make(chan struct{})}
}

// fill copies r into the queue until r is exhausted.
func (q *pcmQueue) fill(r io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		q.mu.Lock()
		q.buf.Write(chunk[:n])
		if err != nil {
			q.eof = true
			if !errors.Is(err, io.EOF) {
				q.err = err
			}
		}
		empty := q.eof && q.buf.Len() == 0
		q.mu.Unlock()
		if empty {
			q.once.Do(func() { close(q.drained) })
		}
		if err != nil {
			return
		}
	}
}

// read fills out with queued audio and silence.
func (q *pcmQueue) read(out []byte) {
	q.mu.Lock()
	n, _ := q.buf.Read(out)
	empty := q.eof && q.buf.Len() == 0
	q.mu.Unlock()
	clear(out[n:])
	if empty {
		q.once.Do(func() { close(q.drained) })
	}
}

// done is closed once the body ended and every byte was read.
func (q *pcmQueue) done() <-chan struct{} { return q.drained }

func (q *pcmQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func newOpenAISpeaker(cfg map[string]any) (any, error) {
	apiKey := plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}
	player, err := newPlayer()
	if err != nil {
		return nil, err
	}
	return NewSpeaker(SpeechConfig{
		APIKey:  apiKey,
		BaseURL: plugin.String(cfg, "base_url", ""),
		Model:   plugin.String(cfg, "model", ""),
		Voice:   plugin.String(cfg, "voice", ""),
	}, player, nil)
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     newOpenAISpeaker,
		Description: "OpenAI speech synthesis played on the local speaker (needs -tags=malgo)",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "API key (or set OPENAI_API_KEY env var)",
			"base_url": "OpenAI-compatible base URL",
			"model":    "tts-1",
			"voice":    "nova",
		},
	})
}
