// Package vosk registers an offline recognizer that runs a Vosk model over
// the local microphone.
//go:build vosk && malgo

package vosk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	vosk "github.com/alphacep/vosk-api/go"

	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/plugin"
	"github.com/chriscow/maya-go/pkg/plugin/mic"
)

// result is the JSON Vosk returns for partial and final hypotheses.
type result struct {
	Text    string `json:"text"`
	Partial string `json:"partial,omitempty"`
}

// Recognizer implements stt.Engine with Vosk.
type Recognizer struct {
	model      *vosk.VoskModel
	sampleRate int
	lang       string
	events     chan stt.SpeechEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRecognizer loads the model at modelPath.
func NewRecognizer(modelPath string, sampleRate int, lang string) (*Recognizer, error) {
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", modelPath, err)
	}
	if model == nil {
		return nil, fmt.Errorf("failed to load model from %s: model returned nil", modelPath)
	}
	return &Recognizer{
		model:      model,
		sampleRate: sampleRate,
		lang:       lang,
		events:     make(chan stt.SpeechEvent, 32),
	}, nil
}

// Start opens the microphone and begins recognition.
func (r *Recognizer) Start(ctx context.Context, cfg stt.StreamConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return stt.ErrAlreadyStarted
	}

	rec, err := vosk.NewRecognizer(r.model, float64(r.sampleRate))
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}
	capture, err := mic.Capture(r.sampleRate, 0)
	if err != nil {
		rec.Free()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, rec, capture, cfg.InterimResults, r.done)
	return nil
}

func (r *Recognizer) loop(ctx context.Context, rec *vosk.VoskRecognizer, capture *mic.Stream, interim bool, done chan struct{}) {
	defer close(done)
	defer rec.Free()
	defer capture.Close()

	lastPartial := ""
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-capture.Frames():
			if !ok {
				r.fail("audio-capture")
				return
			}
			if rec.AcceptWaveform(frame.Data) > 0 {
				var res result
				if err := sonic.UnmarshalString(rec.Result(), &res); err != nil {
					slog.Debug("Vosk result parse failed", slog.String("error", err.Error()))
					continue
				}
				lastPartial = ""
				if text := strings.TrimSpace(res.Text); text != "" {
					r.emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: text})
				}
				continue
			}
			if !interim {
				continue
			}
			var res result
			if err := sonic.UnmarshalString(rec.PartialResult(), &res); err != nil {
				continue
			}
			if res.Partial != "" && res.Partial != lastPartial {
				lastPartial = res.Partial
				r.emit(stt.SpeechEvent{Type: stt.SpeechEventInterim, Text: res.Partial})
			}
		}
	}
}

func (r *Recognizer) fail(code string) {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	r.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Code: code})
}

// Stop ends recognition and reports the end of the session.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
	return nil
}

// Events returns the event channel.
func (r *Recognizer) Events() <-chan stt.SpeechEvent { return r.events }

// Capabilities reports continuous recognition with interim results.
func (r *Recognizer) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{r.lang},
	}
}

func (r *Recognizer) emit(ev stt.SpeechEvent) {
	ev.Timestamp = time.Now().UnixMilli()
	select {
	case r.events <- ev:
	default:
		slog.Warn("Vosk event dropped", slog.String("type", ev.Type.String()))
	}
}

func newVoskRecognizer(cfg map[string]any) (any, error) {
	modelPath := plugin.String(cfg, "model_path", defaultModelPath())
	return NewRecognizer(modelPath,
		plugin.Int(cfg, "sample_rate", mic.DefaultSampleRate),
		plugin.String(cfg, "lang", "hi-IN"))
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "vosk",
		Factory:     newVoskRecognizer,
		Description: "Offline Vosk recognizer over the local microphone",
		Version:     "1.0.0",
		Config: map[string]any{
			"model_path":  "Vosk model directory (default $MAYA_MODEL_PATH or ~/.maya/models/vosk)",
			"sample_rate": mic.DefaultSampleRate,
			"lang":        "hi-IN",
		},
	})
}
