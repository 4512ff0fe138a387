package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zaf/g711"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
	"github.com/chriscow/maya-go/pkg/rtc"
)

var errDenied = fmt.Errorf("page refused microphone: %w", ai.ErrPermissionDenied)

// Microphone is the page's getUserMedia stream.
type Microphone struct {
	b *Bridge

	mu      sync.Mutex
	pending chan error
	stream  *micStream
}

// Open asks the page for microphone access and waits for the answer.
func (m *Microphone) Open(ctx context.Context) (meter.Stream, error) {
	answer := make(chan error, 1)
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("microphone request already pending")
	}
	m.pending = answer
	m.mu.Unlock()

	abandon := func() {
		m.mu.Lock()
		if m.pending == answer {
			m.pending = nil
		}
		m.mu.Unlock()
	}

	if err := m.b.send(&Command{Type: CommandMicOpen}); err != nil {
		abandon()
		return nil, err
	}

	select {
	case err := <-answer:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	case <-m.b.closed:
		abandon()
		return nil, ErrClosed
	}

	s := &micStream{m: m, frames: make(chan rtc.AudioFrame, 32)}
	m.mu.Lock()
	m.stream = s
	m.mu.Unlock()
	return s, nil
}

func (m *Microphone) answer(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return
	}
	m.pending <- err
	m.pending = nil
}

func (m *Microphone) push(ulaw []byte) {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s == nil {
		return
	}
	pcm := g711.DecodeUlaw(ulaw)
	s.push(rtc.AudioFrame{
		Data:              pcm,
		SampleRate:        MicSampleRate,
		SamplesPerChannel: len(pcm) / 2,
		NumChannels:       1,
	})
}

func (m *Microphone) shutdown() {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s != nil {
		s.close()
	}
}

type micStream struct {
	m      *Microphone
	frames chan rtc.AudioFrame

	mu     sync.Mutex
	closed bool
}

func (s *micStream) Frames() <-chan rtc.AudioFrame { return s.frames }

// Close stops delivery and tells the page to release the microphone.
func (s *micStream) Close() error {
	if !s.close() {
		return nil
	}
	if err := s.m.b.send(&Command{Type: CommandMicClose}); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func (s *micStream) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.frames)

	s.m.mu.Lock()
	if s.m.stream == s {
		s.m.stream = nil
	}
	s.m.mu.Unlock()
	return true
}

func (s *micStream) push(f rtc.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- f:
	default:
	}
}

// Recognizer is the page's speech recognizer.
type Recognizer struct {
	b      *Bridge
	events chan stt.SpeechEvent

	mu      sync.Mutex
	running bool
	speech  bool
	langs   []string
}

// Start asks the page to begin continuous recognition.
func (r *Recognizer) Start(ctx context.Context, cfg stt.StreamConfig) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return stt.ErrAlreadyStarted
	}
	r.running = true
	r.mu.Unlock()

	err := r.b.send(&Command{Type: CommandSTTStart, Data: map[string]any{
		"lang":       cfg.Lang,
		"continuous": cfg.Continuous,
		"interim":    cfg.InterimResults,
	}})
	if err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}
	return err
}

// Stop asks the page to stop recognition. The page reports stt.end.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	was := r.running
	r.running = false
	r.mu.Unlock()
	if !was {
		return nil
	}
	if err := r.b.send(&Command{Type: CommandSTTStop}); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// Events returns recognition events from the page.
func (r *Recognizer) Events() <-chan stt.SpeechEvent { return r.events }

// Capabilities reflects what the page announced in its hello.
func (r *Recognizer) Capabilities() stt.STTCapabilities {
	r.mu.Lock()
	defer r.mu.Unlock()
	return stt.STTCapabilities{
		Streaming:          r.speech,
		InterimResults:     r.speech,
		SupportedLanguages: r.langs,
	}
}

func (r *Recognizer) hello(data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := data["recognition"].(bool); ok {
		r.speech = v
	}
	if lang := str(data, "lang"); lang != "" {
		r.langs = []string{lang}
	}
}

func (r *Recognizer) handle(signal *Signal) {
	ev := stt.SpeechEvent{Timestamp: time.Now().UnixMilli()}
	switch signal.Type {
	case SignalSTTInterim:
		ev.Type, ev.Text = stt.SpeechEventInterim, str(signal.Data, "text")
	case SignalSTTFinal:
		ev.Type, ev.Text = stt.SpeechEventFinal, str(signal.Data, "text")
	case SignalSTTError:
		r.setStopped()
		ev.Type, ev.Code = stt.SpeechEventError, str(signal.Data, "code")
	case SignalSTTEnd:
		r.setStopped()
		ev.Type = stt.SpeechEventEnd
	}
	select {
	case r.events <- ev:
	case <-r.b.closed:
	}
}

func (r *Recognizer) setStopped() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Synthesizer is the page's speechSynthesis.
type Synthesizer struct {
	b *Bridge

	mu     sync.Mutex
	active map[string]chan tts.PlaybackEvent
	voices []tts.Voice
}

// Speak asks the page to say the utterance.
func (s *Synthesizer) Speak(ctx context.Context, u tts.Utterance) (<-chan tts.PlaybackEvent, error) {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	events := make(chan tts.PlaybackEvent, 4)

	s.mu.Lock()
	s.active[id] = events
	s.mu.Unlock()

	err := s.b.send(&Command{Type: CommandTTSSpeak, Data: map[string]any{
		"id":     id,
		"text":   u.Text,
		"lang":   u.Lang,
		"voice":  u.Voice,
		"rate":   u.Rate,
		"pitch":  u.Pitch,
		"volume": u.Volume,
	}})
	if err != nil {
		s.finish(id, nil)
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.finish(id, nil)
		case <-s.b.closed:
		}
	}()
	return events, nil
}

// Cancel ends every utterance and tells the page to stop talking.
func (s *Synthesizer) Cancel() {
	s.shutdown()
	_ = s.b.send(&Command{Type: CommandTTSCancel})
}

// Voices returns the voices the page announced.
func (s *Synthesizer) Voices() []tts.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tts.Voice(nil), s.voices...)
}

// Capabilities returns the page synthesis capabilities.
func (s *Synthesizer) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportsVoiceSelect:  true,
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}

func (s *Synthesizer) hello(data map[string]any) {
	list, _ := data["voices"].([]any)
	var voices []tts.Voice
	for _, item := range list {
		v, ok := item.(map[string]any)
		if !ok {
			continue
		}
		voices = append(voices, tts.Voice{Name: str(v, "name"), Lang: str(v, "lang")})
	}
	if len(voices) == 0 {
		return
	}
	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
}

func (s *Synthesizer) handle(signal *Signal) {
	id := str(signal.Data, "id")
	switch signal.Type {
	case SignalTTSStart:
		s.mu.Lock()
		if ch, ok := s.active[id]; ok {
			select {
			case ch <- tts.PlaybackEvent{Type: tts.PlaybackStart}:
			default:
			}
		}
		s.mu.Unlock()
	case SignalTTSEnd:
		s.finish(id, &tts.PlaybackEvent{Type: tts.PlaybackEnd})
	case SignalTTSError:
		s.finish(id, &tts.PlaybackEvent{
			Type: tts.PlaybackError,
			Err:  fmt.Errorf("page synthesis error: %s", str(signal.Data, "error")),
		})
	}
}

func (s *Synthesizer) finish(id string, last *tts.PlaybackEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.active[id]
	if !ok {
		return
	}
	delete(s.active, id)
	if last != nil {
		select {
		case ch <- *last:
		default:
		}
	}
	close(ch)
}

func (s *Synthesizer) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.active {
		close(ch)
		delete(s.active, id)
	}
}
