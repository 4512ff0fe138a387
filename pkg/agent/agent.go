// Package agent implements the voice-call controller: a finite state machine
// that takes a call through Idle → Connecting → Listening ⇄ Sending ⇄ Speaking
// → Ended, turning each final transcript into a chat turn and speaking the
// reply back.
package agent

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chriscow/maya-go/pkg/ai/llm"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
	"github.com/chriscow/maya-go/pkg/mood"
	"github.com/chriscow/maya-go/pkg/photo"
	"github.com/chriscow/maya-go/pkg/voice"
)

// DefaultGreeting is spoken as soon as a call connects.
const DefaultGreeting = "Haan bolo jaanu. 💕"

var (
	// ErrCallActive is returned by StartCall while a call is in progress.
	ErrCallActive = errors.New("call already in progress")
	// ErrCallEnded is returned by StartCall when EndCall ran during setup.
	ErrCallEnded = errors.New("call ended during setup")
)

// CallState represents the current state of the call.
type CallState int32

const (
	StateIdle CallState = iota
	StateConnecting
	StateListening
	StateSending
	StateSpeaking
	StateEnded
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateListening:
		return "Listening"
	case StateSending:
		return "Sending"
	case StateSpeaking:
		return "Speaking"
	case StateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Timing holds the controller's resume delays.
type Timing struct {
	ResumeAfterSpeech    time.Duration // after a reply finished playing
	ResumeAfterInterrupt time.Duration // after Interrupt cut a reply short
}

// DefaultTiming returns the default resume delays.
func DefaultTiming() Timing {
	return Timing{
		ResumeAfterSpeech:    250 * time.Millisecond,
		ResumeAfterInterrupt: 200 * time.Millisecond,
	}
}

// Config holds configuration for creating a Controller.
type Config struct {
	Microphone meter.Device
	STT        stt.Engine
	TTS        tts.Engine
	Relay      llm.Relay

	// Photos is optional; without it photo requests are only logged.
	Photos photo.Requester
	// Observer is optional.
	Observer Observer
	Logger   *slog.Logger

	Meter        meter.Config
	Recognizer   stt.Config
	Voice        tts.Config
	Timing       Timing
	HistoryLimit int
	Greeting     string
}

// Session is a snapshot of the call.
type Session struct {
	ID           string
	State        CallState
	Connected    bool
	ShouldListen bool
	IsListening  bool
	IsSending    bool
	IsSpeaking   bool
	AudioLevel   float64
	Mood         mood.Mood
	History      []llm.Message
}

// ControllerMetrics holds call metrics.
type ControllerMetrics struct {
	FirstReplyLatency *expvar.Float
	SessionDuration   *expvar.Float
	StateTransitions  *expvar.Map
	Turns             *expvar.Int
	FailedTurns       *expvar.Int
	BargeIns          *expvar.Int
}

// Controller runs voice calls. It holds at most one call at a time and can
// start a new one once the previous call has ended.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer
	metrics  *ControllerMetrics

	state atomic.Int32

	mu      sync.Mutex
	session *session
	// pending is the call in setup; closing is set until a teardown has
	// delivered its last observer event.
	pending *session
	closing bool
	epoch   uint64
}

type turnResult struct {
	reply string
	err   error
}

// session is the state owned by one call. Fields below the mutex line of
// the controller are only touched while holding Controller.mu; speechDone
// and the channel fields are owned by the event loop.
type session struct {
	id      string
	gate    voice.Gate
	meter   *meter.Meter
	rec     *stt.Recognizer
	syn     *tts.Synthesizer
	history *llm.History
	notify  *notifier
	start   time.Time
	mood    mood.Mood

	ctx        context.Context
	cancel     context.CancelFunc
	turnCancel context.CancelFunc
	done       chan struct{}

	results    chan turnResult
	interrupts chan struct{}
	speechDone <-chan struct{}

	firstReply sync.Once
	turnStart  time.Time
}

// New creates a new Controller with the given configuration.
func New(cfg Config) (*Controller, error) {
	if cfg.Relay == nil {
		return nil, fmt.Errorf("chat relay is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = BaseObserver{}
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	def := DefaultTiming()
	if cfg.Timing.ResumeAfterSpeech <= 0 {
		cfg.Timing.ResumeAfterSpeech = def.ResumeAfterSpeech
	}
	if cfg.Timing.ResumeAfterInterrupt <= 0 {
		cfg.Timing.ResumeAfterInterrupt = def.ResumeAfterInterrupt
	}
	if cfg.Meter == (meter.Config{}) {
		cfg.Meter = meter.DefaultConfig()
	}
	if cfg.Voice.Lang == "" {
		cfg.Voice = tts.DefaultConfig()
	}

	c := &Controller{
		cfg:      cfg,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		metrics:  newControllerMetrics(),
	}
	c.state.Store(int32(StateIdle))
	return c, nil
}

// State returns the current call state.
func (c *Controller) State() CallState {
	return CallState(c.state.Load())
}

// Metrics returns the controller's metrics.
func (c *Controller) Metrics() *ControllerMetrics {
	return c.metrics
}

// Snapshot returns the current session state. Outside a call only State is
// meaningful.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Session{State: c.State(), Mood: mood.Default}
	s := c.session
	if s == nil {
		return snap
	}
	snap.ID = s.id
	snap.Connected = s.gate.Connected()
	snap.ShouldListen = s.gate.ShouldListen()
	snap.IsSending = s.gate.Sending()
	snap.IsSpeaking = s.gate.Speaking()
	snap.IsListening = s.rec.Listening()
	snap.AudioLevel = s.meter.Level()
	snap.Mood = s.mood
	snap.History = s.history.Messages()
	return snap
}

// StartCall acquires the microphone and recognizer, then greets the user.
// ctx bounds setup only; the call runs until EndCall. If either capability
// fails the call moves to Ended, the error is reported and returned, and
// nothing is left held.
func (c *Controller) StartCall(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil || c.pending != nil || c.closing {
		c.mu.Unlock()
		return ErrCallActive
	}
	c.epoch++
	epoch := c.epoch

	s := &session{
		id:         uuid.NewString(),
		gate:       voice.NewGate(),
		history:    llm.NewHistory(c.cfg.HistoryLimit),
		notify:     newNotifier(),
		start:      time.Now(),
		mood:       mood.Default,
		results:    make(chan turnResult, 1),
		interrupts: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go s.notify.run()
	logger := c.logger.With(slog.String("session", s.id))
	c.pending = s
	c.setState(s.notify, StateConnecting)
	c.mu.Unlock()

	err := c.connect(ctx, s, logger)

	c.mu.Lock()
	c.pending = nil
	if err == nil && c.epoch != epoch {
		s.rec.Close()
		s.meter.Release()
		c.mu.Unlock()
		s.notify.close()
		<-s.notify.done
		return ErrCallEnded
	}
	if err != nil {
		logger.Warn("Call setup failed", slog.String("error", err.Error()))
		c.setState(s.notify, StateEnded)
		s.notify.post(func() { c.observer.OnError(err) })
		c.mu.Unlock()
		s.notify.close()
		<-s.notify.done
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.gate.SetConnected(true)
	s.gate.SetShouldListen(true)
	c.session = s
	c.setState(s.notify, StateListening)
	logger.Info("Call connected")

	greeting := c.cfg.Greeting
	s.history.Append(llm.Message{Role: llm.RoleAssistant, Content: greeting})
	m := s.mood
	s.notify.post(func() { c.observer.OnReply(greeting, m) })
	c.speakLocked(s, greeting)

	go c.run(s, logger)
	c.mu.Unlock()
	return nil
}

// connect acquires the call's capabilities. On failure everything acquired
// so far is released.
func (c *Controller) connect(ctx context.Context, s *session, logger *slog.Logger) error {
	s.meter = meter.New(c.cfg.Microphone, c.cfg.Meter, logger)
	if err := s.meter.Acquire(ctx); err != nil {
		s.meter.Release()
		return fmt.Errorf("start call: %w", err)
	}

	s.rec = stt.NewRecognizer(c.cfg.STT, s.gate, c.cfg.Recognizer, logger)
	if err := s.rec.Open(ctx); err != nil {
		s.rec.Close()
		s.meter.Release()
		return fmt.Errorf("start call: %w", err)
	}

	s.syn = tts.NewSynthesizer(c.cfg.TTS, c.cfg.Voice,
		tts.WithSuppressor(s.rec),
		tts.WithActivity(s.gate),
		tts.WithSpeakingHook(func(speaking bool) {
			s.notify.post(func() { c.observer.OnSpeakingChange(speaking) })
		}),
		tts.WithLogger(logger))
	return nil
}

// EndCall tears the call down: it stops the recognizer, cancels speech,
// stops meter sampling, releases the microphone and clears the history.
// In-flight chat reads are abandoned. It never fails, is safe from any
// state and may be called repeatedly.
func (c *Controller) EndCall() {
	c.mu.Lock()
	c.epoch++
	s := c.session
	if s == nil {
		c.endWithoutCall()
		return
	}
	c.session = nil
	c.closing = true

	s.gate.SetShouldListen(false)
	s.gate.SetConnected(false)
	s.rec.Close()
	s.syn.Cancel()
	s.cancel()
	if err := s.meter.Release(); err != nil {
		c.logger.Debug("Microphone release failed", slog.String("error", err.Error()))
	}
	s.history.Reset()
	s.gate.EndSend()
	s.gate.SetSpeaking(false)

	c.setState(s.notify, StateEnded)
	c.metrics.SessionDuration.Set(float64(time.Since(s.start).Milliseconds()))
	c.mu.Unlock()

	<-s.done
	s.notify.close()
	<-s.notify.done

	c.mu.Lock()
	c.closing = false
	c.mu.Unlock()

	c.logger.Info("Call ended", slog.String("session", s.id))
}

// endWithoutCall moves to Ended when no call is connected. A call in setup
// gets the change on its own notifier, behind its earlier events; StartCall
// then unwinds it. Otherwise a short-lived notifier delivers the change.
// Called with c.mu held; returns with it released.
func (c *Controller) endWithoutCall() {
	if p := c.pending; p != nil {
		c.setState(p.notify, StateEnded)
		c.mu.Unlock()
		return
	}
	if c.closing || c.State() == StateEnded {
		c.mu.Unlock()
		return
	}

	n := newNotifier()
	go n.run()
	c.closing = true
	c.setState(n, StateEnded)
	c.mu.Unlock()

	n.close()
	<-n.done

	c.mu.Lock()
	c.closing = false
	c.mu.Unlock()
}

// Interrupt stops Maya mid-reply and resumes listening shortly after.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case s.interrupts <- struct{}{}:
	default:
		// Channel full, interrupt already pending
	}
}

// setState updates the state, records the transition and queues the
// observer call on n.
func (c *Controller) setState(n *notifier, newState CallState) {
	oldState := CallState(c.state.Swap(int32(newState)))
	if oldState == newState {
		return
	}

	transitionKey := fmt.Sprintf("%s_to_%s", oldState.String(), newState.String())
	if counter := c.metrics.StateTransitions.Get(transitionKey); counter != nil {
		counter.(*expvar.Int).Add(1)
	} else {
		newCounter := &expvar.Int{}
		newCounter.Set(1)
		c.metrics.StateTransitions.Set(transitionKey, newCounter)
	}

	n.post(func() { c.observer.OnStateChange(newState) })
}

// run is the call's event loop. Every state change after setup happens
// here or in EndCall.
func (c *Controller) run(s *session, logger *slog.Logger) {
	defer close(s.done)

	speech := s.rec.Events()
	levels := s.meter.Levels()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-speech:
			if !ok {
				speech = nil
				continue
			}
			c.handleSpeechEvent(s, logger, ev)
		case r := <-s.results:
			c.handleReply(s, logger, r)
		case <-s.speechDone:
			s.speechDone = nil
			c.handleSpeechDone(s)
		case <-s.interrupts:
			c.handleInterrupt(s, logger)
		case level, ok := <-levels:
			if !ok {
				levels = nil
				continue
			}
			s.notify.post(func() { c.observer.OnAudioLevel(level) })
		}
	}
}

func (c *Controller) handleSpeechEvent(s *session, logger *slog.Logger, ev stt.SpeechEvent) {
	switch ev.Type {
	case stt.SpeechEventInterim:
		text := ev.Text
		s.notify.post(func() { c.observer.OnInterim(text) })
	case stt.SpeechEventFinal:
		c.handleFinal(s, logger, ev.Text)
	case stt.SpeechEventError:
		err := ev.Error
		if err == nil {
			err = fmt.Errorf("speech error: %s", ev.Code)
		}
		s.notify.post(func() { c.observer.OnError(err) })
	}
}

// handleFinal starts a turn. Barge-in cancels speech before anything else.
func (c *Controller) handleFinal(s *session, logger *slog.Logger, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}

	if s.gate.Speaking() || s.syn.Speaking() {
		logger.Debug("Barge-in, cancelling speech")
		c.metrics.BargeIns.Add(1)
		s.syn.Cancel()
		s.speechDone = nil
	}

	if !s.gate.BeginSend() {
		logger.Debug("Dropping transcript while a reply is pending", slog.String("text", text))
		return
	}
	s.gate.SetShouldListen(false)
	s.rec.Stop()

	s.history.Append(llm.Message{Role: llm.RoleUser, Content: text})
	messages := s.history.Messages()
	c.setState(s.notify, StateSending)
	s.notify.post(func() { c.observer.OnTranscript(text) })

	ctx, cancel := context.WithCancel(s.ctx)
	s.turnCancel = cancel
	s.turnStart = time.Now()
	c.metrics.Turns.Add(1)

	go c.sendTurn(ctx, s, messages)
}

func (c *Controller) sendTurn(ctx context.Context, s *session, messages []llm.Message) {
	var reply string
	stream, err := c.cfg.Relay.Send(ctx, messages)
	if err == nil {
		reply, err = llm.Collect(stream, nil)
	}
	select {
	case s.results <- turnResult{reply: reply, err: err}:
	case <-s.ctx.Done():
	}
}

func (c *Controller) handleReply(s *session, logger *slog.Logger, r turnResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	s.gate.EndSend()

	if r.err != nil {
		c.metrics.FailedTurns.Add(1)
		logger.Warn("Chat turn failed", slog.String("error", r.err.Error()))
		err := r.err
		s.notify.post(func() { c.observer.OnError(err) })
		c.listenLocked(s, 0)
		return
	}

	s.firstReply.Do(func() {
		c.metrics.FirstReplyLatency.Set(float64(time.Since(s.turnStart).Milliseconds()))
	})

	reply := strings.TrimSpace(r.reply)
	if reply == "" {
		c.listenLocked(s, 0)
		return
	}

	s.history.Append(llm.Message{Role: llm.RoleAssistant, Content: reply})
	display := photo.Strip(reply)
	s.mood = mood.Detect(display)
	m := s.mood
	s.notify.post(func() { c.observer.OnReply(display, m) })

	if photo.Requested(reply) {
		go c.requestPhoto(s, logger, photo.MoodForReply(reply))
	}

	if display == "" {
		c.listenLocked(s, 0)
		return
	}
	c.speakLocked(s, display)
}

func (c *Controller) handleSpeechDone(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s || c.State() != StateSpeaking {
		return
	}
	c.listenLocked(s, c.cfg.Timing.ResumeAfterSpeech)
}

func (c *Controller) handleInterrupt(s *session, logger *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s || c.State() != StateSpeaking {
		return
	}
	logger.Debug("Interrupted")
	s.syn.Cancel()
	s.speechDone = nil
	c.listenLocked(s, c.cfg.Timing.ResumeAfterInterrupt)
}

// speakLocked moves to Speaking and starts the reply.
func (c *Controller) speakLocked(s *session, text string) {
	c.setState(s.notify, StateSpeaking)
	s.speechDone = s.syn.Speak(context.Background(), text)
}

// listenLocked re-arms listening and resumes recognition after delay.
func (c *Controller) listenLocked(s *session, delay time.Duration) {
	s.gate.SetShouldListen(true)
	c.setState(s.notify, StateListening)
	if delay <= 0 {
		s.rec.Resume()
		return
	}
	s.rec.ResumeAfter(delay)
}

func (c *Controller) requestPhoto(s *session, logger *slog.Logger, m photo.Mood) {
	if c.cfg.Photos == nil {
		logger.Debug("Photo requested but no photo service configured", slog.String("mood", string(m)))
		return
	}
	url, err := c.cfg.Photos.RequestPhoto(s.ctx, m)
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Warn("Photo request failed", slog.String("error", err.Error()))
		}
		return
	}
	if url == "" {
		return
	}
	s.notify.post(func() { c.observer.OnPhoto(url, m) })
}

// newControllerMetrics creates a new set of metrics without global
// registration.
func newControllerMetrics() *ControllerMetrics {
	stateTransitions := &expvar.Map{}
	stateTransitions.Init()

	return &ControllerMetrics{
		FirstReplyLatency: &expvar.Float{},
		SessionDuration:   &expvar.Float{},
		StateTransitions:  stateTransitions,
		Turns:             &expvar.Int{},
		FailedTurns:       &expvar.Int{},
		BargeIns:          &expvar.Int{},
	}
}
