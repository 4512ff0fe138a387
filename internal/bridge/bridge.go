// Package bridge lets a browser tab act as the call's devices. The page
// connected over a WebSocket owns the microphone, the Web Speech recognizer
// and the speech synthesizer; the bridge exposes them as meter.Device,
// stt.Engine and tts.Engine and reports call progress back to the page.
//
// Text frames carry JSON messages; binary frames carry 8 kHz mono G.711
// μ-law microphone audio.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
)

// Signals sent by the page.
const (
	SignalHello      = "hello"
	SignalStart      = "start"
	SignalEnd        = "end"
	SignalInterrupt  = "interrupt"
	SignalPing       = "ping"
	SignalMicGranted = "mic.granted"
	SignalMicDenied  = "mic.denied"
	SignalSTTInterim = "stt.interim"
	SignalSTTFinal   = "stt.final"
	SignalSTTError   = "stt.error"
	SignalSTTEnd     = "stt.end"
	SignalTTSStart   = "tts.start"
	SignalTTSEnd     = "tts.end"
	SignalTTSError   = "tts.error"
)

// Commands sent to the page.
const (
	CommandPong       = "pong"
	CommandMicOpen    = "mic.open"
	CommandMicClose   = "mic.close"
	CommandSTTStart   = "stt.start"
	CommandSTTStop    = "stt.stop"
	CommandTTSSpeak   = "tts.speak"
	CommandTTSCancel  = "tts.cancel"
	CommandState      = "state"
	CommandTranscript = "transcript"
	CommandInterim    = "interim"
	CommandReply      = "reply"
	CommandSpeaking   = "speaking"
	CommandLevel      = "level"
	CommandPhoto      = "photo"
	CommandError      = "error"
)

// MicSampleRate is the rate of the μ-law audio the page streams.
const MicSampleRate = 8000

// ErrClosed is returned by device operations after the connection ended.
var ErrClosed = errors.New("bridge closed")

// Signal is a message from the page.
type Signal struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Command is a message to the page.
type Command struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Control is a call control requested by the page.
type Control int

const (
	ControlStart Control = iota
	ControlEnd
	ControlInterrupt
)

func (c Control) String() string {
	switch c {
	case ControlStart:
		return "start"
	case ControlEnd:
		return "end"
	case ControlInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Bridge is one page connection.
type Bridge struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	out      chan *Command
	controls chan Control
	closed   chan struct{}
	once     sync.Once

	mic *Microphone
	rec *Recognizer
	syn *Synthesizer
}

// New wraps an upgraded connection. Call Run to start exchanging messages.
func New(conn *websocket.Conn, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		conn:     conn,
		logger:   logger,
		out:      make(chan *Command, 256),
		controls: make(chan Control, 8),
		closed:   make(chan struct{}),
	}
	b.mic = &Microphone{b: b}
	b.rec = &Recognizer{b: b, events: make(chan stt.SpeechEvent, 64), speech: true}
	b.syn = &Synthesizer{b: b, active: make(map[string]chan tts.PlaybackEvent)}
	return b
}

// Microphone returns the page microphone.
func (b *Bridge) Microphone() *Microphone { return b.mic }

// Recognizer returns the page speech recognizer.
func (b *Bridge) Recognizer() *Recognizer { return b.rec }

// Synthesizer returns the page speech synthesizer.
func (b *Bridge) Synthesizer() *Synthesizer { return b.syn }

// Controls returns start, end and interrupt requests from the page.
func (b *Bridge) Controls() <-chan Control { return b.controls }

// Done is closed once the connection has ended.
func (b *Bridge) Done() <-chan struct{} { return b.closed }

// Run exchanges messages until the page disconnects or ctx is cancelled.
// A normal close from the page returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.readSignals(ctx); err != nil {
			errCh <- fmt.Errorf("read signals: %w", err)
			return
		}
		errCh <- nil
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.writeCommands(ctx); err != nil {
			errCh <- fmt.Errorf("write commands: %w", err)
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	cancel()
	b.shutdown()
	wg.Wait()
	return err
}

func (b *Bridge) readSignals(ctx context.Context) error {
	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch mt {
		case websocket.BinaryMessage:
			b.mic.push(data)
		case websocket.TextMessage:
			var signal Signal
			if err := sonic.Unmarshal(data, &signal); err != nil {
				b.logger.Warn("Dropping malformed signal", slog.String("error", err.Error()))
				continue
			}
			b.handleSignal(&signal)
		}
	}
}

func (b *Bridge) writeCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.out:
			_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := b.conn.WriteJSON(cmd); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) handleSignal(signal *Signal) {
	b.logger.Debug("Processing signal", slog.String("type", signal.Type))

	switch signal.Type {
	case SignalPing:
		b.send(&Command{Type: CommandPong, Data: signal.Data})
	case SignalHello:
		b.rec.hello(signal.Data)
		b.syn.hello(signal.Data)
	case SignalStart:
		b.control(ControlStart)
	case SignalEnd:
		b.control(ControlEnd)
	case SignalInterrupt:
		b.control(ControlInterrupt)
	case SignalMicGranted:
		b.mic.answer(nil)
	case SignalMicDenied:
		b.mic.answer(errDenied)
	case SignalSTTInterim, SignalSTTFinal, SignalSTTError, SignalSTTEnd:
		b.rec.handle(signal)
	case SignalTTSStart, SignalTTSEnd, SignalTTSError:
		b.syn.handle(signal)
	default:
		b.logger.Warn("Unknown signal type", slog.String("type", signal.Type))
	}
}

func (b *Bridge) control(c Control) {
	select {
	case b.controls <- c:
	default:
		b.logger.Warn("Dropping call control", slog.String("control", c.String()))
	}
}

// send queues a command. It gives up once the connection has ended.
func (b *Bridge) send(cmd *Command) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	select {
	case b.out <- cmd:
		return nil
	case <-b.closed:
		return ErrClosed
	}
}

// trySend queues a command unless the queue is full.
func (b *Bridge) trySend(cmd *Command) {
	select {
	case b.out <- cmd:
	default:
	}
}

func (b *Bridge) shutdown() {
	b.once.Do(func() {
		close(b.closed)
		if err := b.conn.Close(); err != nil {
			b.logger.Debug("Error closing WebSocket", slog.String("error", err.Error()))
		}
		b.mic.shutdown()
		b.syn.shutdown()
		b.logger.Info("Bridge closed")
	})
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
