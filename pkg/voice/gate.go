package voice

import "sync/atomic"

// Gate holds the four flags that decide whether the microphone may be
// listening: the call is connected, the controller intends to listen, no chat
// request is in flight and Maya is not speaking.
//
// Every flag is read at the moment of use. Restart timers and playback
// callbacks run on other goroutines and must not act on values captured when
// they were scheduled.
type Gate interface {
	SetConnected(connected bool)
	SetShouldListen(listen bool)
	SetSpeaking(speaking bool)

	// BeginSend marks a chat request in flight. It returns false if one
	// already is, in which case the caller must not send.
	BeginSend() bool
	// EndSend clears the in-flight mark.
	EndSend()

	Connected() bool
	ShouldListen() bool
	Sending() bool
	Speaking() bool

	// CanListen reports connected && shouldListen && !sending && !speaking.
	CanListen() bool
}

// NewGate creates a Gate with every flag cleared.
func NewGate() Gate {
	return &defaultGate{}
}

// defaultGate is the default implementation of Gate using atomic operations.
type defaultGate struct {
	connected    atomic.Bool
	shouldListen atomic.Bool
	sending      atomic.Bool
	speaking     atomic.Bool
}

func (g *defaultGate) SetConnected(connected bool) { g.connected.Store(connected) }

func (g *defaultGate) SetShouldListen(listen bool) { g.shouldListen.Store(listen) }

func (g *defaultGate) SetSpeaking(speaking bool) { g.speaking.Store(speaking) }

func (g *defaultGate) BeginSend() bool { return g.sending.CompareAndSwap(false, true) }

func (g *defaultGate) EndSend() { g.sending.Store(false) }

func (g *defaultGate) Connected() bool { return g.connected.Load() }

func (g *defaultGate) ShouldListen() bool { return g.shouldListen.Load() }

func (g *defaultGate) Sending() bool { return g.sending.Load() }

func (g *defaultGate) Speaking() bool { return g.speaking.Load() }

func (g *defaultGate) CanListen() bool {
	return g.connected.Load() && g.shouldListen.Load() && !g.sending.Load() && !g.speaking.Load()
}
