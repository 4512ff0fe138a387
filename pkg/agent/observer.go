package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/mood"
	"github.com/chriscow/maya-go/pkg/photo"
)

// Observer receives call events. Calls are made one at a time, in order,
// from a goroutine owned by the controller and never while it holds its
// lock, so an Observer may call Snapshot. It must not call EndCall.
// Once connected or idle, EndCall returns after Ended has been delivered.
type Observer interface {
	OnStateChange(state CallState)
	// OnTranscript receives each final user transcript that starts a turn.
	OnTranscript(text string)
	OnInterim(text string)
	// OnReply receives Maya's reply with the photo marker removed.
	OnReply(text string, m mood.Mood)
	OnSpeakingChange(speaking bool)
	OnAudioLevel(level float64)
	OnPhoto(url string, m photo.Mood)
	OnError(err error)
}

// BaseObserver implements Observer with no-ops. Embed it to handle only
// some events.
type BaseObserver struct{}

func (BaseObserver) OnStateChange(CallState) {}
func (BaseObserver) OnTranscript(string) {}
func (BaseObserver) OnInterim(string) {}
func (BaseObserver) OnReply(string, mood.Mood) {}
func (BaseObserver) OnSpeakingChange(bool) {}
func (BaseObserver) OnAudioLevel(float64) {}
func (BaseObserver) OnPhoto(string, photo.Mood) {}
func (BaseObserver) OnError(error) {}

// Describe returns the one-line message shown to the user for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var recErr *ai.RecognitionError
	switch {
	case errors.Is(err, ai.ErrPermissionDenied):
		return "Microphone access denied. Please allow microphone access."
	case errors.Is(err, ai.ErrCapabilityUnsupported):
		return "Speech recognition not supported."
	case errors.As(err, &recErr):
		return "Speech error: " + recErr.Code
	}
	if rl, ok := ai.IsRateLimited(err); ok {
		return fmt.Sprintf("Rate limited - wait %ds", rl.Seconds())
	}
	return "Connection issue. Try again."
}

// notifier delivers observer calls in order on its own goroutine. Posting
// never blocks.
type notifier struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newNotifier() *notifier {
	return &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, fn)
	n.mu.Unlock()
	n.signal()
}

// close stops accepting calls. Queued calls are still delivered before done
// is closed.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		queue := n.queue
		n.queue = nil
		closed := n.closed
		n.mu.Unlock()

		for _, fn := range queue {
			fn()
		}
		if closed && len(queue) == 0 {
			return
		}
		if len(queue) == 0 {
			<-n.wake
		}
	}
}
