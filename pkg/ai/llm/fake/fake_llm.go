package fake

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/chriscow/maya-go/pkg/ai/llm"
)

// Reply scripts one response of a FakeRelay.
type Reply struct {
	// Deltas are streamed in order.
	Deltas []string
	// Err fails Send itself.
	Err error
	// StreamErr is returned by Recv after the deltas.
	StreamErr error
	// Hold, when non-nil, blocks the first Recv until it is closed.
	Hold chan struct{}
}

// Text returns a reply that streams text one word at a time.
func Text(text string) Reply {
	var deltas []string
	for i, w := range strings.Fields(text) {
		if i > 0 {
			w = " " + w
		}
		deltas = append(deltas, w)
	}
	return Reply{Deltas: deltas}
}

// FakeRelay is a fake chat relay for testing. Replies are served in queue
// order; once the queue is empty every Send gets a default reply.
type FakeRelay struct {
	mu      sync.Mutex
	replies []Reply
	calls   [][]llm.Message
}

// NewFakeRelay creates a relay that answers with the given texts in order.
func NewFakeRelay(texts ...string) *FakeRelay {
	f := &FakeRelay{}
	for _, t := range texts {
		f.replies = append(f.replies, Text(t))
	}
	return f
}

// Queue appends a scripted reply.
func (f *FakeRelay) Queue(r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
}

// Send records the messages and serves the next reply.
func (f *FakeRelay) Send(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	r := Text("Haan baby, bolo na 😊")
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return &fakeStream{ctx: ctx, reply: r}, nil
}

// Calls returns the messages of every Send so far.
func (f *FakeRelay) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.calls...)
}

type fakeStream struct {
	ctx   context.Context
	reply Reply
	pos   int
	held  bool
}

func (s *fakeStream) Recv() (string, error) {
	if !s.held && s.reply.Hold != nil {
		s.held = true
		select {
		case <-s.reply.Hold:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos < len(s.reply.Deltas) {
		d := s.reply.Deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.reply.StreamErr != nil {
		return "", s.reply.StreamErr
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error { return nil }
