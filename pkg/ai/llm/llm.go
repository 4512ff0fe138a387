// Package llm relays the conversation to Maya's chat backend and streams
// her reply back as incremental text deltas.
package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chriscow/maya-go/pkg/ai"
)

// LLM-specific error variables for backward compatibility
var (
	// ErrRecoverable indicates a temporary chat failure that may succeed if retried.
	// Examples: rate limiting, dropped connection, timeout.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent chat failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// MessageRole represents the role of a message in a chat conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single turn in the conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Stream yields reply deltas in arrival order. Recv returns io.EOF once the
// reply is complete.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Relay sends the conversation to the chat backend.
type Relay interface {
	Send(ctx context.Context, messages []Message) (Stream, error)
}

// Collect drains the stream into the full reply. onDelta, when non-nil,
// receives every delta together with the text accumulated so far. On error
// the partial reply is returned alongside it.
func Collect(s Stream, onDelta func(delta, full string)) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		delta, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta, b.String())
		}
	}
}
