// Package stt provides the speech recognizer used during a call. An Engine
// wraps a platform recognition capability; Recognizer adds the continuous
// listening policy on top: gated starts, silent recovery from transient
// engine errors and automatic restarts when the engine ends a session.
package stt

import (
	"context"
	"errors"

	"github.com/chriscow/maya-go/pkg/ai"
)

// STT-specific error variables
var (
	// ErrRecoverable indicates a temporary recognizer failure.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent recognizer failure.
	ErrFatal = ai.ErrFatal

	// ErrAlreadyStarted is returned by Engine.Start when recognition is
	// already running. Callers treat it as success.
	ErrAlreadyStarted = errors.New("recognition already started")
)

// StreamConfig contains configuration for a recognition session.
type StreamConfig struct {
	Lang           string
	Continuous     bool
	InterimResults bool
}

// SpeechEvent represents a recognition event from the engine.
type SpeechEvent struct {
	Type      SpeechEventType // Type of event
	Text      string          // Transcribed text (interim and final only)
	Code      string          // Engine error code (error only), e.g. "no-speech"
	Timestamp int64           // Event timestamp in milliseconds since epoch
	Error     error           // Error details (error only, when available)
}

// SpeechEventType represents the type of speech recognition event.
type SpeechEventType int

const (
	// SpeechEventInterim represents partial transcription results that may change
	SpeechEventInterim SpeechEventType = iota
	// SpeechEventFinal represents final transcription results that won't change
	SpeechEventFinal
	// SpeechEventError represents engine errors
	SpeechEventError
	// SpeechEventEnd is emitted when the engine ends its session on its own
	SpeechEventEnd
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechEventInterim:
		return "interim"
	case SpeechEventFinal:
		return "final"
	case SpeechEventError:
		return "error"
	case SpeechEventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// STTCapabilities describes the capabilities of a recognition engine.
type STTCapabilities struct {
	Streaming          bool
	InterimResults     bool
	SupportedLanguages []string
}

// Engine is a platform speech recognition capability.
type Engine interface {
	// Start begins continuous recognition. It returns ErrAlreadyStarted if
	// recognition is running.
	Start(ctx context.Context, cfg StreamConfig) error

	// Stop requests termination. Stopping a stopped engine returns nil.
	Stop() error

	// Events returns the engine's event channel. It stays open for the
	// lifetime of the engine across Start/Stop cycles.
	Events() <-chan SpeechEvent

	// Capabilities returns the engine's capabilities.
	Capabilities() STTCapabilities
}

var transientCodes = map[string]bool{
	"no-speech":     true,
	"aborted":       true,
	"audio-capture": true,
	"network":       true,
}

// IsTransient reports whether an engine error code is a hiccup that should
// be retried without telling the user.
func IsTransient(code string) bool {
	return transientCodes[code]
}
