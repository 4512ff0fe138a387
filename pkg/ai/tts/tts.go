package tts

import (
	"context"
	"strings"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/photo"
)

// TTS-specific error variables
var (
	// ErrRecoverable indicates a temporary synthesis failure.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent synthesis failure.
	ErrFatal = ai.ErrFatal
)

// PhotoMarker is the control marker the chat model emits to request a photo.
// It is never vocalized.
const PhotoMarker = photo.Marker

// Utterance contains parameters for one spoken reply.
type Utterance struct {
	ID     string
	Text   string
	Lang   string
	Voice  string
	Rate   float32
	Pitch  float32
	Volume float32
}

// Voice is a synthesis voice offered by the platform.
type Voice struct {
	Name string
	Lang string
}

// PlaybackEventType is the kind of playback event.
type PlaybackEventType int

const (
	// PlaybackStart is emitted when audio output begins.
	PlaybackStart PlaybackEventType = iota
	// PlaybackEnd is emitted when the utterance finished normally.
	PlaybackEnd
	// PlaybackError is emitted when the engine failed mid-utterance.
	PlaybackError
)

// PlaybackEvent reports progress of one utterance.
type PlaybackEvent struct {
	Type PlaybackEventType
	Err  error
}

// TTSCapabilities describes the capabilities of a synthesis engine.
type TTSCapabilities struct {
	SupportedLanguages   []string
	SupportsVoiceSelect  bool
	SupportsSpeedControl bool
	SupportsPitchControl bool
}

// Engine is a platform text-to-speech capability.
type Engine interface {
	// Speak starts vocalizing the utterance. The returned channel receives
	// playback events and is closed once the utterance is over for any
	// reason, including Cancel.
	Speak(ctx context.Context, u Utterance) (<-chan PlaybackEvent, error)

	// Cancel stops any in-progress utterance immediately.
	Cancel()

	// Voices returns the available voices.
	Voices() []Voice

	// Capabilities returns the engine's capabilities.
	Capabilities() TTSCapabilities
}

var stripped = []string{
	PhotoMarker,
	"💕", "😊", "🙄", "😤", "😔", "❤️", "😏", "🥺", "😒", "💔", "🤔", "😢",
}

// CleanText removes control markers and mood emoji from a reply and
// collapses the whitespace left behind.
func CleanText(text string) string {
	for _, s := range stripped {
		text = strings.ReplaceAll(text, s, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// SelectVoice picks a voice: the first preferred name found, then any voice
// described as female, then one matching lang's primary tag, then the first.
func SelectVoice(voices []Voice, preferred []string, lang string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, name := range preferred {
		for _, v := range voices {
			if strings.Contains(v.Name, name) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		n := strings.ToLower(v.Name)
		if strings.Contains(n, "female") || strings.Contains(n, "woman") {
			return v, true
		}
	}
	if primary, _, _ := strings.Cut(lang, "-"); primary != "" {
		for _, v := range voices {
			if strings.Contains(v.Lang, primary) {
				return v, true
			}
		}
	}
	return voices[0], true
}
