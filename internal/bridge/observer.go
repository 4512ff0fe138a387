package bridge

import (
	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/mood"
	"github.com/chriscow/maya-go/pkg/photo"
)

// Observer forwards call progress to the page. Audio levels are dropped
// when the outgoing queue is full.
type Observer struct {
	b *Bridge
}

var _ agent.Observer = Observer{}

// Observer returns an agent.Observer that reports to the page.
func (b *Bridge) Observer() Observer { return Observer{b: b} }

func (o Observer) OnStateChange(state agent.CallState) {
	_ = o.b.send(&Command{Type: CommandState, Data: map[string]any{"state": state.String()}})
}

func (o Observer) OnTranscript(text string) {
	_ = o.b.send(&Command{Type: CommandTranscript, Data: map[string]any{"text": text}})
}

func (o Observer) OnInterim(text string) {
	_ = o.b.send(&Command{Type: CommandInterim, Data: map[string]any{"text": text}})
}

func (o Observer) OnReply(text string, m mood.Mood) {
	_ = o.b.send(&Command{Type: CommandReply, Data: map[string]any{"text": text, "mood": string(m)}})
}

func (o Observer) OnSpeakingChange(speaking bool) {
	_ = o.b.send(&Command{Type: CommandSpeaking, Data: map[string]any{"speaking": speaking}})
}

func (o Observer) OnAudioLevel(level float64) {
	o.b.trySend(&Command{Type: CommandLevel, Data: map[string]any{"level": level}})
}

func (o Observer) OnPhoto(url string, m photo.Mood) {
	_ = o.b.send(&Command{Type: CommandPhoto, Data: map[string]any{"url": url, "mood": string(m)}})
}

func (o Observer) OnError(err error) {
	_ = o.b.send(&Command{Type: CommandError, Data: map[string]any{"message": agent.Describe(err)}})
}
