// Package fake registers the fake engines under the name "fake" so a call
// can be driven end to end without audio hardware or a chat backend.
package fake

import (
	"time"

	llmfake "github.com/chriscow/maya-go/pkg/ai/llm/fake"
	meterfake "github.com/chriscow/maya-go/pkg/ai/meter/fake"
	sttfake "github.com/chriscow/maya-go/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/maya-go/pkg/ai/tts/fake"
	"github.com/chriscow/maya-go/pkg/plugin"
)

func newFakeMic(cfg map[string]any) (any, error) {
	d := meterfake.NewFakeDevice()
	d.Deny, _ = cfg["deny"].(bool)
	return d, nil
}

func newFakeSTT(cfg map[string]any) (any, error) {
	return sttfake.NewFakeSTT(), nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	t := ttsfake.NewFakeTTS()
	t.AutoFinish = time.Duration(plugin.Int(cfg, "auto_finish_ms", 50)) * time.Millisecond
	return t, nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	var replies []string
	switch r := cfg["replies"].(type) {
	case []string:
		replies = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				replies = append(replies, s)
			}
		}
	}
	return llmfake.NewFakeRelay(replies...), nil
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindMic,
		Name:        "fake",
		Factory:     newFakeMic,
		Description: "Fake microphone for testing",
		Version:     "1.0.0",
		Config:      map[string]any{"deny": "reject microphone access"},
	})

	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Scriptable recognizer for testing",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Silent synthesizer that finishes each utterance after a delay",
		Version:     "1.0.0",
		Config:      map[string]any{"auto_finish_ms": "playback duration in milliseconds"},
	})

	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Canned chat replies for testing",
		Version:     "1.0.0",
		Config:      map[string]any{"replies": "replies returned in order"},
	})
}
