package plugin

import (
	"fmt"

	"github.com/chriscow/maya-go/pkg/ai/llm"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
)

// NewMicrophone creates the named microphone device.
func NewMicrophone(name string, cfg map[string]any) (meter.Device, error) {
	return create[meter.Device](engines, KindMic, name, cfg)
}

// NewRecognizer creates the named speech recognition engine.
func NewRecognizer(name string, cfg map[string]any) (stt.Engine, error) {
	return create[stt.Engine](engines, KindSTT, name, cfg)
}

// NewSynthesizer creates the named speech synthesis engine.
func NewSynthesizer(name string, cfg map[string]any) (tts.Engine, error) {
	return create[tts.Engine](engines, KindTTS, name, cfg)
}

// NewRelay creates the named chat relay.
func NewRelay(name string, cfg map[string]any) (llm.Relay, error) {
	return create[llm.Relay](engines, KindLLM, name, cfg)
}

// String returns cfg[key] if it is a non-empty string, else def.
func String(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns cfg[key] as an int, accepting the numeric types YAML and JSON
// decoders produce, else def.
func Int(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return def
}

func init() {
	Register(&Plugin{
		Kind:        KindLLM,
		Name:        "http",
		Factory:     newHTTPRelay,
		Description: "Chat relay that streams replies from the maya-chat endpoint",
		Version:     "1.0.0",
		Config: map[string]any{
			"url":     "chat endpoint URL",
			"api_key": "bearer key sent with every request",
		},
	})
}

func newHTTPRelay(cfg map[string]any) (any, error) {
	url := String(cfg, "url", "")
	if url == "" {
		return nil, fmt.Errorf("chat relay url is required")
	}
	return llm.NewHTTPRelay(url, String(cfg, "api_key", "")), nil
}
