// Package vosk provides a stub implementation when the vosk and malgo build tags are not used.
//go:build !vosk || !malgo

package vosk

import (
	"fmt"

	"github.com/chriscow/maya-go/pkg/plugin"
)

// Stub factory that returns an error when the vosk tags are not used.
func newVoskRecognizer(cfg map[string]any) (any, error) {
	return nil, fmt.Errorf("vosk recognizer not available (build with -tags=vosk,malgo; model expected at %s)", defaultModelPath())
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "vosk",
		Factory:     newVoskRecognizer,
		Description: "Offline Vosk recognizer (disabled - build with -tags=vosk,malgo to enable)",
		Version:     "1.0.0",
		Config: map[string]any{
			"note": "This plugin requires -tags=vosk,malgo build flags",
		},
	})
}
