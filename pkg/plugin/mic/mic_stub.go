// Package mic provides a stub implementation when the malgo build tag is not used.
//go:build !malgo

package mic

import (
	"fmt"

	"github.com/chriscow/maya-go/pkg/plugin"
)

// Stub factory that returns an error when the malgo tag is not used.
func newMalgoMic(cfg map[string]any) (any, error) {
	return nil, fmt.Errorf("malgo microphone not available (build with -tags=malgo)")
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindMic,
		Name:        "malgo",
		Factory:     newMalgoMic,
		Description: "Local microphone (disabled - build with -tags=malgo to enable)",
		Version:     "1.0.0",
		Config: map[string]any{
			"note": "This plugin requires -tags=malgo build flag",
		},
	})
}
