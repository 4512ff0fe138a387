// Package openai registers a chat relay that streams directly from an
// OpenAI-compatible gateway using the Maya system prompt.
package openai

import (
	"fmt"
	"os"

	"github.com/chriscow/maya-go/pkg/persona"
	"github.com/chriscow/maya-go/pkg/plugin"
)

// newOpenAIRelay is the factory function for the direct relay.
func newOpenAIRelay(cfg map[string]any) (any, error) {
	apiKey := plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}

	config := Config{
		APIKey:       apiKey,
		BaseURL:      plugin.String(cfg, "base_url", ""),
		Model:        plugin.String(cfg, "model", ""),
		MaxTokens:    plugin.Int(cfg, "max_tokens", 300),
		Temperature:  0.9,
		SystemPrompt: plugin.String(cfg, "system_prompt", persona.SystemPrompt),
	}
	switch t := cfg["temperature"].(type) {
	case float64:
		config.Temperature = float32(t)
	case float32:
		config.Temperature = t
	}

	return NewRelay(config, nil)
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newOpenAIRelay,
		Description: "Direct streaming relay to an OpenAI-compatible chat completions API",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":       "API key (or set OPENAI_API_KEY env var)",
			"base_url":      "OpenAI-compatible base URL, e.g. https://ai.gateway.lovable.dev/v1",
			"model":         "gpt-4o-mini",
			"temperature":   0.9,
			"max_tokens":    300,
			"system_prompt": "overrides Maya's persona prompt",
		},
	})
}
