// Package config loads maya's YAML configuration, an optional .env file and
// the environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/ai/tts"
)

// Config represents the application configuration
type Config struct {
	// Chat relay settings
	Chat struct {
		URL          string `yaml:"url"`
		APIKey       string `yaml:"api_key"`
		HistoryLimit int    `yaml:"history_limit"`
	} `yaml:"chat"`

	// Photo endpoint settings
	Photo struct {
		URL          string `yaml:"url"`
		Model        string `yaml:"model"`
		GeminiAPIKey string `yaml:"gemini_api_key"`
	} `yaml:"photo"`

	// Call timing and greeting
	Call struct {
		Greeting             string        `yaml:"greeting"`
		ResumeAfterSpeech    time.Duration `yaml:"resume_after_speech"`
		ResumeAfterInterrupt time.Duration `yaml:"resume_after_interrupt"`
	} `yaml:"call"`

	// Recognizer settings
	Recognizer struct {
		Engine            string        `yaml:"engine"`
		Lang              string        `yaml:"lang"`
		ModelPath         string        `yaml:"model_path"`
		ErrorRestartDelay time.Duration `yaml:"error_restart_delay"`
		EndRestartDelay   time.Duration `yaml:"end_restart_delay"`
	} `yaml:"recognizer"`

	// Voice settings
	Voice struct {
		Engine    string   `yaml:"engine"`
		Lang      string   `yaml:"lang"`
		Name      string   `yaml:"name"`
		Preferred []string `yaml:"preferred"`
		Rate      float32  `yaml:"rate"`
		Pitch     float32  `yaml:"pitch"`
		Volume    float32  `yaml:"volume"`
	} `yaml:"voice"`

	// Microphone and meter settings
	Audio struct {
		Device       string        `yaml:"device"`
		TickInterval time.Duration `yaml:"tick_interval"`
		FFTSize      int           `yaml:"fft_size"`
		Smoothing    float64       `yaml:"smoothing"`
	} `yaml:"audio"`

	// Server settings
	Server struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		SystemPrompt string `yaml:"system_prompt"`
		Upstream     struct {
			URL         string  `yaml:"url"`
			APIKey      string  `yaml:"api_key"`
			Model       string  `yaml:"model"`
			Temperature float32 `yaml:"temperature"`
			MaxTokens   int     `yaml:"max_tokens"`
		} `yaml:"upstream"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Chat defaults
	cfg.Chat.URL = "http://localhost:8080/functions/v1/maya-chat"
	cfg.Chat.HistoryLimit = 10

	// Photo defaults
	cfg.Photo.URL = "http://localhost:8080/functions/v1/maya-photo"
	cfg.Photo.Model = "gemini-2.0-flash-exp-image-generation"

	// Call defaults
	timing := agent.DefaultTiming()
	cfg.Call.Greeting = agent.DefaultGreeting
	cfg.Call.ResumeAfterSpeech = timing.ResumeAfterSpeech
	cfg.Call.ResumeAfterInterrupt = timing.ResumeAfterInterrupt

	// Recognizer defaults
	rec := stt.DefaultConfig()
	cfg.Recognizer.Engine = "console"
	cfg.Recognizer.Lang = rec.Lang
	cfg.Recognizer.ErrorRestartDelay = rec.ErrorRestartDelay
	cfg.Recognizer.EndRestartDelay = rec.EndRestartDelay

	// Voice defaults
	voice := tts.DefaultConfig()
	cfg.Voice.Engine = "console"
	cfg.Voice.Lang = voice.Lang
	cfg.Voice.Preferred = voice.PreferredVoices
	cfg.Voice.Rate = voice.Rate
	cfg.Voice.Pitch = voice.Pitch
	cfg.Voice.Volume = voice.Volume

	// Audio defaults
	m := meter.DefaultConfig()
	cfg.Audio.Device = "console"
	cfg.Audio.TickInterval = m.TickInterval
	cfg.Audio.FFTSize = m.FFTSize
	cfg.Audio.Smoothing = m.Smoothing

	// Server defaults
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Server.Upstream.URL = "https://ai.gateway.lovable.dev/v1"
	cfg.Server.Upstream.Model = "google/gemini-3-flash-preview"
	cfg.Server.Upstream.Temperature = 0.9
	cfg.Server.Upstream.MaxTokens = 300

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.mayarc > /etc/maya/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.mayarc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".mayarc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/maya/config.yaml)
	systemConfigPath := "/etc/maya/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding existing ones. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	setString(&c.Chat.URL, "MAYA_CHAT_URL")
	setString(&c.Chat.APIKey, "MAYA_API_KEY")
	setString(&c.Photo.URL, "MAYA_PHOTO_URL")
	setString(&c.Photo.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.Server.Upstream.APIKey, "LOVABLE_API_KEY")
	setString(&c.Server.Upstream.URL, "MAYA_UPSTREAM_URL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// RecognizerConfig returns the recognizer settings.
func (c *Config) RecognizerConfig() stt.Config {
	return stt.Config{
		Lang:              c.Recognizer.Lang,
		ErrorRestartDelay: c.Recognizer.ErrorRestartDelay,
		EndRestartDelay:   c.Recognizer.EndRestartDelay,
	}
}

// VoiceConfig returns the synthesizer settings.
func (c *Config) VoiceConfig() tts.Config {
	return tts.Config{
		Lang:            c.Voice.Lang,
		Voice:           c.Voice.Name,
		PreferredVoices: c.Voice.Preferred,
		Rate:            c.Voice.Rate,
		Pitch:           c.Voice.Pitch,
		Volume:          c.Voice.Volume,
	}
}

// MeterConfig returns the audio meter settings.
func (c *Config) MeterConfig() meter.Config {
	return meter.Config{
		TickInterval: c.Audio.TickInterval,
		FFTSize:      c.Audio.FFTSize,
		Smoothing:    c.Audio.Smoothing,
	}
}

// Timing returns the controller's resume delays.
func (c *Config) Timing() agent.Timing {
	return agent.Timing{
		ResumeAfterSpeech:    c.Call.ResumeAfterSpeech,
		ResumeAfterInterrupt: c.Call.ResumeAfterInterrupt,
	}
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
