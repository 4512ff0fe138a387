package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestDefaultConfig(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()

	is.Equal(cfg.Chat.HistoryLimit, 10)
	is.Equal(cfg.Call.Greeting, "Haan bolo jaanu. 💕")
	is.Equal(cfg.Recognizer.Lang, "hi-IN")
	is.Equal(cfg.Recognizer.ErrorRestartDelay, 400*time.Millisecond)
	is.Equal(cfg.Recognizer.EndRestartDelay, 350*time.Millisecond)
	is.Equal(cfg.Call.ResumeAfterSpeech, 250*time.Millisecond)
	is.Equal(cfg.Call.ResumeAfterInterrupt, 200*time.Millisecond)
	is.Equal(cfg.Voice.Rate, float32(1.05))
	is.Equal(cfg.Server.Upstream.Model, "google/gemini-3-flash-preview")
	is.Equal(cfg.Server.Upstream.MaxTokens, 300)
	is.Equal(cfg.Addr(), "localhost:8080")
}

func TestLoad(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	is.NoErr(os.WriteFile(path, []byte(`
chat:
  url: https://example.test/chat
recognizer:
  engine: vosk
  error_restart_delay: 1s
call:
  resume_after_speech: 300ms
voice:
  preferred: [Lekha]
`), 0600))

	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.Chat.URL, "https://example.test/chat")
	is.Equal(cfg.Recognizer.Engine, "vosk")
	is.Equal(cfg.Recognizer.ErrorRestartDelay, time.Second)
	is.Equal(cfg.Recognizer.EndRestartDelay, 350*time.Millisecond) // untouched default
	is.Equal(cfg.Timing().ResumeAfterSpeech, 300*time.Millisecond)
	is.Equal(cfg.VoiceConfig().PreferredVoices, []string{"Lekha"})
	is.Equal(cfg.Chat.HistoryLimit, 10)
}

func TestLoad_Errors(t *testing.T) {
	is := is.New(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	is.True(err != nil)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	is.NoErr(os.WriteFile(path, []byte("chat: [unclosed"), 0600))
	_, err = Load(path)
	is.True(err != nil)
}

func TestSaveRoundTrip(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = 9090
	is.NoErr(cfg.Save(path))

	loaded, err := Load(path)
	is.NoErr(err)
	is.Equal(loaded.Server.Port, 9090)
	is.Equal(loaded.Call.ResumeAfterSpeech, cfg.Call.ResumeAfterSpeech)
}

func TestApplyEnv(t *testing.T) {
	is := is.New(t)
	t.Setenv("MAYA_CHAT_URL", "https://env.test/chat")
	t.Setenv("MAYA_API_KEY", "anon")
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("LOVABLE_API_KEY", "")

	cfg := DefaultConfig()
	cfg.Server.Upstream.APIKey = "from-file"
	cfg.ApplyEnv()

	is.Equal(cfg.Chat.URL, "https://env.test/chat")
	is.Equal(cfg.Chat.APIKey, "anon")
	is.Equal(cfg.Photo.GeminiAPIKey, "gem")
	is.Equal(cfg.Server.Upstream.APIKey, "from-file") // empty values do not override
}

func TestLoadDotEnv(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	is.NoErr(os.WriteFile(path, []byte("MAYA_TEST_DOTENV=loaded\n"), 0600))
	t.Setenv("MAYA_TEST_DOTENV", "")
	os.Unsetenv("MAYA_TEST_DOTENV")

	is.NoErr(LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	is.Equal(os.Getenv("MAYA_TEST_DOTENV"), "loaded")
}

func TestLoadWithFallback_Defaults(t *testing.T) {
	is := is.New(t)
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadWithFallback("")
	is.NoErr(err)
	is.Equal(cfg.Server.Port, DefaultConfig().Server.Port)
}
