package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/maya-go/internal/server"
	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/ai/llm"
	"github.com/chriscow/maya-go/pkg/config"
	"github.com/chriscow/maya-go/pkg/persona"
	"github.com/chriscow/maya-go/pkg/photo"
	"github.com/chriscow/maya-go/pkg/plugin"
	_ "github.com/chriscow/maya-go/pkg/plugin/console" // Import to register console engines
	_ "github.com/chriscow/maya-go/pkg/plugin/fake"    // Import to register fake engines
	_ "github.com/chriscow/maya-go/pkg/plugin/mic"     // Import to register malgo microphone
	"github.com/chriscow/maya-go/pkg/plugin/openai"
	_ "github.com/chriscow/maya-go/pkg/plugin/vosk"   // Import to register vosk recognizer
	_ "github.com/chriscow/maya-go/pkg/plugin/wavmic" // Import to register WAV replay microphone
	"github.com/chriscow/maya-go/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "maya",
	Short: "Maya - voice and text companion chat",
	Long: `maya runs Maya's chat backend, places voice calls from the terminal or a
browser tab, and offers a plain text chat against the same backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return config.LoadDotEnv(envFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat proxy, photo endpoint and browser call endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts := server.Options{
			Addr:   cfg.Addr(),
			Logger: logger,
			Call:   callConfig(cfg, logger),
		}

		if cfg.Server.Upstream.APIKey != "" {
			prompt := cfg.Server.SystemPrompt
			if prompt == "" {
				prompt = persona.SystemPrompt
			}
			upstream, err := openai.NewRelay(openai.Config{
				APIKey:       cfg.Server.Upstream.APIKey,
				BaseURL:      cfg.Server.Upstream.URL,
				Model:        cfg.Server.Upstream.Model,
				Temperature:  cfg.Server.Upstream.Temperature,
				MaxTokens:    cfg.Server.Upstream.MaxTokens,
				SystemPrompt: prompt,
			}, logger)
			if err != nil {
				return err
			}
			opts.Upstream = upstream
		} else {
			logger.Warn("LOVABLE_API_KEY not set; chat and call endpoints will report a configuration error")
		}

		if cfg.Photo.GeminiAPIKey != "" {
			gen, err := photo.NewGeminiGenerator(ctx, cfg.Photo.GeminiAPIKey, cfg.Photo.Model)
			if err != nil {
				return err
			}
			opts.Photos = gen
		} else {
			logger.Warn("GEMINI_API_KEY not set; photo endpoint will report a configuration error")
		}

		logger.Info("Starting server",
			slog.String("service", "maya"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("addr", opts.Addr),
			slog.String("model", cfg.Server.Upstream.Model))

		return server.New(opts).ListenAndServe(ctx)
	},
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place a voice call with local engines",
	Long: `call runs a voice call in this terminal. Engines come from the config
file or flags; the default console engines read what you type as speech and
print Maya's replies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		for flag, dst := range map[string]*string{
			"mic": &cfg.Audio.Device,
			"stt": &cfg.Recognizer.Engine,
			"tts": &cfg.Voice.Engine,
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				*dst = v
			}
		}

		micCfg := map[string]any{}
		if path, _ := cmd.Flags().GetString("wav"); path != "" {
			micCfg["path"] = path
			micCfg["loop"] = true
			if !cmd.Flags().Changed("mic") {
				cfg.Audio.Device = "wav"
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runCall(ctx, cfg, micCfg, logger)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Text chat with Maya",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		relay := llm.NewHTTPRelay(cfg.Chat.URL, cfg.Chat.APIKey, llm.WithRelayLogger(logger))
		photos := photo.NewClient(cfg.Photo.URL, cfg.Chat.APIKey, nil)
		c := newChat(relay, photos, cfg.Chat.HistoryLimit, os.Stdout)
		if micName, _ := cmd.Flags().GetString("mic"); micName != "" {
			sttName, _ := cmd.Flags().GetString("stt")
			dir, _ := cmd.Flags().GetString("voice-dir")
			if c.voice, err = newVoiceRecorder(cfg, micName, sttName, dir); err != nil {
				return err
			}
		}
		return c.run(ctx, os.Stdin)
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List registered engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			if err := plugin.LoadDynamicPlugins(dir); err != nil {
				return err
			}
		}
		for _, kind := range plugin.Kinds() {
			fmt.Printf("%s (%s)\n", kind, plugin.Port(kind))
			for _, p := range plugin.List(kind) {
				fmt.Printf("  %-8s %-6s %s\n", p.Name, p.Version, p.Description)
			}
		}
		return nil
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// callConfig returns the controller settings shared by terminal and
// browser calls.
func callConfig(cfg *config.Config, logger *slog.Logger) agent.Config {
	return agent.Config{
		Logger:       logger,
		Meter:        cfg.MeterConfig(),
		Recognizer:   cfg.RecognizerConfig(),
		Voice:        cfg.VoiceConfig(),
		Timing:       cfg.Timing(),
		HistoryLimit: cfg.Chat.HistoryLimit,
		Greeting:     cfg.Call.Greeting,
	}
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("MAYA_LOG_FORMAT")
	logLevel := os.Getenv("MAYA_LOG_LEVEL")

	opts := &slog.HandlerOptions{}

	switch strings.ToLower(logLevel) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelWarn
	}

	// Logs go to stderr so they do not mix with the conversation.
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.mayarc or /etc/maya/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before the config")

	serveCmd.Flags().Int("port", 0, "Override the listen port")

	callCmd.Flags().String("mic", "", "Microphone engine (console, malgo, wav, fake)")
	callCmd.Flags().String("wav", "", "Replay this WAV file as the microphone")
	callCmd.Flags().String("stt", "", "Recognizer engine (console, vosk, fake)")
	callCmd.Flags().String("tts", "", "Synthesizer engine (console, openai, fake)")

	chatCmd.Flags().String("mic", "", "Microphone engine for /voice notes (malgo, fake)")
	chatCmd.Flags().String("stt", "", "Recognizer engine for /voice notes (vosk, fake)")
	chatCmd.Flags().String("voice-dir", "", "Directory for recorded voice notes (default temp dir)")

	pluginCmd.Flags().String("dir", "", "Load .so engine plugins from this directory first")

	rootCmd.AddCommand(versionCmd, serveCmd, callCmd, chatCmd, pluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
