package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/config"
	"github.com/chriscow/maya-go/pkg/mood"
	"github.com/chriscow/maya-go/pkg/photo"
	"github.com/chriscow/maya-go/pkg/plugin"
)

// runCall places a terminal call with the engines named in cfg and blocks
// until ctx is cancelled.
func runCall(ctx context.Context, cfg *config.Config, micCfg map[string]any, logger *slog.Logger) error {
	mic, err := plugin.NewMicrophone(cfg.Audio.Device, micCfg)
	if err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	recognizer, err := plugin.NewRecognizer(cfg.Recognizer.Engine, map[string]any{
		"reader":     os.Stdin,
		"model_path": cfg.Recognizer.ModelPath,
		"lang":       cfg.Recognizer.Lang,
	})
	if err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	synth, err := plugin.NewSynthesizer(cfg.Voice.Engine, map[string]any{
		"writer": os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("synthesizer: %w", err)
	}
	relay, err := plugin.NewRelay("http", map[string]any{
		"url":     cfg.Chat.URL,
		"api_key": cfg.Chat.APIKey,
	})
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	callCfg := callConfig(cfg, logger)
	callCfg.Microphone = mic
	callCfg.STT = recognizer
	callCfg.TTS = synth
	callCfg.Relay = relay
	callCfg.Photos = photo.NewClient(cfg.Photo.URL, cfg.Chat.APIKey, nil)
	callCfg.Observer = &consoleObserver{out: os.Stderr}

	ctrl, err := agent.New(callCfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Calling Maya... (Ctrl+C to hang up)")
	if err := ctrl.StartCall(ctx); err != nil {
		fmt.Fprintln(os.Stderr, agent.Describe(err))
		return err
	}

	<-ctx.Done()
	ctrl.EndCall()
	m := ctrl.Metrics()
	logger.Info("Call ended",
		slog.String("turns", m.Turns.String()),
		slog.String("failed_turns", m.FailedTurns.String()))
	return nil
}

// consoleObserver shows call progress that the console engines do not
// print themselves.
type consoleObserver struct {
	agent.BaseObserver
	out io.Writer
}

func (o *consoleObserver) OnStateChange(s agent.CallState) {
	fmt.Fprintf(o.out, "[%s]\n", s)
}

func (o *consoleObserver) OnReply(text string, m mood.Mood) {
	if m != mood.Default {
		fmt.Fprintf(o.out, "(Maya looks %s)\n", m)
	}
}

func (o *consoleObserver) OnPhoto(url string, m photo.Mood) {
	if len(url) > 80 {
		url = url[:80] + "..."
	}
	fmt.Fprintf(o.out, "📸 Maya sent a %s photo: %s\n", m, url)
}

func (o *consoleObserver) OnError(err error) {
	fmt.Fprintln(o.out, agent.Describe(err))
}
