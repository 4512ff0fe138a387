package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/ai/stt"
	"github.com/chriscow/maya-go/pkg/audio/wav"
	"github.com/chriscow/maya-go/pkg/config"
	"github.com/chriscow/maya-go/pkg/plugin"
)

const (
	voiceSilentReply = "Kuch sunai nahi diya baby... phir se bolo? 🥺"
	voiceMicReply    = "Mic nahi chal raha jaan... text hi kar do 😔"

	// finalGrace is how long a stopped recognizer may still deliver finals.
	finalGrace = 500 * time.Millisecond
)

// voiceRecorder records one spoken message to a WAV file while the
// recognizer transcribes it.
type voiceRecorder struct {
	mic  meter.Device
	rec  stt.Engine
	lang string
	dir  string
}

// newVoiceRecorder builds the /voice engines. The console recognizer reads
// stdin, which the chat already owns, so it is refused.
func newVoiceRecorder(cfg *config.Config, micName, sttName, dir string) (*voiceRecorder, error) {
	if sttName == "" {
		sttName = cfg.Recognizer.Engine
	}
	if sttName == "console" {
		return nil, fmt.Errorf("voice notes need a recognizer that listens to audio (e.g. --stt vosk)")
	}
	mic, err := plugin.NewMicrophone(micName, nil)
	if err != nil {
		return nil, fmt.Errorf("microphone: %w", err)
	}
	rec, err := plugin.NewRecognizer(sttName, map[string]any{
		"model_path": cfg.Recognizer.ModelPath,
		"lang":       cfg.Recognizer.Lang,
	})
	if err != nil {
		return nil, fmt.Errorf("recognizer: %w", err)
	}
	return &voiceRecorder{mic: mic, rec: rec, lang: cfg.Recognizer.Lang, dir: dir}, nil
}

// voiceNote is a finished recording.
type voiceNote struct {
	Path       string
	Transcript string
	Duration   time.Duration
}

// transcript keeps the finals heard so far and the latest interim, which
// stands in when no final arrives.
type transcript struct {
	finals  []string
	interim string
}

func (t *transcript) add(ev stt.SpeechEvent) {
	text := strings.TrimSpace(ev.Text)
	switch {
	case text == "":
	case ev.Type == stt.SpeechEventFinal:
		t.finals = append(t.finals, text)
		t.interim = ""
	case ev.Type == stt.SpeechEventInterim:
		t.interim = text
	}
}

func (t *transcript) String() string {
	if len(t.finals) == 0 {
		return t.interim
	}
	return strings.Join(t.finals, " ")
}

// record captures until stop is closed, the microphone ends or ctx is
// done. A recognizer that fails to start leaves the transcript empty.
func (v *voiceRecorder) record(ctx context.Context, stop <-chan struct{}) (voiceNote, error) {
	stream, err := v.mic.Open(ctx)
	if err != nil {
		return voiceNote{}, fmt.Errorf("open microphone: %w", err)
	}
	defer stream.Close()

	f, err := os.CreateTemp(v.dir, "maya-voice-*.wav")
	if err != nil {
		return voiceNote{}, err
	}
	defer f.Close()
	note := voiceNote{Path: f.Name()}

	var events <-chan stt.SpeechEvent
	if err := v.rec.Start(ctx, stt.StreamConfig{Lang: v.lang, Continuous: true, InterimResults: true}); err == nil {
		events = v.rec.Events()
	}

	var w *wav.Writer
	var text transcript
	frames := stream.Frames()
capture:
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				break capture
			}
			if w == nil {
				if w, err = wav.NewWriter(f, frame.SampleRate, frame.NumChannels); err != nil {
					return note, err
				}
			}
			if err := w.WriteFrame(frame); err != nil {
				return note, err
			}
			note.Duration += frame.Duration()
		case ev := <-events:
			text.add(ev)
		case <-stop:
			break capture
		case <-ctx.Done():
			break capture
		}
	}

	if events != nil {
		_ = v.rec.Stop()
		grace := time.NewTimer(finalGrace)
		defer grace.Stop()
	late:
		for {
			select {
			case ev := <-events:
				if ev.Type == stt.SpeechEventEnd || ev.Type == stt.SpeechEventError {
					break late
				}
				text.add(ev)
			case <-grace.C:
				break late
			}
		}
	}
	note.Transcript = text.String()

	if w == nil {
		if w, err = wav.NewWriter(f, 16000, 1); err != nil {
			return note, err
		}
	}
	return note, errors.Join(w.Close(), ctx.Err())
}

// recordVoice runs one /voice turn: the next line from lines ends the
// recording and the transcript is sent as the user's message. It reports
// false once lines is closed.
func (c *chat) recordVoice(ctx context.Context, lines <-chan string) bool {
	if c.voice == nil {
		fmt.Fprintln(c.out, "(voice notes need a microphone: run chat with --mic and --stt)")
		return true
	}
	fmt.Fprintln(c.out, "🎙️  Recording... press Enter to send.")

	stop := make(chan struct{})
	type result struct {
		note voiceNote
		err  error
	}
	done := make(chan result, 1)
	go func() {
		note, err := c.voice.record(ctx, stop)
		done <- result{note, err}
	}()

	open := true
	var res result
	select {
	case _, open = <-lines:
		close(stop)
		res = <-done
	case res = <-done:
	}

	switch {
	case errors.Is(res.err, context.Canceled):
		return false
	case res.err != nil:
		fmt.Fprintln(c.out, "Maya: "+voiceMicReply)
	case res.note.Transcript == "":
		fmt.Fprintln(c.out, "Maya: "+voiceSilentReply)
	default:
		fmt.Fprintf(c.out, "You (🎙️ %s, %s): %s\n",
			res.note.Duration.Round(100*time.Millisecond), res.note.Path, res.note.Transcript)
		c.send(ctx, res.note.Transcript)
	}
	return open
}
