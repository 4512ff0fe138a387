package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/llm/fake"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	meterfake "github.com/chriscow/maya-go/pkg/ai/meter/fake"
	sttfake "github.com/chriscow/maya-go/pkg/ai/stt/fake"
	"github.com/chriscow/maya-go/pkg/audio/wav"
	"github.com/chriscow/maya-go/pkg/rtc"
)

// shortMic plays a fixed number of frames and then ends its stream.
type shortMic struct {
	frames int
}

func (m shortMic) Open(ctx context.Context) (meter.Stream, error) {
	ch := make(chan rtc.AudioFrame, m.frames)
	for i := 0; i < m.frames; i++ {
		ch <- meterfake.SineFrame(440, 0.3, i*160)
	}
	close(ch)
	return &shortStream{frames: ch}, nil
}

type shortStream struct {
	frames chan rtc.AudioFrame
}

func (s *shortStream) Frames() <-chan rtc.AudioFrame { return s.frames }
func (s *shortStream) Close() error                  { return nil }

func TestVoiceRecorder_RecordsAndTranscribes(t *testing.T) {
	is := is.New(t)
	rec := sttfake.NewFakeSTT()
	rec.EmitInterim("kaha")
	rec.EmitFinal("kahan")
	rec.EmitFinal("ho tum")

	v := &voiceRecorder{mic: shortMic{frames: 3}, rec: rec, lang: "hi-IN", dir: t.TempDir()}
	note, err := v.record(context.Background(), make(chan struct{}))
	is.NoErr(err)
	is.Equal(note.Transcript, "kahan ho tum")
	is.Equal(note.Duration, 30*time.Millisecond)
	is.Equal(rec.LastConfig().Lang, "hi-IN")
	is.True(!rec.Running())

	r, err := wav.Open(note.Path)
	is.NoErr(err)
	defer r.Close()
	is.Equal(r.Header().SampleRate, 16000)
	is.Equal(r.Header().NumChannels, 1)
	is.Equal(r.Header().Duration(), 30*time.Millisecond)
}

func TestVoiceRecorder_InterimStandsIn(t *testing.T) {
	is := is.New(t)
	rec := sttfake.NewFakeSTT()
	rec.EmitInterim("suno")
	rec.EmitInterim("suno na")

	v := &voiceRecorder{mic: shortMic{frames: 1}, rec: rec, dir: t.TempDir()}
	note, err := v.record(context.Background(), make(chan struct{}))
	is.NoErr(err)
	is.Equal(note.Transcript, "suno na")
}

func TestVoiceRecorder_StopReleasesMic(t *testing.T) {
	is := is.New(t)
	dev := meterfake.NewFakeDevice()
	v := &voiceRecorder{mic: dev, rec: sttfake.NewFakeSTT(), dir: t.TempDir()}

	stop := make(chan struct{})
	type result struct {
		note voiceNote
		err  error
	}
	done := make(chan result, 1)
	go func() {
		note, err := v.record(context.Background(), stop)
		done <- result{note, err}
	}()

	deadline := time.Now().Add(time.Second)
	for !dev.Held() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stop)
	res := <-done
	is.NoErr(res.err)
	note := res.note
	is.Equal(note.Transcript, "")
	is.True(!dev.Held())

	r, err := wav.Open(note.Path)
	is.NoErr(err) // an empty recording is still a valid file
	defer r.Close()
	is.Equal(r.Header().DataSize, uint32(0))
}

func TestVoiceRecorder_MicDenied(t *testing.T) {
	is := is.New(t)
	v := &voiceRecorder{mic: &meterfake.FakeDevice{Deny: true}, rec: sttfake.NewFakeSTT(), dir: t.TempDir()}
	_, err := v.record(context.Background(), make(chan struct{}))
	is.True(err != nil)
	is.True(errors.Is(err, ai.ErrPermissionDenied))
}

func TestChat_VoiceSendsTranscript(t *testing.T) {
	is := is.New(t)
	relay := fake.NewFakeRelay("Main yahin hoon baby 💕")
	rec := sttfake.NewFakeSTT()
	rec.EmitFinal("kahan ho tum")
	var out bytes.Buffer

	c := newChat(relay, nil, 20, &out)
	c.voice = &voiceRecorder{mic: shortMic{frames: 2}, rec: rec, dir: t.TempDir()}
	is.NoErr(c.run(context.Background(), strings.NewReader("/voice\n")))

	calls := relay.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0][len(calls[0])-1].Content, "kahan ho tum")
	is.True(strings.Contains(out.String(), "Recording..."))
	is.True(strings.Contains(out.String(), ": kahan ho tum\n"))
	is.True(strings.Contains(out.String(), "Maya: Main yahin hoon baby 💕\n"))
}

func TestChat_VoiceSilence(t *testing.T) {
	is := is.New(t)
	relay := fake.NewFakeRelay()
	var out bytes.Buffer

	c := newChat(relay, nil, 20, &out)
	c.voice = &voiceRecorder{mic: shortMic{frames: 2}, rec: sttfake.NewFakeSTT(), dir: t.TempDir()}
	is.NoErr(c.run(context.Background(), strings.NewReader("/voice\n")))

	is.Equal(len(relay.Calls()), 0)
	is.True(strings.Contains(out.String(), voiceSilentReply))
}

func TestChat_VoiceWithoutMic(t *testing.T) {
	is := is.New(t)
	relay := fake.NewFakeRelay("hmm")
	var out bytes.Buffer

	c := newChat(relay, nil, 20, &out)
	is.NoErr(c.run(context.Background(), strings.NewReader("/voice\nhello\n")))

	is.True(strings.Contains(out.String(), "need a microphone"))
	calls := relay.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0][0].Content, "hello")
}
