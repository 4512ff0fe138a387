package tts_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chriscow/maya-go/pkg/ai/tts"
	"github.com/chriscow/maya-go/pkg/ai/tts/fake"
	"github.com/matryer/is"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Haan [SEND_PHOTO] baby", "Haan baby"},
		{"[SEND_PHOTO]Ye lo 😏", "Ye lo"},
		{"Kahan the? 😤😤", "Kahan the?"},
		{"Miss you ❤️ 💕", "Miss you"},
		{"💔", ""},
		{"   ", ""},
		{"Theek hai.", "Theek hai."},
	}
	for _, tt := range tests {
		if got := tts.CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectVoice(t *testing.T) {
	tests := []struct {
		name   string
		voices []tts.Voice
		want   string
		ok     bool
	}{
		{name: "none", voices: nil, ok: false},
		{
			name:   "preferred wins in order",
			voices: []tts.Voice{{Name: "Samantha", Lang: "en-US"}, {Name: "Lekha", Lang: "hi-IN"}},
			want:   "Lekha", ok: true,
		},
		{
			name:   "female fallback",
			voices: []tts.Voice{{Name: "Daniel", Lang: "en-GB"}, {Name: "English Female", Lang: "en-GB"}},
			want:   "English Female", ok: true,
		},
		{
			name:   "language fallback",
			voices: []tts.Voice{{Name: "Daniel", Lang: "en-GB"}, {Name: "Rishi", Lang: "hi-IN"}},
			want:   "Rishi", ok: true,
		},
		{
			name:   "first voice",
			voices: []tts.Voice{{Name: "Daniel", Lang: "en-GB"}, {Name: "Thomas", Lang: "fr-FR"}},
			want:   "Daniel", ok: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := tts.SelectVoice(tt.voices, tts.DefaultConfig().PreferredVoices, "hi-IN")
			if ok != tt.ok || v.Name != tt.want {
				t.Errorf("SelectVoice() = %q, %v; want %q, %v", v.Name, ok, tt.want, tt.ok)
			}
		})
	}
}

type recorder struct {
	mu       sync.Mutex
	stops    int
	speaking atomic.Bool
	changes  []bool
}

func (r *recorder) Stop() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

func (r *recorder) SetSpeaking(v bool) { r.speaking.Store(v) }

func (r *recorder) hook(v bool) {
	r.mu.Lock()
	r.changes = append(r.changes, v)
	r.mu.Unlock()
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("speech never completed")
	}
}

func newSynth(engine tts.Engine, rec *recorder) *tts.Synthesizer {
	return tts.NewSynthesizer(engine, tts.DefaultConfig(),
		tts.WithSuppressor(rec),
		tts.WithActivity(rec),
		tts.WithSpeakingHook(rec.hook))
}

func TestSynthesizer_SpeakLifecycle(t *testing.T) {
	is := is.New(t)
	engine := fake.NewFakeTTS()
	rec := &recorder{}
	s := newSynth(engine, rec)

	done := s.Speak(context.Background(), "Haan [SEND_PHOTO] baby 💕")
	is.True(rec.speaking.Load()) // marked speaking before audio starts
	is.Equal(rec.stops, 1)       // recognizer suppressed
	is.True(s.Speaking())

	utt := engine.Utterances()
	is.Equal(len(utt), 1)
	is.Equal(utt[0].Text, "Haan baby") // marker and emoji never vocalized
	is.Equal(utt[0].Lang, "hi-IN")
	is.Equal(utt[0].Voice, "Lekha") // preferred voice chosen

	engine.Finish()
	waitDone(t, done)
	is.True(!rec.speaking.Load())
	is.True(!s.Speaking())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	is.Equal(rec.changes, []bool{true, false})
}

func TestSynthesizer_EmptyTextCompletesImmediately(t *testing.T) {
	is := is.New(t)
	engine := fake.NewFakeTTS()
	rec := &recorder{}
	s := newSynth(engine, rec)

	done := s.Speak(context.Background(), "[SEND_PHOTO] 😤 💕")
	select {
	case <-done:
	default:
		t.Fatal("empty reply should complete immediately")
	}
	is.Equal(len(engine.Utterances()), 0) // engine never touched
	is.Equal(rec.stops, 0)
	is.True(!rec.speaking.Load())
}

func TestSynthesizer_ErrorIsCompletion(t *testing.T) {
	is := is.New(t)
	engine := fake.NewFakeTTS()
	rec := &recorder{}
	s := newSynth(engine, rec)

	done := s.Speak(context.Background(), "Hmm.")
	engine.Fail(errors.New("synthesis-failed"))
	waitDone(t, done)
	is.True(!rec.speaking.Load()) // error leaves nothing speaking

	engine.FailStart = errors.New("no voices")
	done = s.Speak(context.Background(), "Hmm.")
	waitDone(t, done)
	is.True(!rec.speaking.Load())
}

func TestSynthesizer_CancelForcesFinish(t *testing.T) {
	is := is.New(t)
	engine := fake.NewFakeTTS()
	rec := &recorder{}
	s := newSynth(engine, rec)

	done := s.Speak(context.Background(), "Tumhe meri parwaah hi nahi hai")
	s.Cancel()
	waitDone(t, done)
	is.True(!engine.Playing())
	is.True(!rec.speaking.Load())

	s.Cancel() // cancelling with nothing playing is fine
}

func TestSynthesizer_NewReplyReplacesOld(t *testing.T) {
	is := is.New(t)
	engine := fake.NewFakeTTS()
	rec := &recorder{}
	s := newSynth(engine, rec)

	first := s.Speak(context.Background(), "Pehla")
	second := s.Speak(context.Background(), "Doosra")
	waitDone(t, first)
	is.True(rec.speaking.Load()) // the old reply finishing does not clear the new one

	engine.Finish()
	waitDone(t, second)
	is.True(!rec.speaking.Load())
}
