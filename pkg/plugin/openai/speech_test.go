package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/tts"
)

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func speechServer(t *testing.T, got chan<- speechRequest, status int, pcm []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var req speechRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got <- req
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
}

// recordPlayer keeps what it was asked to play.
type recordPlayer struct {
	mu     sync.Mutex
	played bytes.Buffer
	hold   bool
}

func (p *recordPlayer) Play(ctx context.Context, pcm io.Reader) error {
	if p.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.Copy(&p.played, pcm)
	return err
}

func drain(t *testing.T, events <-chan tts.PlaybackEvent) []tts.PlaybackEvent {
	t.Helper()
	var out []tts.PlaybackEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("playback never finished")
			return nil
		}
	}
}

func TestSpeaker_PlaysSpeech(t *testing.T) {
	is := is.New(t)
	got := make(chan speechRequest, 1)
	pcm := []byte{1, 0, 2, 0, 3, 0}
	srv := speechServer(t, got, http.StatusOK, pcm)
	defer srv.Close()

	player := &recordPlayer{}
	s, err := NewSpeaker(SpeechConfig{APIKey: "k", BaseURL: srv.URL}, player, nil)
	is.NoErr(err)

	events, err := s.Speak(context.Background(), tts.Utterance{Text: "Haan baby 💕 [SEND_PHOTO]", Rate: 0.9})
	is.NoErr(err)
	evs := drain(t, events)
	is.Equal(len(evs), 2)
	is.Equal(evs[0].Type, tts.PlaybackStart)
	is.Equal(evs[1].Type, tts.PlaybackEnd)
	is.Equal(player.played.Bytes(), pcm)

	req := <-got
	is.Equal(req.Input, "Haan baby")
	is.Equal(req.Model, "tts-1")
	is.Equal(req.Voice, "nova")
	is.Equal(req.ResponseFormat, "pcm")
	is.True(req.Speed > 0.89 && req.Speed < 0.91)
}

func TestSpeaker_UtteranceVoiceOverrides(t *testing.T) {
	is := is.New(t)
	got := make(chan speechRequest, 1)
	srv := speechServer(t, got, http.StatusOK, []byte{0, 0})
	defer srv.Close()

	s, err := NewSpeaker(SpeechConfig{APIKey: "k", BaseURL: srv.URL, Voice: "alloy"}, &recordPlayer{}, nil)
	is.NoErr(err)
	events, err := s.Speak(context.Background(), tts.Utterance{Text: "Suno", Voice: "shimmer"})
	is.NoErr(err)
	drain(t, events)
	is.Equal((<-got).Voice, "shimmer")
}

func TestSpeaker_RequestError(t *testing.T) {
	is := is.New(t)
	got := make(chan speechRequest, 1)
	srv := speechServer(t, got, http.StatusInternalServerError, nil)
	defer srv.Close()

	s, err := NewSpeaker(SpeechConfig{APIKey: "k", BaseURL: srv.URL}, &recordPlayer{}, nil)
	is.NoErr(err)
	events, err := s.Speak(context.Background(), tts.Utterance{Text: "Suno"})
	is.NoErr(err)
	evs := drain(t, events)
	is.Equal(len(evs), 1)
	is.Equal(evs[0].Type, tts.PlaybackError)
	var apiErr *ai.APIError
	is.True(errors.As(evs[0].Err, &apiErr))
	is.Equal(apiErr.Status, http.StatusInternalServerError)
}

func TestSpeaker_CancelEndsWithoutEvent(t *testing.T) {
	is := is.New(t)
	got := make(chan speechRequest, 1)
	srv := speechServer(t, got, http.StatusOK, []byte{0, 0, 0, 0})
	defer srv.Close()

	s, err := NewSpeaker(SpeechConfig{APIKey: "k", BaseURL: srv.URL}, &recordPlayer{hold: true}, nil)
	is.NoErr(err)
	events, err := s.Speak(context.Background(), tts.Utterance{Text: "Ruko"})
	is.NoErr(err)

	ev := <-events
	is.Equal(ev.Type, tts.PlaybackStart)
	s.Cancel()
	is.Equal(len(drain(t, events)), 0)
}

func TestNewSpeaker_Validates(t *testing.T) {
	is := is.New(t)
	_, err := NewSpeaker(SpeechConfig{}, &recordPlayer{}, nil)
	is.True(err != nil)
	_, err = NewSpeaker(SpeechConfig{APIKey: "k"}, nil, nil)
	is.True(err != nil)
}

func TestPCMQueue(t *testing.T) {
	is := is.New(t)
	q := newPCMQueue()

	out := []byte{9, 9, 9, 9}
	q.read(out)
	is.Equal(out, []byte{0, 0, 0, 0}) // silence before any audio arrives

	q.fill(strings.NewReader("abcdef"))
	select {
	case <-q.done():
		t.Fatal("done before the audio was read")
	default:
	}

	q.read(out)
	is.Equal(string(out), "abcd")
	q.read(out)
	is.Equal(out, []byte{'e', 'f', 0, 0})
	<-q.done()
	is.NoErr(q.Err())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestPCMQueue_ReadError(t *testing.T) {
	is := is.New(t)
	q := newPCMQueue()
	q.fill(failingReader{})
	<-q.done()
	is.True(q.Err() != nil)
}
