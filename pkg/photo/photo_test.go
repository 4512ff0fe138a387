package photo_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chriscow/maya-go/pkg/photo"
	"github.com/matryer/is"
)

func TestMarker(t *testing.T) {
	is := is.New(t)
	reply := "Ye lo baby [SEND_PHOTO] 😏"
	is.True(photo.Requested(reply))
	is.Equal(photo.Strip(reply), "Ye lo baby 😏")
	is.Equal(photo.Strip("Haan [SEND_PHOTO] baby"), "Haan baby")
	is.Equal(photo.Strip("  Theek hai  "), "Theek hai")
	is.Equal(photo.Strip("[SEND_PHOTO] Haan [SEND_PHOTO]"), "Haan")
	is.True(!photo.Requested("Haan bolo jaanu. 💕"))
}

func TestMoodForReply(t *testing.T) {
	tests := []struct {
		reply string
		want  photo.Mood
	}{
		{"Main gussa hoon 😤 [SEND_PHOTO]", photo.Angry},
		{"Kaun thi woh? 🙄 [SEND_PHOTO]", photo.Jealous},
		{"Itne nakhre mat dikhao", photo.Nakhre},
		{"I LOVE you [SEND_PHOTO]", photo.Loving},
		{"Main shy ho gayi", photo.Shy},
		{"Ye dekho [SEND_PHOTO]", photo.Happy},
		{"angry but also love", photo.Angry}, // earlier rules win
	}
	for _, tt := range tests {
		if got := photo.MoodForReply(tt.reply); got != tt.want {
			t.Errorf("MoodForReply(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestPromptUsesExpression(t *testing.T) {
	is := is.New(t)
	is.True(strings.Contains(photo.Prompt(photo.Shy), "blushing pink cheeks"))
	is.Equal(photo.Expression("unknown"), photo.Expression(photo.Happy))
}

func TestClient_RequestPhoto(t *testing.T) {
	is := is.New(t)
	moods := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mood string `json:"mood"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		moods <- body.Mood
		io.WriteString(w, `{"imageUrl":"data:image/png;base64,AAAA"}`)
	}))
	defer srv.Close()

	url, err := photo.NewClient(srv.URL, "k", nil).RequestPhoto(context.Background(), photo.Jealous)
	is.NoErr(err)
	is.Equal(url, "data:image/png;base64,AAAA")
	is.Equal(<-moods, "jealous")
}

func TestClient_NoImage(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"imageUrl":null}`)
	}))
	defer srv.Close()

	url, err := photo.NewClient(srv.URL, "", nil).RequestPhoto(context.Background(), photo.Happy)
	is.NoErr(err)
	is.Equal(url, "")
}

func TestClient_ErrorStatus(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Failed to generate image"}`)
	}))
	defer srv.Close()

	_, err := photo.NewClient(srv.URL, "", nil).RequestPhoto(context.Background(), photo.Happy)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "Failed to generate image"))
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := photo.NewGeminiGenerator(context.Background(), "", "")
	is.Equal(err, photo.ErrNoAPIKey)
}
