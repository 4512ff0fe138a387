package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/chriscow/maya-go/internal/bridge"
	"github.com/chriscow/maya-go/pkg/agent"
	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/llm"
	llmfake "github.com/chriscow/maya-go/pkg/ai/llm/fake"
	"github.com/chriscow/maya-go/pkg/photo"
)

type photoStub struct {
	mu    sync.Mutex
	url   string
	err   error
	moods []photo.Mood
}

func (p *photoStub) RequestPhoto(ctx context.Context, m photo.Mood) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moods = append(p.moods, m)
	return p.url, p.err
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestChat_StreamsThroughRelayClient(t *testing.T) {
	is := is.New(t)
	upstream := llmfake.NewFakeRelay("Haan baby, bolo na 😊")
	srv := newTestServer(t, Options{Upstream: upstream})

	client := llm.NewHTTPRelay(srv.URL+ChatPath, "anon")
	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	stream, err := client.Send(context.Background(), history)
	is.NoErr(err)
	text, err := llm.Collect(stream, nil)
	is.NoErr(err)
	is.Equal(text, "Haan baby, bolo na 😊")

	calls := upstream.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0], history)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		message    string
		retryAfter string
	}{
		{"rate limited", &ai.RateLimitedError{RetryAfter: 30 * time.Second}, http.StatusTooManyRequests, msgRateLimited, "30"},
		{"payment", &ai.APIError{Status: http.StatusPaymentRequired}, http.StatusPaymentRequired, msgPaymentRequired, ""},
		{"other status", &ai.APIError{Status: http.StatusBadGateway}, http.StatusInternalServerError, msgGateway, ""},
		{"network", &ai.NetworkError{Op: "post", Err: errors.New("boom")}, http.StatusInternalServerError, msgGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			upstream := llmfake.NewFakeRelay()
			upstream.Queue(llmfake.Reply{Err: tt.err})
			srv := newTestServer(t, Options{Upstream: upstream})

			resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(`{"messages":[]}`))
			is.NoErr(err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			is.Equal(resp.StatusCode, tt.status)
			is.Equal(resp.Header.Get("Access-Control-Allow-Origin"), "*")
			is.Equal(resp.Header.Get("Retry-After"), tt.retryAfter)
			is.True(strings.Contains(string(body), tt.message))
		})
	}
}

func TestChat_RateLimitReachesCaller(t *testing.T) {
	is := is.New(t)
	upstream := llmfake.NewFakeRelay()
	upstream.Queue(llmfake.Reply{Err: &ai.RateLimitedError{RetryAfter: 30 * time.Second}})
	srv := newTestServer(t, Options{Upstream: upstream})

	_, err := llm.NewHTTPRelay(srv.URL+ChatPath, "").Send(context.Background(), nil)
	rl, ok := ai.IsRateLimited(err)
	is.True(ok)
	is.Equal(rl.Seconds(), 30)
}

func TestChat_NotConfigured(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(`{"messages":[]}`))
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusInternalServerError)
}

func TestChat_BadBody(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{Upstream: llmfake.NewFakeRelay()})
	resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(`{"messages":`))
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestCORSPreflight(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	for _, path := range []string{ChatPath, PhotoPath} {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+path, nil)
		resp, err := http.DefaultClient.Do(req)
		is.NoErr(err)
		resp.Body.Close()
		is.Equal(resp.StatusCode, http.StatusOK)
		is.Equal(resp.Header.Get("Access-Control-Allow-Headers"), "authorization, x-client-info, apikey, content-type")
	}

	resp, err := http.Get(srv.URL + ChatPath)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestPhoto_Endpoint(t *testing.T) {
	is := is.New(t)
	stub := &photoStub{url: "data:image/png;base64,AAAA"}
	srv := newTestServer(t, Options{Photos: stub})

	client := photo.NewClient(srv.URL+PhotoPath, "", nil)
	url, err := client.RequestPhoto(context.Background(), photo.Angry)
	is.NoErr(err)
	is.Equal(url, "data:image/png;base64,AAAA")
	is.Equal(stub.moods, []photo.Mood{photo.Angry})
}

func TestPhoto_NoImageAndFailure(t *testing.T) {
	is := is.New(t)
	stub := &photoStub{}
	srv := newTestServer(t, Options{Photos: stub})
	client := photo.NewClient(srv.URL+PhotoPath, "", nil)

	url, err := client.RequestPhoto(context.Background(), photo.Happy)
	is.NoErr(err)
	is.Equal(url, "")

	resp, err := http.Post(srv.URL+PhotoPath, "application/json", strings.NewReader(""))
	is.NoErr(err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	is.Equal(string(body), `{"imageUrl":null}`)
	is.Equal(stub.moods[1], photo.Happy) // empty body defaults to happy

	stub.err = errors.New("quota")
	_, err = client.RequestPhoto(context.Background(), photo.Sad)
	is.True(err != nil)
}

func TestHealthAndVars(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + HealthPath)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, err = http.Get(srv.URL + VarsPath)
	is.NoErr(err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	is.True(strings.Contains(string(body), "maya_calls_total"))
}

// page drives the call endpoint the way the browser client does.
type page struct {
	t    *testing.T
	conn *websocket.Conn
}

func (p *page) signal(typ string, data map[string]any) {
	p.t.Helper()
	if err := p.conn.WriteJSON(bridge.Signal{Type: typ, Data: data}); err != nil {
		p.t.Fatalf("write %s: %v", typ, err)
	}
}

func (p *page) expect(typ string, match func(bridge.Command) bool) bridge.Command {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var cmd bridge.Command
		if err := p.conn.ReadJSON(&cmd); err != nil {
			p.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if cmd.Type == typ && (match == nil || match(cmd)) {
			return cmd
		}
	}
}

func (p *page) expectAll(want map[string]func(bridge.Command) bool) {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(want) > 0 {
		var cmd bridge.Command
		if err := p.conn.ReadJSON(&cmd); err != nil {
			p.t.Fatalf("waiting for %d commands: %v", len(want), err)
		}
		if match, ok := want[cmd.Type]; ok && match(cmd) {
			delete(want, cmd.Type)
		}
	}
}

func text(want string) func(bridge.Command) bool {
	return func(c bridge.Command) bool { return c.Data["text"] == want }
}

func TestCall_EndToEnd(t *testing.T) {
	is := is.New(t)
	upstream := llmfake.NewFakeRelay("[SEND_PHOTO] Ye lo 😏")
	stub := &photoStub{url: "data:image/png;base64,BBBB"}
	srv := newTestServer(t, Options{
		Upstream: upstream,
		Photos:   stub,
		Call: agent.Config{
			Timing: agent.Timing{ResumeAfterSpeech: time.Millisecond, ResumeAfterInterrupt: time.Millisecond},
		},
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+CallPath, nil)
	is.NoErr(err)
	defer conn.Close()
	p := &page{t: t, conn: conn}

	p.signal(bridge.SignalHello, map[string]any{"recognition": true})
	p.signal(bridge.SignalStart, nil)

	p.expect(bridge.CommandMicOpen, nil)
	p.signal(bridge.SignalMicGranted, nil)

	greeting := p.expect(bridge.CommandTTSSpeak, nil)
	is.Equal(greeting.Data["text"], "Haan bolo jaanu.")
	p.signal(bridge.SignalTTSEnd, map[string]any{"id": greeting.Data["id"]})

	p.expect(bridge.CommandSTTStart, nil)
	p.signal(bridge.SignalSTTFinal, map[string]any{"text": "ek photo bhejo na"})

	p.expect(bridge.CommandSTTStop, nil)
	// Observer updates and device commands travel on different goroutines,
	// so only their presence is checked.
	p.expectAll(map[string]func(bridge.Command) bool{
		bridge.CommandReply:    text("Ye lo 😏"),
		bridge.CommandTTSSpeak: text("Ye lo"),
		bridge.CommandPhoto: func(c bridge.Command) bool {
			return c.Data["url"] == "data:image/png;base64,BBBB"
		},
	})

	p.signal(bridge.SignalEnd, nil)
	p.expect(bridge.CommandState, func(c bridge.Command) bool { return c.Data["state"] == "Ended" })

	calls := upstream.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0][len(calls[0])-1].Content, "ek photo bhejo na")
}

func TestCall_MicDenied(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{Upstream: llmfake.NewFakeRelay()})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+CallPath, nil)
	is.NoErr(err)
	defer conn.Close()
	p := &page{t: t, conn: conn}

	p.signal(bridge.SignalStart, nil)
	p.expect(bridge.CommandMicOpen, nil)
	p.signal(bridge.SignalMicDenied, nil)

	cmd := p.expect(bridge.CommandError, nil)
	is.Equal(cmd.Data["message"], "Microphone access denied. Please allow microphone access.")
}
