package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/llm"
)

// Config configures a Relay.
type Config struct {
	APIKey       string
	BaseURL      string // OpenAI-compatible endpoint; empty uses api.openai.com
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string // prepended to every request when non-empty
	HTTPClient   *http.Client
}

// Relay talks to an OpenAI-compatible chat completions endpoint directly,
// without going through the maya-chat function.
type Relay struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewRelay creates a streaming chat relay.
func NewRelay(cfg Config, logger *slog.Logger) (*Relay, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Relay{client: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger}, nil
}

// Send opens a completion stream for the conversation.
func (r *Relay) Send(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Messages:    r.messages(messages),
		Stream:      true,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}

	start := time.Now()
	stream, err := r.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		err = MapError(err)
		r.logger.Warn("Chat completion failed",
			slog.String("model", r.cfg.Model),
			slog.String("error", err.Error()))
		return nil, err
	}
	r.logger.Debug("Chat completion stream opened",
		slog.String("model", r.cfg.Model),
		slog.Int("messages", len(messages)),
		slog.Duration("latency", time.Since(start)))
	return &relayStream{stream: stream}, nil
}

func (r *Relay) messages(history []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if r.cfg.SystemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.cfg.SystemPrompt,
		})
	}
	for _, m := range history {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

type relayStream struct {
	stream *openai.ChatCompletionStream
}

func (s *relayStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", MapError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *relayStream) Close() error {
	s.stream.Close()
	return nil
}

// DefaultRetryAfter is assumed when a throttled response carries no hint.
const DefaultRetryAfter = 60 * time.Second

// MapError converts go-openai errors into the ai error taxonomy.
func MapError(err error) error {
	status := 0
	msg := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &ai.RateLimitedError{RetryAfter: DefaultRetryAfter, Message: msg}
	case status != 0:
		return &ai.APIError{Status: status, Message: msg}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &ai.NetworkError{Op: "stream", URL: "chat/completions", Err: err}
	}
}
