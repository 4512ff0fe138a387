package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/version"
)

const (
	tracerName = "github.com/chriscow/maya-go/pkg/ai/llm"

	// DefaultRetryAfter applies when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 60 * time.Second

	readChunkSize = 4096
)

// HTTPRelay posts the conversation to a chat endpoint and reads the reply
// as an event stream.
type HTTPRelay struct {
	url    string
	apiKey string
	client *http.Client
	retry  ai.RetryConfig
	logger *slog.Logger
	tracer trace.Tracer
}

// RelayOption configures an HTTPRelay.
type RelayOption func(*HTTPRelay)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) RelayOption {
	return func(r *HTTPRelay) { r.client = c }
}

// WithRetry sets the transport retry policy.
func WithRetry(cfg ai.RetryConfig) RelayOption {
	return func(r *HTTPRelay) { r.retry = cfg }
}

// WithRelayLogger sets the logger.
func WithRelayLogger(l *slog.Logger) RelayOption {
	return func(r *HTTPRelay) { r.logger = l }
}

// NewHTTPRelay creates a relay for the chat endpoint at url, authorized
// with apiKey as a bearer token.
func NewHTTPRelay(url, apiKey string, opts ...RelayOption) *HTTPRelay {
	r := &HTTPRelay{
		url:    url,
		apiKey: apiKey,
		client: http.DefaultClient,
		retry:  ai.DefaultRetryConfig,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type chatRequest struct {
	Messages []Message `json:"messages"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Send posts messages and returns the reply stream. Transport failures are
// retried before a response arrives; error statuses are never retried.
func (r *HTTPRelay) Send(ctx context.Context, messages []Message) (Stream, error) {
	ctx, span := r.tracer.Start(ctx, "llm.Send",
		trace.WithAttributes(attribute.Int("chat.messages", len(messages))))

	body, err := sonic.Marshal(chatRequest{Messages: messages})
	if err != nil {
		endSpan(span, err)
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	resp, err := r.post(ctx, body)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp)
		resp.Body.Close()
		endSpan(span, err)
		return nil, err
	}

	return newHTTPStream(resp.Body, span, r.url), nil
}

func (r *HTTPRelay) post(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retry.Delay(attempt)
			r.logger.Debug("Retrying chat request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("User-Agent", version.UserAgent())
		if r.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.apiKey)
		}

		resp, err := r.client.Do(req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = &ai.NetworkError{Op: "POST", URL: r.url, Err: err}
	}
	return nil, lastErr
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if len(raw) > 0 {
		_ = sonic.Unmarshal(raw, &eb)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &ai.RateLimitedError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    eb.Error,
		}
	}

	msg := eb.Error
	if msg == "" {
		msg = "Failed to get response"
	}
	return &ai.APIError{Status: resp.StatusCode, Message: msg}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs <= 0 {
		return DefaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type httpStream struct {
	body    io.ReadCloser
	span    trace.Span
	url     string
	buf     []byte
	dec     lineDecoder
	pending []string
	eof     bool
	closed  bool
	deltas  int
	err     error
}

func newHTTPStream(body io.ReadCloser, span trace.Span, url string) *httpStream {
	return &httpStream{body: body, span: span, url: url, buf: make([]byte, readChunkSize)}
}

func (s *httpStream) Recv() (string, error) {
	for len(s.pending) == 0 {
		if s.closed {
			return "", io.EOF
		}
		if s.eof || s.dec.Done() {
			return "", io.EOF
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.dec.Write(s.buf[:n])...)
		}
		if errors.Is(err, io.EOF) {
			s.pending = append(s.pending, s.dec.Flush()...)
			s.eof = true
			continue
		}
		if err != nil {
			s.err = &ai.NetworkError{Op: "read", URL: s.url, Err: err}
			s.eof = true
			return "", s.err
		}
	}

	delta := s.pending[0]
	s.pending = s.pending[1:]
	s.deltas++
	return delta, nil
}

func (s *httpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.span.SetAttributes(attribute.Int("chat.deltas", s.deltas))
	endSpan(s.span, s.err)
	return s.body.Close()
}
