package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/llm"
)

// Client-facing chat errors.
const (
	msgRateLimited     = "Rate limits exceeded, please try again later."
	msgPaymentRequired = "Payment required, please add funds."
	msgGateway         = "AI gateway error"
	msgNotConfigured   = "LOVABLE_API_KEY is not configured"
)

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// handleChat relays the conversation upstream and re-emits the reply as an
// OpenAI-style event stream terminated by [DONE].
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Upstream == nil {
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req chatRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream, err := s.opts.Upstream.Send(r.Context(), req.Messages)
	if err != nil {
		s.chatFailed(w, err)
		return
	}
	defer stream.Close()
	chatStreams.Add(1)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Headers are gone; end the stream and let the client keep
			// what it received.
			s.logger.Warn("Upstream stream failed", slog.String("error", err.Error()))
			chatErrors.Add("stream", 1)
			break
		}
		if err := writeDelta(w, delta); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeDelta(w io.Writer, delta string) error {
	chunk := openai.ChatCompletionStreamResponse{
		Object: "chat.completion.chunk",
		Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{Content: delta},
		}},
	}
	data, err := sonic.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "data: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n\n")
	return err
}

func (s *Server) chatFailed(w http.ResponseWriter, err error) {
	s.logger.Warn("Chat upstream error", slog.String("error", err.Error()))

	if rl, ok := ai.IsRateLimited(err); ok {
		chatErrors.Add("rate_limited", 1)
		w.Header().Set("Retry-After", strconv.Itoa(rl.Seconds()))
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusPaymentRequired {
		chatErrors.Add("payment_required", 1)
		writeError(w, http.StatusPaymentRequired, msgPaymentRequired)
		return
	}
	chatErrors.Add("gateway", 1)
	writeError(w, http.StatusInternalServerError, msgGateway)
}
