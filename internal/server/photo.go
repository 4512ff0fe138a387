package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/chriscow/maya-go/pkg/photo"
)

type photoRequest struct {
	Mood photo.Mood `json:"mood"`
}

type photoResponse struct {
	ImageURL *string `json:"imageUrl"`
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if s.opts.Photos == nil {
		writeError(w, http.StatusInternalServerError, "GEMINI_API_KEY is not configured")
		return
	}

	req := photoRequest{Mood: photo.Happy}
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		if err := sonic.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Mood == "" {
		req.Mood = photo.Happy
	}

	url, err := s.opts.Photos.RequestPhoto(r.Context(), req.Mood)
	if err != nil {
		s.logger.Warn("Photo generation failed",
			slog.String("mood", string(req.Mood)),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to generate image")
		return
	}

	var resp photoResponse
	if url != "" {
		resp.ImageURL = &url
	}
	writeJSON(w, http.StatusOK, resp)
}
