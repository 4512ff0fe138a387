package photo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultImageModel is the Gemini model used for selfies.
const DefaultImageModel = "gemini-2.0-flash-exp-image-generation"

// ErrNoAPIKey is returned when the generator has no Gemini key.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY is not configured")

// GeminiGenerator produces photos with Gemini image generation and returns
// them as data URLs.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator. An empty model selects
// DefaultImageModel.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultImageModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// RequestPhoto generates a selfie in mood. It returns "" when the model
// answered without an image.
func (g *GeminiGenerator) RequestPhoto(ctx context.Context, mood Mood) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(mood)),
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}})
	if err != nil {
		return "", fmt.Errorf("generate photo: %w", err)
	}
	return dataURL(resp), nil
}

func dataURL(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data)
	}
	return ""
}
