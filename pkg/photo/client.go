package photo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/chriscow/maya-go/pkg/version"
)

// Client requests photos from the photo endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient creates a client for the endpoint at url. A nil httpClient
// selects http.DefaultClient.
func NewClient(url, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, apiKey: apiKey, http: httpClient}
}

type photoRequest struct {
	Mood Mood `json:"mood"`
}

type photoResponse struct {
	ImageURL *string `json:"imageUrl"`
	Error    string  `json:"error,omitempty"`
}

// RequestPhoto posts the mood and returns the image URL, "" when the
// endpoint produced no image.
func (c *Client) RequestPhoto(ctx context.Context, mood Mood) (string, error) {
	body, err := sonic.Marshal(photoRequest{Mood: mood})
	if err != nil {
		return "", fmt.Errorf("encode photo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build photo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("photo request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read photo response: %w", err)
	}

	var pr photoResponse
	_ = sonic.Unmarshal(raw, &pr)
	if resp.StatusCode != http.StatusOK {
		if pr.Error != "" {
			return "", fmt.Errorf("photo endpoint returned status %d: %s", resp.StatusCode, pr.Error)
		}
		return "", fmt.Errorf("photo endpoint returned status %d", resp.StatusCode)
	}
	if pr.ImageURL == nil {
		return "", nil
	}
	return *pr.ImageURL, nil
}
