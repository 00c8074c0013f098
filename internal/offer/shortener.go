package offer

//go:generate mockgen -source=shortener.go -destination=mocks/shortener_mock.go -package=mocks Shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Shortener maps a long invitation URL to a short redirect URL. Implementations
// never fail: any problem yields the input URL.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// ShortenerClient calls the dev server's shorten endpoint.
type ShortenerClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewShortenerClient(baseURL string, client *http.Client, logger *slog.Logger) *ShortenerClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShortenerClient{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, logger: logger}
}

type shortenRequest struct {
	InvitationURL string `json:"invitationUrl"`
	Persistent    bool   `json:"persistent"`
}

type shortenResponse struct {
	ShortenedURL string `json:"shortenedUrl"`
}

func (s *ShortenerClient) Shorten(ctx context.Context, longURL string) string {
	short, err := s.shorten(ctx, longURL)
	if err != nil {
		s.logger.WarnContext(ctx, "url shortening failed, using full url", "error", err)
		return longURL
	}
	return short
}

func (s *ShortenerClient) shorten(ctx context.Context, longURL string) (string, error) {
	body, err := json.Marshal(shortenRequest{InvitationURL: longURL, Persistent: true})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/shorten-invitation", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("shorten returned status %d", resp.StatusCode)
	}
	var out shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode shorten response: %w", err)
	}
	if out.ShortenedURL == "" {
		return "", fmt.Errorf("shorten response has no shortenedUrl")
	}
	return out.ShortenedURL, nil
}

// NoopShortener returns every URL unchanged.
type NoopShortener struct{}

func (NoopShortener) Shorten(_ context.Context, longURL string) string { return longURL }
