// Package oracle asks an OpenAI-compatible chat completion gateway to guess
// the fields of a release from a photo of its label. Answers are hints only;
// nothing here checks them against a catalog.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sydlexius/spinmatch/internal/artwork"
	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

const systemPrompt = `You identify vinyl records and CDs from photos of their labels.
Respond with a single JSON object and nothing else, using these keys:
"artist", "album", "year" (number), "label", "catalog_number", "barcode",
"confidence" (0 to 1). Leave a key empty when you cannot read it. Never invent
catalog numbers or barcodes.`

// Config holds the gateway settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

// Client implements reconcile.FieldOracle against a chat completion API.
type Client struct {
	cfg    Config
	caller *gateway.Caller
	logger *slog.Logger
}

// New creates an oracle client. The API key is sent as a bearer token.
func New(cfg Config, logger *slog.Logger, opts ...gateway.Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model = strings.TrimSpace(cfg.Model); cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	logger = logger.With(slog.String("provider", string(provider.NameOracle)))

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}),
			Base:   provider.SharedTransport(),
		},
	}
	gwOpts := append([]gateway.Option{gateway.WithLogger(logger)}, opts...)
	return &Client{
		cfg:    cfg,
		caller: gateway.NewCaller(httpClient, gwOpts...),
		logger: logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() provider.ProviderName { return provider.NameOracle }

// RequiresAuth returns whether this provider needs an API key.
func (c *Client) RequiresAuth() bool { return true }

// Complete sends the known fields and the label image to the model and
// returns its guess. The result is always marked unverified.
func (c *Client) Complete(ctx context.Context, q release.IdentifierQuery) (*release.Hints, error) {
	if c.cfg.APIKey == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameOracle}
	}
	if len(q.LabelImage) == 0 {
		return nil, errors.New("oracle: label image required")
	}
	format, _, err := artwork.DetectFormat(bytes.NewReader(q.LabelImage))
	if err != nil {
		return nil, fmt.Errorf("oracle: label image: %w", err)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: knownFields(q)},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/" + format + ";base64," + artwork.Base64(q.LabelImage),
				}},
			}},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	body, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oracle: decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("oracle: api error: %s", strings.TrimSpace(resp.Error.Message))
	}
	content := resp.content()
	if content == "" {
		return nil, fmt.Errorf("oracle: empty completion (%s)", snippet(string(body)))
	}

	var guess hintsPayload
	if err := DecodeJSON(content, &guess); err != nil {
		return nil, fmt.Errorf("oracle: parse hints: %w", err)
	}
	hints := guess.toHints()
	c.logger.Debug("oracle hints", slog.Bool("empty", hints.Empty()), slog.Float64("confidence", hints.Confidence))
	return hints, nil
}

// TestConnection verifies the key by listing available models.
func (c *Client) TestConnection(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return &provider.ErrAuthRequired{Provider: provider.NameOracle}
	}
	_, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	})
	return provider.Unavailable(provider.NameOracle, err)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("oracle: encode request: %w", err)
	}
	resp, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Referer != "" {
			req.Header.Set("HTTP-Referer", c.cfg.Referer)
		}
		if c.cfg.Title != "" {
			req.Header.Set("X-Title", c.cfg.Title)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// knownFields describes what the caller already typed in, so the model can
// fill in only what is missing.
func knownFields(q release.IdentifierQuery) string {
	var b strings.Builder
	b.WriteString("Identify the release on this label.")
	add := func(name, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "\n%s: %s", name, v)
		}
	}
	add("Artist", q.Artist)
	add("Album", q.Album)
	add("Catalog number", q.CatalogNumber)
	add("Barcode", q.Barcode)
	if q.Year != 0 {
		add("Year", strconv.Itoa(q.Year))
	}
	return b.String()
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *chatResponse) content() string {
	for _, ch := range r.Choices {
		if s := strings.TrimSpace(ch.Message.Content); s != "" {
			return s
		}
		if s := strings.TrimSpace(ch.Text); s != "" {
			return s
		}
	}
	return ""
}

// hintsPayload tolerates models that quote numbers.
type hintsPayload struct {
	Artist        string          `json:"artist"`
	Album         string          `json:"album"`
	Year          json.RawMessage `json:"year"`
	Label         string          `json:"label"`
	CatalogNumber string          `json:"catalog_number"`
	Barcode       string          `json:"barcode"`
	Confidence    json.RawMessage `json:"confidence"`
}

func (p hintsPayload) toHints() *release.Hints {
	h := &release.Hints{
		Artist:        strings.TrimSpace(p.Artist),
		Album:         strings.TrimSpace(p.Album),
		Label:         strings.TrimSpace(p.Label),
		CatalogNumber: strings.TrimSpace(p.CatalogNumber),
		Barcode:       strings.TrimSpace(p.Barcode),
		Unverified:    true,
	}
	if y, err := strconv.Atoi(number(p.Year)); err == nil && y > 0 {
		h.Year = y
	}
	if f, err := strconv.ParseFloat(number(p.Confidence), 64); err == nil {
		h.Confidence = min(max(f, 0), 1)
	}
	return h
}

// number returns a JSON number or numeric string without quotes.
func number(raw json.RawMessage) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(string(raw)), `"`))
}
