// Package wikipedia fetches artist portraits from the encyclopedia's page
// summary API. It is only consulted when a release has no cover art.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/spinmatch/internal/artwork"
	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/version"
)

const defaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

// Summary is the subset of the page summary response used here.
type Summary struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Thumbnail     *Image `json:"thumbnail"`
	OriginalImage *Image `json:"originalimage"`
}

// Image is a rendition referenced by a summary.
type Image struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Adapter looks up artist portraits.
type Adapter struct {
	caller    *gateway.Caller
	limiter   *provider.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	userAgent string
}

// New creates a Wikipedia adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger, userAgent string, opts ...gateway.Option) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, userAgent, opts...)
}

// NewWithBaseURL creates a Wikipedia adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL, userAgent string, opts ...gateway.Option) *Adapter {
	if userAgent == "" {
		userAgent = version.UserAgent("")
	}
	logger = logger.With(slog.String("provider", string(provider.NameWikipedia)))
	return &Adapter{
		caller:    gateway.NewCaller(provider.NewHTTPClient(15*time.Second), append([]gateway.Option{gateway.WithLogger(logger)}, opts...)...),
		limiter:   limiter,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameWikipedia }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return false }

// FetchPortrait returns the lead image of the artist's encyclopedia page.
// Disambiguation pages and pages without an image are reported as not found.
func (a *Adapter) FetchPortrait(ctx context.Context, artist string) ([]byte, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, &provider.ErrNotFound{Provider: provider.NameWikipedia, ID: artist, Reason: "empty artist"}
	}

	body, err := a.get(ctx, a.baseURL+"/page/summary/"+pageTitle(artist), "application/json")
	if err != nil {
		return nil, a.notFound(artist, err)
	}
	var s Summary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, a.notFound(artist, fmt.Errorf("parsing summary: %w", err))
	}
	if s.Type == "disambiguation" {
		return nil, &provider.ErrNotFound{Provider: provider.NameWikipedia, ID: artist, Reason: "disambiguation page"}
	}

	src := ""
	switch {
	case s.Thumbnail != nil && s.Thumbnail.Source != "":
		src = s.Thumbnail.Source
	case s.OriginalImage != nil && s.OriginalImage.Source != "":
		src = s.OriginalImage.Source
	default:
		return nil, &provider.ErrNotFound{Provider: provider.NameWikipedia, ID: artist, Reason: "no page image"}
	}

	data, err := a.get(ctx, src, "image/*")
	if err != nil {
		return nil, a.notFound(artist, err)
	}
	if _, err := artwork.Validate(data); err != nil {
		return nil, a.notFound(artist, err)
	}
	return data, nil
}

// TestConnection verifies connectivity to the Wikipedia REST API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.get(ctx, a.baseURL+"/page/summary/Vinyl_record", "application/json")
	return provider.Unavailable(provider.NameWikipedia, err)
}

// pageTitle converts a display name to the underscore form used in URLs.
func pageTitle(name string) string {
	return url.PathEscape(strings.ReplaceAll(name, " ", "_"))
}

func (a *Adapter) get(ctx context.Context, reqURL, accept string) ([]byte, error) {
	resp, err := a.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		if err := a.limiter.Wait(ctx, provider.NameWikipedia); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", a.userAgent)
		req.Header.Set("Accept", accept)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Adapter) notFound(artist string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	a.logger.Debug("portrait lookup failed", slog.String("artist", artist), slog.String("error", err.Error()))
	return &provider.ErrNotFound{Provider: provider.NameWikipedia, ID: artist, Reason: err.Error()}
}
