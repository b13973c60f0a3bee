// Package coverart fetches front covers from the Cover Art Archive.
package coverart

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

const defaultBaseURL = "https://coverartarchive.org"

// Thumbnail sizes in order of preference. "500" is the medium rendition.
var thumbnailPreference = []string{"500", "large", "1200"}

// CAAResponse is the listing returned by /release/{mbid}.
type CAAResponse struct {
	Release string     `json:"release"`
	Images  []CAAImage `json:"images"`
}

// CAAImage is one uploaded image for a release.
type CAAImage struct {
	ID         json.Number       `json:"id"`
	Front      bool              `json:"front"`
	Back       bool              `json:"back"`
	Approved   bool              `json:"approved"`
	Types      []string          `json:"types"`
	Image      string            `json:"image"`
	Thumbnails map[string]string `json:"thumbnails"`
}

// Adapter downloads release artwork.
type Adapter struct {
	caller    *gateway.Caller
	limiter   *provider.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	userAgent string
	maxDim    int
}

// New creates a Cover Art Archive adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger, userAgent string, maxDim int, opts ...gateway.Option) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, userAgent, maxDim, opts...)
}

// NewWithBaseURL creates a Cover Art Archive adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL, userAgent string, maxDim int, opts ...gateway.Option) *Adapter {
	if userAgent == "" {
		userAgent = version.UserAgent("")
	}
	logger = logger.With(slog.String("provider", string(provider.NameCoverArtArchive)))
	gwOpts := append([]gateway.Option{
		gateway.WithClassifier(gateway.ThrottleClassifier),
		gateway.WithLogger(logger),
	}, opts...)
	return &Adapter{
		caller:    gateway.NewCaller(provider.NewHTTPClient(20*time.Second), gwOpts...),
		limiter:   limiter,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		maxDim:    maxDim,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameCoverArtArchive }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return false }

// FetchFront returns the front cover of a MusicBrainz release. The image
// listing is inspected first so nothing is downloaded unless a front image
// exists. The downloaded bytes are validated as an image.
func (a *Adapter) FetchFront(ctx context.Context, mbid string) ([]byte, error) {
	body, err := a.get(ctx, a.baseURL+"/release/"+url.PathEscape(mbid), "application/json")
	if err != nil {
		return nil, a.notFound(mbid, err)
	}

	var listing CAAResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, a.notFound(mbid, fmt.Errorf("parsing image listing: %w", err))
	}

	imageURL := frontURL(listing.Images)
	if imageURL == "" {
		return nil, &provider.ErrNotFound{Provider: provider.NameCoverArtArchive, ID: mbid, Reason: "no front image"}
	}

	data, err := a.get(ctx, imageURL, "image/*")
	if err != nil {
		return nil, a.notFound(mbid, err)
	}
	data, info, err := artwork.Fit(data, a.maxDim)
	if err != nil {
		return nil, a.notFound(mbid, err)
	}
	a.logger.Debug("fetched front cover",
		slog.String("mbid", mbid),
		slog.String("format", info.Format),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height))
	return data, nil
}

// TestConnection verifies connectivity to the Cover Art Archive.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.get(ctx, a.baseURL+"/", "text/html")
	return provider.Unavailable(provider.NameCoverArtArchive, err)
}

// frontURL picks the best rendition of the image flagged front.
func frontURL(images []CAAImage) string {
	for _, img := range images {
		if !img.Front {
			continue
		}
		for _, size := range thumbnailPreference {
			if u := img.Thumbnails[size]; u != "" {
				return u
			}
		}
		return img.Image
	}
	return ""
}

func (a *Adapter) get(ctx context.Context, reqURL, accept string) ([]byte, error) {
	resp, err := a.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		if err := a.limiter.Wait(ctx, provider.NameCoverArtArchive); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", a.userAgent)
		req.Header.Set("Accept", accept)
		a.logger.Debug("requesting", slog.String("url", reqURL))
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Adapter) notFound(mbid string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &provider.ErrNotFound{Provider: provider.NameCoverArtArchive, ID: mbid, Reason: err.Error()}
}
