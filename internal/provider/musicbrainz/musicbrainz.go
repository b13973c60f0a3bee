package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
	"github.com/sydlexius/spinmatch/internal/similarity"
	"github.com/sydlexius/spinmatch/internal/version"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	searchLimit    = "10"
)

// Adapter looks up releases in the MusicBrainz catalog.
type Adapter struct {
	caller    *gateway.Caller
	limiter   *provider.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	userAgent string
}

// Option customizes an Adapter.
type Option func(*adapterOptions)

type adapterOptions struct {
	client    *http.Client
	userAgent string
	gateway   []gateway.Option
}

// WithHTTPClient replaces the shared pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *adapterOptions) { o.client = c }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *adapterOptions) { o.userAgent = ua }
}

// WithGatewayOptions passes retry settings through to the gateway caller.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *adapterOptions) { o.gateway = append(o.gateway, opts...) }
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger, opts ...Option) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, opts...)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string, opts ...Option) *Adapter {
	o := adapterOptions{
		client:    provider.NewHTTPClient(10 * time.Second),
		userAgent: version.UserAgent(""),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger = logger.With(slog.String("provider", string(provider.NameMusicBrainz)))
	gwOpts := append([]gateway.Option{
		gateway.WithClassifier(gateway.ThrottleClassifier),
		gateway.WithLogger(logger),
	}, o.gateway...)
	return &Adapter{
		caller:    gateway.NewCaller(o.client, gwOpts...),
		limiter:   limiter,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: o.userAgent,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameMusicBrainz }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return false }

// ByCatalogNumber finds the release a label catalog number identifies.
func (a *Adapter) ByCatalogNumber(ctx context.Context, catno string) (*release.Candidate, error) {
	id := "catno:" + catno
	resp, err := a.search(ctx, "catno:"+quote(catno))
	if err != nil {
		return nil, a.fold(ctx, id, err)
	}
	best := pick(resp.Releases, func(r MBRelease) bool {
		for _, li := range r.LabelInfo {
			if compact(li.CatalogNumber) == compact(catno) {
				return true
			}
		}
		return false
	})
	if best == nil {
		return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: id}
	}
	return toCandidate(best), nil
}

// ByBarcode finds the release with the given UPC/EAN.
func (a *Adapter) ByBarcode(ctx context.Context, barcode string) (*release.Candidate, error) {
	id := "barcode:" + barcode
	resp, err := a.search(ctx, "barcode:"+quote(barcode))
	if err != nil {
		return nil, a.fold(ctx, id, err)
	}
	best := pick(resp.Releases, func(r MBRelease) bool {
		return strings.TrimLeft(r.Barcode, "0") == strings.TrimLeft(barcode, "0")
	})
	if best == nil {
		return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: id}
	}
	return toCandidate(best), nil
}

// ByArtistAndTitle searches by artist credit and release title and returns
// the hit whose "artist title" string is closest to the query.
func (a *Adapter) ByArtistAndTitle(ctx context.Context, artist, title string) (*release.Candidate, error) {
	id := "release:" + artist + " - " + title
	resp, err := a.search(ctx, "artist:"+quote(artist)+" AND release:"+quote(title))
	if err != nil {
		return nil, a.fold(ctx, id, err)
	}
	if len(resp.Releases) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: id}
	}
	names := make([]string, len(resp.Releases))
	for i := range resp.Releases {
		names[i] = creditName(resp.Releases[i].ArtistCredit) + " " + resp.Releases[i].Title
	}
	idx, score := similarity.Rank(artist+" "+title, names)
	a.logger.Debug("ranked search hits",
		slog.Int("hits", len(names)),
		slog.Int("best", idx),
		slog.Float64("score", score))
	return toCandidate(&resp.Releases[idx]), nil
}

// Release fetches a single release by MBID.
func (a *Adapter) Release(ctx context.Context, mbid string) (*release.Candidate, error) {
	params := url.Values{
		"inc": {"artist-credits+labels"},
		"fmt": {"json"},
	}
	reqURL := a.baseURL + "/release/" + url.PathEscape(mbid) + "?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, a.fold(ctx, mbid, err)
	}
	var r MBRelease
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, a.fold(ctx, mbid, fmt.Errorf("parsing release response: %w", err))
	}
	if r.ID == "" {
		return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: mbid}
	}
	return toCandidate(&r), nil
}

// TestConnection verifies connectivity to the MusicBrainz API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	params := url.Values{
		"query": {"test"},
		"fmt":   {"json"},
		"limit": {"1"},
	}
	_, err := a.doRequest(ctx, a.baseURL+"/release?"+params.Encode())
	return provider.Unavailable(provider.NameMusicBrainz, err)
}

func (a *Adapter) search(ctx context.Context, query string) (*ReleaseSearchResponse, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {searchLimit},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/release?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp ReleaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return &resp, nil
}

// doRequest executes an HTTP GET through the gateway, waiting on the
// MusicBrainz rate limiter before every attempt.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	resp, err := a.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		if err := a.limiter.Wait(ctx, provider.NameMusicBrainz); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", a.userAgent)
		req.Header.Set("Accept", "application/json")
		a.logger.Debug("requesting", slog.String("url", reqURL))
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// fold converts any lookup failure into ErrNotFound so the caller moves on
// to the next strategy. Cancellation and deadline expiry pass through.
func (a *Adapter) fold(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	a.logger.Debug("lookup failed", slog.String("id", id), slog.String("error", err.Error()))
	return &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: id, Reason: err.Error()}
}

// pick returns the first release satisfying match, else the top hit.
func pick(releases []MBRelease, match func(MBRelease) bool) *MBRelease {
	if len(releases) == 0 {
		return nil
	}
	for i := range releases {
		if match(releases[i]) {
			return &releases[i]
		}
	}
	return &releases[0]
}

func toCandidate(r *MBRelease) *release.Candidate {
	c := &release.Candidate{
		ExternalID: r.ID,
		Artist:     creditName(r.ArtistCredit),
		Title:      r.Title,
		Year:       parseYear(r.Date),
		Source:     string(provider.NameMusicBrainz),
	}
	for _, li := range r.LabelInfo {
		lc := release.LabelCatalog{CatalogNumber: li.CatalogNumber}
		if li.Label != nil {
			lc.Label = li.Label.Name
		}
		if lc.Label == "" && lc.CatalogNumber == "" {
			continue
		}
		c.Labels = append(c.Labels, lc)
	}
	if len(c.Labels) > 0 {
		c.Label = c.Labels[0].Label
		c.CatalogNumber = c.Labels[0].CatalogNumber
	}
	return c
}

// creditName joins a multi-artist credit the way MusicBrainz displays it.
func creditName(credits []MBArtistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// quote wraps a value as a Lucene phrase.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r != ' ' && r != '-' && r != '.' && r != '/' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
