package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
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
	defaultBaseURL = "https://api.discogs.com"
	siteURL        = "https://www.discogs.com"
	searchPerPage  = "10"
	listingsLimit  = "100"
)

// Discogs appends " (2)" to disambiguate artists with the same name.
var disambiguationSuffix = regexp.MustCompile(`\s*\(\d+\)$`)

// Adapter searches the Discogs database and reads its marketplace.
type Adapter struct {
	caller    *gateway.Caller
	limiter   *provider.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

// New creates a Discogs adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger, token, userAgent string, opts ...gateway.Option) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, token, userAgent, opts...)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL, token, userAgent string, opts ...gateway.Option) *Adapter {
	if userAgent == "" {
		userAgent = version.UserAgent("")
	}
	logger = logger.With(slog.String("provider", string(provider.NameDiscogs)))
	gwOpts := append([]gateway.Option{
		gateway.WithClassifier(gateway.ThrottleClassifier),
		gateway.WithLogger(logger),
	}, opts...)
	return &Adapter{
		caller:    gateway.NewCaller(provider.NewHTTPClient(15*time.Second), gwOpts...),
		limiter:   limiter,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: userAgent,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameDiscogs }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchByCatalogNumber finds the release carrying the given catalog number.
func (a *Adapter) SearchByCatalogNumber(ctx context.Context, catno string) (*release.Candidate, error) {
	results, err := a.search(ctx, "catno:"+catno, url.Values{"catno": {catno}})
	if err != nil {
		return nil, err
	}
	want := compact(catno)
	for i := range results {
		if compact(results[i].Catno) == want {
			return toCandidate(&results[i]), nil
		}
	}
	return toCandidate(&results[0]), nil
}

// SearchByBarcode finds the release with the given UPC/EAN.
func (a *Adapter) SearchByBarcode(ctx context.Context, barcode string) (*release.Candidate, error) {
	results, err := a.search(ctx, "barcode:"+barcode, url.Values{"barcode": {barcode}})
	if err != nil {
		return nil, err
	}
	want := digits(barcode)
	for i := range results {
		for _, b := range results[i].Barcode {
			if digits(b) == want {
				return toCandidate(&results[i]), nil
			}
		}
	}
	return toCandidate(&results[0]), nil
}

// SearchByArtistAndTitle searches by artist and release title and returns
// the hit closest to the query.
func (a *Adapter) SearchByArtistAndTitle(ctx context.Context, artist, title string) (*release.Candidate, error) {
	results, err := a.search(ctx, "release:"+artist+" - "+title, url.Values{
		"artist":        {artist},
		"release_title": {title},
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(results))
	for i := range results {
		ar, ti := splitTitle(results[i].Title)
		names[i] = ar + " " + ti
	}
	idx, _ := similarity.Rank(artist+" "+title, names)
	return toCandidate(&results[idx]), nil
}

// Release fetches release details by Discogs release ID.
func (a *Adapter) Release(ctx context.Context, id string) (*release.Candidate, error) {
	body, err := a.doRequest(ctx, a.baseURL+"/releases/"+url.PathEscape(id))
	if err != nil {
		return nil, a.mapNotFound(id, err)
	}
	var d ReleaseDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("parsing release response: %w: %w", gateway.ErrRequestFailed, err)
	}
	c := &release.Candidate{
		ExternalID: strconv.Itoa(d.ID),
		Title:      d.Title,
		Year:       d.Year,
		Source:     string(provider.NameDiscogs),
	}
	var b strings.Builder
	for _, ar := range d.Artists {
		name := ar.ANV
		if name == "" {
			name = ar.Name
		}
		b.WriteString(cleanArtist(name))
		if ar.Join != "" {
			b.WriteString(" " + ar.Join + " ")
		}
	}
	c.Artist = strings.Join(strings.Fields(b.String()), " ")
	for _, l := range d.Labels {
		c.Labels = append(c.Labels, release.LabelCatalog{Label: cleanArtist(l.Name), CatalogNumber: l.Catno})
	}
	if len(c.Labels) > 0 {
		c.Label = c.Labels[0].Label
		c.CatalogNumber = c.Labels[0].CatalogNumber
	}
	return c, nil
}

// ReleaseURL returns the public page for a release.
func (a *Adapter) ReleaseURL(id string) string {
	return siteURL + "/release/" + url.PathEscape(id)
}

// Listings returns the copies for sale of a release. Endpoints that are not
// available to the configured account are reported as not found so callers
// can fall back to Stats.
func (a *Adapter) Listings(ctx context.Context, id, currency string) ([]release.Listing, error) {
	params := url.Values{
		"release_id": {id},
		"curr_abbr":  {currency},
		"status":     {"For Sale"},
		"per_page":   {listingsLimit},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/marketplace/listings?"+params.Encode())
	if err != nil {
		var se *gateway.StatusError
		if errors.As(err, &se) {
			switch se.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				return nil, &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: "listings:" + id, Reason: se.Error()}
			}
		}
		return nil, err
	}
	var resp ListingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing listings response: %w: %w", gateway.ErrRequestFailed, err)
	}
	out := make([]release.Listing, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if l.Status != "" && l.Status != "For Sale" {
			continue
		}
		out = append(out, release.Listing{
			Price:     l.Price.Value,
			Currency:  l.Price.Currency,
			Condition: l.Condition,
			ShipsFrom: l.ShipsFrom,
			Seller:    l.Seller.Username,
			URL:       l.URI,
		})
	}
	return out, nil
}

// Stats returns the aggregate marketplace statistics for a release.
func (a *Adapter) Stats(ctx context.Context, id, currency string) (*release.MarketStats, error) {
	params := url.Values{"curr_abbr": {currency}}
	body, err := a.doRequest(ctx, a.baseURL+"/marketplace/stats/"+url.PathEscape(id)+"?"+params.Encode())
	if err != nil {
		return nil, a.mapNotFound("stats:"+id, err)
	}
	var resp StatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing stats response: %w: %w", gateway.ErrRequestFailed, err)
	}
	s := &release.MarketStats{NumForSale: resp.NumForSale, Currency: currency}
	if resp.BlockedFromSale {
		s.NumForSale = 0
		return s, nil
	}
	if resp.LowestPrice != nil {
		v := resp.LowestPrice.Value
		s.LowestPrice = &v
		if resp.LowestPrice.Currency != "" {
			s.Currency = resp.LowestPrice.Currency
		}
	}
	return s, nil
}

// TestConnection verifies the personal access token is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.doRequest(ctx, a.baseURL+"/database/search?q=test&type=release&per_page=1")
	return provider.Unavailable(provider.NameDiscogs, err)
}

func (a *Adapter) search(ctx context.Context, id string, params url.Values) ([]SearchResult, error) {
	params.Set("type", "release")
	params.Set("per_page", searchPerPage)
	body, err := a.doRequest(ctx, a.baseURL+"/database/search?"+params.Encode())
	if err != nil {
		return nil, a.fold(ctx, id, err)
	}
	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, a.fold(ctx, id, fmt.Errorf("parsing search response: %w: %w", gateway.ErrRequestFailed, err))
	}
	if len(resp.Results) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: id}
	}
	return resp.Results, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if a.token == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	}
	resp, err := a.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		if err := a.limiter.Wait(ctx, provider.NameDiscogs); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Discogs token="+a.token)
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

// fold reports a failed search as a miss so the caller moves on to its next
// strategy. Credential, quota and context errors still stop the caller.
func (a *Adapter) fold(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gateway.ErrAuthFailure) || errors.Is(err, gateway.ErrQuotaExhausted) {
		return err
	}
	var nf *provider.ErrNotFound
	if errors.As(err, &nf) {
		return err
	}
	a.logger.Debug("search failed", slog.String("id", id), slog.String("error", err.Error()))
	return &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: id, Reason: err.Error()}
}

// mapNotFound turns a 404 into ErrNotFound and passes every other error through.
func (a *Adapter) mapNotFound(id string, err error) error {
	var se *gateway.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: id}
	}
	return err
}

func toCandidate(r *SearchResult) *release.Candidate {
	artist, title := splitTitle(r.Title)
	c := &release.Candidate{
		ExternalID:    strconv.Itoa(r.ID),
		Artist:        artist,
		Title:         title,
		CatalogNumber: r.Catno,
		Source:        string(provider.NameDiscogs),
	}
	if y, err := strconv.Atoi(strings.TrimSpace(r.Year)); err == nil {
		c.Year = y
	}
	if len(r.Label) > 0 {
		c.Label = r.Label[0]
	}
	if c.Label != "" || c.CatalogNumber != "" {
		c.Labels = []release.LabelCatalog{{Label: c.Label, CatalogNumber: c.CatalogNumber}}
	}
	return c
}

// splitTitle separates a search hit's "Artist - Title" string.
func splitTitle(s string) (artist, title string) {
	artist, title, ok := strings.Cut(s, " - ")
	if !ok {
		return "", strings.TrimSpace(s)
	}
	return cleanArtist(artist), strings.TrimSpace(title)
}

func cleanArtist(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "*")
	return disambiguationSuffix.ReplaceAllString(s, "")
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

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
