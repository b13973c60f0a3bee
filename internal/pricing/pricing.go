// Package pricing locates a release on the marketplace and summarizes what
// copies currently sell for.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/sydlexius/spinmatch/internal/confidence"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/reconcile"
	"github.com/sydlexius/spinmatch/internal/release"
)

// DefaultCurrency is the summary currency when none is configured.
const DefaultCurrency = "USD"

const (
	noteItemized  = "Estimated: shipping is approximated from each seller's country and is not a quote."
	noteAggregate = "Estimated: a flat shipping estimate is added because seller locations are not available."
	noteCurrency  = "No total: the marketplace reported prices in %s and shipping estimates are in %s."
)

// Marketplace is the search and sales API of a record marketplace.
type Marketplace interface {
	SearchByCatalogNumber(ctx context.Context, catno string) (*release.Candidate, error)
	SearchByBarcode(ctx context.Context, barcode string) (*release.Candidate, error)
	SearchByArtistAndTitle(ctx context.Context, artist, title string) (*release.Candidate, error)
	Release(ctx context.Context, id string) (*release.Candidate, error)
	ReleaseURL(id string) string
	Listings(ctx context.Context, id, currency string) ([]release.Listing, error)
	Stats(ctx context.Context, id, currency string) (*release.MarketStats, error)
}

// Pricer produces a price summary. Service implements it; caches wrap it.
type Pricer interface {
	PriceRelease(ctx context.Context, q release.IdentifierQuery, knownReleaseID string) (*release.PriceSummary, error)
}

// Service prices releases against one marketplace. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	market          Marketplace
	currency        string
	shipping        ShippingTable
	defaultShipping float64
	logger          *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithCurrency sets the summary currency.
func WithCurrency(code string) Option {
	return func(s *Service) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			s.currency = code
		}
	}
}

// WithShippingTable replaces the per-country estimates.
func WithShippingTable(t ShippingTable) Option {
	return func(s *Service) {
		if t != nil {
			s.shipping = t
		}
	}
}

// WithDefaultShipping sets the estimate for unknown origins.
func WithDefaultShipping(v float64) Option {
	return func(s *Service) {
		if v >= 0 {
			s.defaultShipping = v
		}
	}
}

// NewService creates a pricing service over market.
func NewService(market Marketplace, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		market:          market,
		currency:        DefaultCurrency,
		shipping:        DefaultShippingTable(),
		defaultShipping: DefaultShippingEstimate,
		logger:          logger.With(slog.String("component", "pricing")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Currency returns the summary currency.
func (s *Service) Currency() string { return s.currency }

// PriceRelease finds the release and summarizes its marketplace offers.
// When knownReleaseID is set the caller's choice is trusted and no matching
// is done. Returns release.ErrNotAvailable when the release cannot be found
// or the marketplace has no data for it.
func (s *Service) PriceRelease(ctx context.Context, q release.IdentifierQuery, knownReleaseID string) (*release.PriceSummary, error) {
	knownReleaseID = strings.TrimSpace(knownReleaseID)

	var (
		id           string
		verification release.Verification
	)
	if knownReleaseID != "" {
		id = knownReleaseID
		cand, err := s.market.Release(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug("release details unavailable", slog.String("release_id", id), slog.String("error", err.Error()))
			cand = nil
		}
		verification = confidence.Manual(cand)
	} else {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		q = q.Normalized()
		cand, strategy, err := reconcile.FirstMatch(ctx, reconcile.Chain(q, searchCatalog{s.market}))
		if err != nil {
			return nil, err
		}
		if cand == nil {
			return nil, fmt.Errorf("no marketplace release for query: %w", release.ErrNotAvailable)
		}
		id = cand.ExternalID
		verification = confidence.Classify(q, *cand)
		s.logger.Debug("marketplace release located",
			slog.String("release_id", id),
			slog.String("strategy", string(strategy)),
			slog.String("confidence", string(verification.Confidence)))
	}

	summary, err := s.summarize(ctx, id)
	if err != nil {
		return nil, err
	}
	summary.Verification = verification
	return summary, nil
}

// summarize prefers itemized listings and falls back to aggregate stats.
func (s *Service) summarize(ctx context.Context, id string) (*release.PriceSummary, error) {
	listings, err := s.market.Listings(ctx, id, s.currency)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var nf *provider.ErrNotFound
		if !errors.As(err, &nf) {
			s.logger.Warn("listings unavailable, using aggregate stats",
				slog.String("release_id", id),
				slog.String("error", err.Error()))
		}
	}
	if usable := s.inCurrency(listings); len(usable) > 0 {
		return s.itemized(id, usable), nil
	}

	stats, err := s.market.Stats(ctx, id, s.currency)
	if err != nil {
		var nf *provider.ErrNotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("release %s: %w", id, release.ErrNotAvailable)
		}
		return nil, err
	}
	return s.aggregate(id, stats), nil
}

func (s *Service) inCurrency(listings []release.Listing) []release.Listing {
	var out []release.Listing
	for _, l := range listings {
		if strings.EqualFold(l.Currency, s.currency) && l.Price > 0 {
			out = append(out, l)
		}
	}
	return out
}

func (s *Service) itemized(id string, listings []release.Listing) *release.PriceSummary {
	prices := make([]float64, len(listings))
	lowestTotal := math.Inf(1)
	for i, l := range listings {
		prices[i] = l.Price
		total := l.Price + s.shipping.Estimate(l.ShipsFrom, s.defaultShipping)
		if total < lowestTotal {
			lowestTotal = total
		}
	}
	slices.Sort(prices)

	return &release.PriceSummary{
		ReleaseID:         id,
		ReleaseURL:        s.market.ReleaseURL(id),
		LowestPrice:       money(prices[0]),
		LowestTotalPrice:  money(lowestTotal),
		MedianPrice:       money(Median(prices)),
		HighestPrice:      money(prices[len(prices)-1]),
		Currency:          s.currency,
		NumForSale:        len(listings),
		Listings:          listings,
		Mode:              release.ModeItemized,
		ShippingEstimated: true,
		ShippingNote:      noteItemized,
	}
}

func (s *Service) aggregate(id string, stats *release.MarketStats) *release.PriceSummary {
	currency := stats.Currency
	if currency == "" {
		currency = s.currency
	}
	summary := &release.PriceSummary{
		ReleaseID:  id,
		ReleaseURL: s.market.ReleaseURL(id),
		Currency:   currency,
		NumForSale: stats.NumForSale,
		Listings:   []release.Listing{},
		Mode:       release.ModeAggregate,
	}
	if stats.LowestPrice == nil {
		return summary
	}
	summary.LowestPrice = money(*stats.LowestPrice)
	if !strings.EqualFold(currency, s.currency) {
		s.logger.Debug("stats currency differs, shipping total skipped",
			slog.String("release_id", id),
			slog.String("currency", currency))
		summary.ShippingNote = fmt.Sprintf(noteCurrency, currency, s.currency)
		return summary
	}
	summary.LowestTotalPrice = money(*stats.LowestPrice + s.defaultShipping)
	summary.ShippingEstimated = true
	summary.ShippingNote = noteAggregate
	return summary
}

// Median returns the element at len/2 of sorted prices. For even lengths
// that is the upper of the two central values; no averaging is done.
func Median(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)/2]
}

// money rounds to cents.
func money(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}

// searchCatalog presents the marketplace search endpoints as a catalog so
// the reconciliation fallback chain can drive them.
type searchCatalog struct{ m Marketplace }

func (c searchCatalog) ByCatalogNumber(ctx context.Context, catno string) (*release.Candidate, error) {
	return c.m.SearchByCatalogNumber(ctx, catno)
}

func (c searchCatalog) ByBarcode(ctx context.Context, barcode string) (*release.Candidate, error) {
	return c.m.SearchByBarcode(ctx, barcode)
}

func (c searchCatalog) ByArtistAndTitle(ctx context.Context, artist, title string) (*release.Candidate, error) {
	return c.m.SearchByArtistAndTitle(ctx, artist, title)
}
