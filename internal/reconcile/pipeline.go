// Package reconcile resolves a partial release description to a catalog
// record by walking an ordered fallback chain, classifies the match and
// attaches artwork.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sydlexius/spinmatch/internal/artwork"
	"github.com/sydlexius/spinmatch/internal/confidence"
	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
)

// DefaultTimeout bounds one reconciliation including artwork.
const DefaultTimeout = 90 * time.Second

// ArtFetcher returns the front cover of a release.
type ArtFetcher interface {
	FetchFront(ctx context.Context, externalID string) ([]byte, error)
}

// PortraitFetcher returns an image of the artist.
type PortraitFetcher interface {
	FetchPortrait(ctx context.Context, artist string) ([]byte, error)
}

// ReleaseFetcher is implemented by catalogs that can load a release by its
// external ID.
type ReleaseFetcher interface {
	Release(ctx context.Context, externalID string) (*release.Candidate, error)
}

// FieldOracle guesses missing fields from whatever the caller supplied,
// typically a photographed label.
type FieldOracle interface {
	Complete(ctx context.Context, q release.IdentifierQuery) (*release.Hints, error)
}

// Pipeline is stateless and safe for concurrent use.
type Pipeline struct {
	catalog   Catalog
	art       ArtFetcher
	portraits PortraitFetcher
	oracle    FieldOracle
	timeout   time.Duration
	logger    *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithArt enables release cover lookups.
func WithArt(a ArtFetcher) Option { return func(p *Pipeline) { p.art = a } }

// WithPortraits enables the artist portrait fallback.
func WithPortraits(f PortraitFetcher) Option { return func(p *Pipeline) { p.portraits = f } }

// WithOracle enables field hints for image-only queries that found nothing.
func WithOracle(o FieldOracle) Option { return func(p *Pipeline) { p.oracle = o } }

// WithTimeout sets the overall deadline of one reconciliation.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline over catalog.
func New(catalog Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog: catalog,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "reconcile"))
	return p
}

// Strategies returns the ordered lookup chain for q.
func (p *Pipeline) Strategies(q release.IdentifierQuery) []Strategy {
	return Chain(q.Normalized(), p.catalog)
}

// Reconcile resolves q. A nil Candidate in the result means no strategy
// found the release. Errors are reserved for invalid input (ErrInvalidQuery),
// deadline expiry (ErrTimeout), caller cancellation and terminal upstream
// failures such as authentication or quota errors.
func (p *Pipeline) Reconcile(ctx context.Context, q release.IdentifierQuery) (*release.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q = q.Normalized()

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	cand, strategy, err := FirstMatch(runCtx, Chain(q, p.catalog))
	if err != nil {
		return nil, p.terminal(ctx, runCtx, err)
	}

	result := &release.Result{SourceStrategy: release.StrategyNone}
	if cand == nil {
		result.Verification = release.Unmatched()
		if err := p.attachHints(runCtx, q, result); err != nil {
			return nil, p.terminal(ctx, runCtx, err)
		}
		p.logger.Info("no release found",
			slog.Bool("hints", result.Hints != nil),
			slog.Duration("elapsed", time.Since(start)))
		return result, nil
	}

	result.Candidate = cand
	result.SourceStrategy = strategy
	result.Verification = confidence.Classify(q, *cand)

	p.attachArt(runCtx, cand, result)
	if err := runCtx.Err(); err != nil {
		return nil, p.terminal(ctx, runCtx, err)
	}

	p.logger.Info("release reconciled",
		slog.String("strategy", string(strategy)),
		slog.String("external_id", cand.ExternalID),
		slog.String("confidence", string(result.Verification.Confidence)),
		slog.String("art", string(result.ArtSource)),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Select loads a release the caller picked by external ID. The result is
// marked as a manual selection; an unknown ID yields a nil Candidate.
func (p *Pipeline) Select(ctx context.Context, externalID string) (*release.Result, error) {
	fetcher, ok := p.catalog.(ReleaseFetcher)
	if !ok {
		return nil, errors.New("catalog cannot load releases by ID")
	}
	if externalID = strings.TrimSpace(externalID); externalID == "" {
		return nil, release.ErrInvalidQuery
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cand, err := fetcher.Release(runCtx, externalID)
	if err != nil {
		var nf *provider.ErrNotFound
		if errors.As(err, &nf) && runCtx.Err() == nil {
			p.logger.Info("selected release not found", slog.String("external_id", externalID))
			return &release.Result{Verification: release.Unmatched(), SourceStrategy: release.StrategyNone}, nil
		}
		return nil, p.terminal(ctx, runCtx, err)
	}

	result := &release.Result{
		Candidate:      cand,
		Verification:   confidence.Manual(cand),
		SourceStrategy: release.StrategyManual,
	}
	p.attachArt(runCtx, cand, result)
	if err := runCtx.Err(); err != nil {
		return nil, p.terminal(ctx, runCtx, err)
	}
	p.logger.Info("release selected",
		slog.String("external_id", cand.ExternalID),
		slog.String("art", string(result.ArtSource)))
	return result, nil
}

// attachArt tries the release cover, then the artist portrait. Failures are
// logged and ignored; a portrait never replaces a cover.
func (p *Pipeline) attachArt(ctx context.Context, c *release.Candidate, result *release.Result) {
	if p.art != nil && c.ExternalID != "" {
		data, err := p.art.FetchFront(ctx, c.ExternalID)
		if err == nil && len(data) > 0 {
			result.CoverArtBase64 = artwork.Base64(data)
			result.ArtSource = release.ArtFromRelease
			return
		}
		if err != nil {
			p.logger.Debug("no release cover", slog.String("external_id", c.ExternalID), slog.String("error", err.Error()))
		}
	}
	if ctx.Err() != nil || p.portraits == nil || c.Artist == "" {
		return
	}
	data, err := p.portraits.FetchPortrait(ctx, c.Artist)
	if err != nil {
		p.logger.Debug("no artist portrait", slog.String("artist", c.Artist), slog.String("error", err.Error()))
		return
	}
	if len(data) > 0 {
		result.CoverArtBase64 = artwork.Base64(data)
		result.ArtSource = release.ArtFromArtist
	}
}

// attachHints asks the oracle about label images nothing matched.
// Authentication and quota failures are returned so callers can act on
// them; other oracle failures only cost the hints.
func (p *Pipeline) attachHints(ctx context.Context, q release.IdentifierQuery, result *release.Result) error {
	if p.oracle == nil || len(q.LabelImage) == 0 {
		return nil
	}
	hints, err := p.oracle.Complete(ctx, q)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrAuthFailure), errors.Is(err, gateway.ErrQuotaExhausted):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}
		p.logger.Warn("field oracle failed", slog.String("error", err.Error()))
		return nil
	}
	if hints.Empty() {
		return nil
	}
	hints.Unverified = true
	result.Hints = hints
	return nil
}

// terminal distinguishes caller cancellation from deadline expiry.
func (p *Pipeline) terminal(parent, run context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			p.logger.Warn("caller deadline expired during reconciliation")
			return fmt.Errorf("reconcile: caller deadline: %w: %w", release.ErrTimeout, perr)
		}
		return perr
	}
	if run.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("reconciliation timed out", slog.Duration("timeout", p.timeout))
		return fmt.Errorf("reconcile after %s: %w", p.timeout, release.ErrTimeout)
	}
	return err
}
