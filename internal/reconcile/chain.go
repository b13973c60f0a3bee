package reconcile

import (
	"context"
	"errors"

	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
)

// Catalog resolves identifiers to a single best candidate. A source that
// does not know the record returns *provider.ErrNotFound.
type Catalog interface {
	ByCatalogNumber(ctx context.Context, catno string) (*release.Candidate, error)
	ByBarcode(ctx context.Context, barcode string) (*release.Candidate, error)
	ByArtistAndTitle(ctx context.Context, artist, title string) (*release.Candidate, error)
}

// Strategy is one step of a fallback chain.
type Strategy struct {
	Name   release.Strategy
	Lookup func(ctx context.Context) (*release.Candidate, error)
}

// Chain returns the strategies q supplies, most specific first: catalog
// number, then barcode, then artist and album.
func Chain(q release.IdentifierQuery, c Catalog) []Strategy {
	var out []Strategy
	if q.CatalogNumber != "" {
		catno := q.CatalogNumber
		out = append(out, Strategy{
			Name:   release.StrategyCatalogNumber,
			Lookup: func(ctx context.Context) (*release.Candidate, error) { return c.ByCatalogNumber(ctx, catno) },
		})
	}
	if q.Barcode != "" {
		barcode := q.Barcode
		out = append(out, Strategy{
			Name:   release.StrategyBarcode,
			Lookup: func(ctx context.Context) (*release.Candidate, error) { return c.ByBarcode(ctx, barcode) },
		})
	}
	if q.HasArtistAlbum() {
		artist, album := q.Artist, q.Album
		out = append(out, Strategy{
			Name:   release.StrategyArtistAlbum,
			Lookup: func(ctx context.Context) (*release.Candidate, error) { return c.ByArtistAndTitle(ctx, artist, album) },
		})
	}
	return out
}

// FirstMatch runs strategies in order and returns the first candidate found
// with the name of the strategy that produced it. Not-found results move on
// to the next strategy; any other error stops the chain. An exhausted chain
// returns a nil candidate, StrategyNone and a nil error.
func FirstMatch(ctx context.Context, strategies []Strategy) (*release.Candidate, release.Strategy, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, release.StrategyNone, err
		}
		c, err := s.Lookup(ctx)
		if err == nil && c != nil {
			return c, s.Name, nil
		}
		var nf *provider.ErrNotFound
		if err != nil && !errors.As(err, &nf) {
			return nil, release.StrategyNone, err
		}
	}
	return nil, release.StrategyNone, nil
}
