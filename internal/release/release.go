// Package release holds the value types that flow through reconciliation
// and pricing: the caller's partial query, the candidate records returned by
// catalogs, the verification block and the final result shapes.
package release

import (
	"strings"
)

// IdentifierQuery is the partial description of a physical release supplied
// by the caller. Year is zero when unknown.
type IdentifierQuery struct {
	Barcode       string `json:"barcode,omitempty"`
	CatalogNumber string `json:"catalog_number,omitempty"`
	Artist        string `json:"artist,omitempty"`
	Album         string `json:"album,omitempty"`
	Year          int    `json:"year,omitempty"`
	LabelImage    []byte `json:"label_image,omitempty"`
}

// Normalized returns a copy of q with surrounding whitespace removed from
// every text field.
func (q IdentifierQuery) Normalized() IdentifierQuery {
	return IdentifierQuery{
		Barcode:       strings.TrimSpace(q.Barcode),
		CatalogNumber: strings.TrimSpace(q.CatalogNumber),
		Artist:        strings.TrimSpace(q.Artist),
		Album:         strings.TrimSpace(q.Album),
		Year:          q.Year,
		LabelImage:    q.LabelImage,
	}
}

// HasArtistAlbum reports whether both free-text fields are present.
func (q IdentifierQuery) HasArtistAlbum() bool {
	return strings.TrimSpace(q.Artist) != "" && strings.TrimSpace(q.Album) != ""
}

// HasTextFields reports whether the query carries any field the classifier
// can compare against a candidate other than identifiers.
func (q IdentifierQuery) HasTextFields() bool {
	return strings.TrimSpace(q.Artist) != "" || strings.TrimSpace(q.Album) != "" || q.Year != 0
}

// Validate returns ErrInvalidQuery unless the query names at least a
// barcode, a catalog number, an artist and album pair, or a label image.
func (q IdentifierQuery) Validate() error {
	switch {
	case strings.TrimSpace(q.Barcode) != "":
		return nil
	case strings.TrimSpace(q.CatalogNumber) != "":
		return nil
	case q.HasArtistAlbum():
		return nil
	case len(q.LabelImage) > 0:
		return nil
	}
	return ErrInvalidQuery
}

// LabelCatalog is one label and catalog-number pair advertised for a release.
type LabelCatalog struct {
	Label         string `json:"label,omitempty"`
	CatalogNumber string `json:"catalog_number,omitempty"`
}

// Candidate is a release record found in an external catalog. Candidates are
// never modified once built; callers wrap them instead.
type Candidate struct {
	ExternalID    string         `json:"external_id"`
	Artist        string         `json:"artist"`
	Title         string         `json:"title"`
	Year          int            `json:"year,omitempty"`
	Label         string         `json:"label,omitempty"`
	CatalogNumber string         `json:"catalog_number,omitempty"`
	Labels        []LabelCatalog `json:"labels,omitempty"`
	Source        string         `json:"source,omitempty"`
}

// CatalogNumbers returns every catalog number known for the candidate,
// primary first, without duplicates.
func (c *Candidate) CatalogNumbers() []string {
	if c == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(c.CatalogNumber)
	for _, lc := range c.Labels {
		add(lc.CatalogNumber)
	}
	return out
}

// Strategy names the lookup that produced a reconciliation result.
type Strategy string

// Lookup strategies in the order the pipeline tries them.
const (
	StrategyCatalogNumber Strategy = "catalogNumber"
	StrategyBarcode       Strategy = "barcode"
	StrategyArtistAlbum   Strategy = "artistAlbum"
	StrategyManual        Strategy = "manual"
	StrategyNone          Strategy = "none"
)

// ArtSource records where attached artwork came from.
type ArtSource string

// Artwork sources. A portrait is only used when the release has no cover.
const (
	ArtFromRelease ArtSource = "release"
	ArtFromArtist  ArtSource = "artist"
)

// Result is the outcome of one reconciliation. Candidate is nil when every
// strategy came back empty; that is a normal result, not an error.
type Result struct {
	Candidate      *Candidate   `json:"candidate"`
	Verification   Verification `json:"verification"`
	CoverArtBase64 string       `json:"cover_art_base64,omitempty"`
	ArtSource      ArtSource    `json:"art_source,omitempty"`
	SourceStrategy Strategy     `json:"source_strategy"`
	Hints          *Hints       `json:"hints,omitempty"`
}

// Hints are best-effort guesses from the field-completion oracle. Every
// field is optional and none of it has been checked against a catalog.
type Hints struct {
	Artist        string  `json:"artist,omitempty"`
	Album         string  `json:"album,omitempty"`
	Year          int     `json:"year,omitempty"`
	Label         string  `json:"label,omitempty"`
	CatalogNumber string  `json:"catalog_number,omitempty"`
	Barcode       string  `json:"barcode,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Unverified    bool    `json:"unverified"`
}

// Empty reports whether the oracle produced nothing usable.
func (h *Hints) Empty() bool {
	if h == nil {
		return true
	}
	return h.Artist == "" && h.Album == "" && h.Year == 0 && h.Label == "" &&
		h.CatalogNumber == "" && h.Barcode == ""
}
