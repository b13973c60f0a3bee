package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sydlexius/spinmatch/internal/release"
)

// queryFlags are the identifier flags shared by reconcile and price.
type queryFlags struct {
	barcode    string
	catno      string
	artist     string
	album      string
	year       int
	labelImage string
}

func (f *queryFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.barcode, "barcode", "", "UPC/EAN barcode digits")
	fl.StringVar(&f.catno, "catno", "", "Catalog number printed on the sleeve or label")
	fl.StringVar(&f.artist, "artist", "", "Artist name")
	fl.StringVar(&f.album, "album", "", "Album title")
	fl.IntVar(&f.year, "year", 0, "Release year")
	fl.StringVar(&f.labelImage, "label-image", "", "Path to a photo of the record label")
}

func (f *queryFlags) query() (release.IdentifierQuery, error) {
	q := release.IdentifierQuery{
		Barcode:       f.barcode,
		CatalogNumber: f.catno,
		Artist:        f.artist,
		Album:         f.album,
		Year:          f.year,
	}
	if f.labelImage != "" {
		data, err := os.ReadFile(f.labelImage) //nolint:gosec // operator-supplied path
		if err != nil {
			return q, fmt.Errorf("reading label image: %w", err)
		}
		q.LabelImage = data
	}
	return q, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
