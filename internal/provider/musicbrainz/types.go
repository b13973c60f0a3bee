package musicbrainz

// MusicBrainz API response types.

// ReleaseSearchResponse is the top-level response from the release search endpoint.
type ReleaseSearchResponse struct {
	Created  string      `json:"created"`
	Count    int         `json:"count"`
	Offset   int         `json:"offset"`
	Releases []MBRelease `json:"releases"`
}

// MBRelease represents a MusicBrainz release entity.
type MBRelease struct {
	ID           string           `json:"id"`
	Score        int              `json:"score"`
	Title        string           `json:"title"`
	Status       string           `json:"status"`
	Date         string           `json:"date"`
	Country      string           `json:"country"`
	Barcode      string           `json:"barcode"`
	ArtistCredit []MBArtistCredit `json:"artist-credit"`
	LabelInfo    []MBLabelInfo    `json:"label-info"`
}

// MBArtistCredit is one credited artist with the phrase joining it to the next.
type MBArtistCredit struct {
	Name       string   `json:"name"`
	JoinPhrase string   `json:"joinphrase"`
	Artist     MBArtist `json:"artist"`
}

// MBArtist is the artist stub embedded in credits.
type MBArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

// MBLabelInfo pairs a label with the catalog number it assigned.
type MBLabelInfo struct {
	CatalogNumber string   `json:"catalog-number"`
	Label         *MBLabel `json:"label"`
}

// MBLabel represents a record label.
type MBLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
