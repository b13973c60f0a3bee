package discogs

// Discogs API response types.

// SearchResponse is the top-level response from the search endpoint.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// SearchResult represents a single release search hit. Title is
// "Artist - Release title".
type SearchResult struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Year        string   `json:"year"`
	Country     string   `json:"country"`
	Label       []string `json:"label"`
	Catno       string   `json:"catno"`
	Barcode     []string `json:"barcode"`
	Format      []string `json:"format"`
	URI         string   `json:"uri"`
	ResourceURL string   `json:"resource_url"`
}

// Pagination holds pagination info.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// ReleaseDetail is the full release response.
type ReleaseDetail struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Year        int         `json:"year"`
	Country     string      `json:"country"`
	Artists     []ArtistRef `json:"artists"`
	Labels      []LabelRef  `json:"labels"`
	URI         string      `json:"uri"`
	NumForSale  int         `json:"num_for_sale"`
	LowestPrice *float64    `json:"lowest_price"`
}

// ArtistRef is an artist credit on a release.
type ArtistRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	ANV  string `json:"anv"`
	Join string `json:"join"`
}

// LabelRef is a label credit with its catalog number.
type LabelRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

// Price is an amount in a currency.
type Price struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// StatsResponse is the marketplace statistics for one release.
type StatsResponse struct {
	LowestPrice     *Price `json:"lowest_price"`
	NumForSale      int    `json:"num_for_sale"`
	BlockedFromSale bool   `json:"blocked_from_sale"`
}

// ListingsResponse is a page of marketplace listings for one release.
type ListingsResponse struct {
	Pagination Pagination `json:"pagination"`
	Listings   []Listing  `json:"listings"`
}

// Listing is one copy for sale.
type Listing struct {
	ID              int       `json:"id"`
	Status          string    `json:"status"`
	Condition       string    `json:"condition"`
	SleeveCondition string    `json:"sleeve_condition"`
	Price           Price     `json:"price"`
	ShipsFrom       string    `json:"ships_from"`
	Seller          SellerRef `json:"seller"`
	URI             string    `json:"uri"`
}

// SellerRef identifies a marketplace seller.
type SellerRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
