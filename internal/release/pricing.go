package release

// PriceMode says whether statistics were computed from itemized listings or
// copied from the marketplace's aggregate figures.
type PriceMode string

// Price modes.
const (
	ModeItemized  PriceMode = "itemized"
	ModeAggregate PriceMode = "aggregate"
)

// Listing is a single marketplace offer.
type Listing struct {
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Condition string  `json:"condition,omitempty"`
	ShipsFrom string  `json:"ships_from,omitempty"`
	Seller    string  `json:"seller,omitempty"`
	URL       string  `json:"url,omitempty"`
}

// PriceSummary is the normalized marketplace view of one release. Listings
// may be empty when the marketplace only exposes aggregate figures.
// LowestTotalPrice includes an estimated shipping cost; ShippingNote says so.
type PriceSummary struct {
	ReleaseID         string       `json:"release_id"`
	ReleaseURL        string       `json:"release_url"`
	LowestPrice       *float64     `json:"lowest_price,omitempty"`
	LowestTotalPrice  *float64     `json:"lowest_total_price,omitempty"`
	MedianPrice       *float64     `json:"median_price,omitempty"`
	HighestPrice      *float64     `json:"highest_price,omitempty"`
	Currency          string       `json:"currency"`
	NumForSale        int          `json:"num_for_sale"`
	Listings          []Listing    `json:"listings"`
	Mode              PriceMode    `json:"mode"`
	ShippingEstimated bool         `json:"shipping_estimated"`
	ShippingNote      string       `json:"shipping_note,omitempty"`
	Verification      Verification `json:"verification"`
}

// MarketStats is the aggregate marketplace view of a release, used when
// itemized listings are unavailable.
type MarketStats struct {
	LowestPrice *float64
	Currency    string
	NumForSale  int
}
