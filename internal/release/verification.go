package release

// Field identifies which part of a release a MatchSignal compares.
type Field string

// Comparable fields.
const (
	FieldArtist        Field = "artist"
	FieldTitle         Field = "title"
	FieldYear          Field = "year"
	FieldCatalogNumber Field = "catalogNumber"
)

// Strength buckets a signal by how much evidence it carries.
type Strength string

// Signal strengths.
const (
	StrengthStrong   Strength = "strong"
	StrengthWeak     Strength = "weak"
	StrengthMismatch Strength = "mismatch"
)

// MatchSignal is one field-level comparison between a query and a candidate.
type MatchSignal struct {
	Field      Field    `json:"field"`
	Similarity float64  `json:"similarity"`
	Strength   Strength `json:"strength"`
	Note       string   `json:"note"`
}

// Confidence is the qualitative tier of a match.
type Confidence string

// Confidence tiers, lowest first.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders tiers so they can be compared: low < medium < high.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Verification describes how much the engine trusts a candidate, with the
// candidate's fields echoed for display.
type Verification struct {
	Verified           bool       `json:"verified"`
	Confidence         Confidence `json:"confidence"`
	MatchReasons       []string   `json:"match_reasons"`
	Warnings           []string   `json:"warnings"`
	FoundArtist        string     `json:"found_artist,omitempty"`
	FoundTitle         string     `json:"found_title,omitempty"`
	FoundYear          int        `json:"found_year,omitempty"`
	FoundLabel         string     `json:"found_label,omitempty"`
	FoundCatalogNumber string     `json:"found_catalog_number,omitempty"`
}

// Unmatched is the verification attached to a result with no candidate.
func Unmatched() Verification {
	return Verification{
		Verified:     false,
		Confidence:   ConfidenceLow,
		MatchReasons: []string{},
		Warnings:     []string{"No matching release found"},
	}
}
