package confidence

import (
	"testing"

	"github.com/sydlexius/spinmatch/internal/release"
)

var khruangbin = release.Candidate{
	ExternalID:    "mbid-universe",
	Artist:        "Khruangbin",
	Title:         "The Universe Smiles Upon You",
	Year:          2015,
	Label:         "Late Night Tales",
	CatalogNumber: "LITA 197",
}

func TestClassifyMilesDavis(t *testing.T) {
	q := release.IdentifierQuery{Artist: "Davis, Miles", Album: "kind of blue"}
	c := release.Candidate{Artist: "Miles Davis", Title: "Kind of Blue"}

	signals := Signals(q, c)
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].Field != release.FieldArtist || signals[0].Similarity < 0.5 {
		t.Errorf("expected artist similarity >= 0.5, got %+v", signals[0])
	}
	if signals[1].Field != release.FieldTitle || signals[1].Similarity < 0.9 {
		t.Errorf("expected title similarity >= 0.9, got %+v", signals[1])
	}

	v := Classify(q, c)
	if v.Confidence != release.ConfidenceHigh {
		t.Errorf("expected high confidence, got %s (%v / %v)", v.Confidence, v.MatchReasons, v.Warnings)
	}
	if !v.Verified {
		t.Error("expected verified")
	}
	if v.FoundArtist != "Miles Davis" || v.FoundTitle != "Kind of Blue" {
		t.Errorf("expected echoed fields, got %q / %q", v.FoundArtist, v.FoundTitle)
	}
}

func TestClassifyCatalogNumberOnly(t *testing.T) {
	v := Classify(release.IdentifierQuery{CatalogNumber: "LITA 197"}, khruangbin)
	if v.Confidence.Rank() < release.ConfidenceMedium.Rank() {
		t.Errorf("expected at least medium confidence, got %s", v.Confidence)
	}
	if !v.Verified {
		t.Error("expected verified")
	}
	if len(v.MatchReasons) == 0 || v.MatchReasons[0] != ReasonUniqueIdentifier {
		t.Errorf("expected unique identifier reason first, got %v", v.MatchReasons)
	}
}

func TestClassifyCompactCatalogNumber(t *testing.T) {
	v := Classify(release.IdentifierQuery{CatalogNumber: "lita-197"}, khruangbin)
	if len(v.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", v.Warnings)
	}
}

func TestClassifyCatalogNumberAgainstSecondaryLabel(t *testing.T) {
	c := khruangbin
	c.Labels = []release.LabelCatalog{{Label: "Late Night Tales", CatalogNumber: "ALNLP40"}}
	v := Classify(release.IdentifierQuery{CatalogNumber: "ALNLP40"}, c)
	if len(v.Warnings) != 0 {
		t.Errorf("expected secondary catalog number to match, got warnings %v", v.Warnings)
	}
}

func TestClassifyBarcodeOnlyNoComparableFields(t *testing.T) {
	v := Classify(release.IdentifierQuery{Barcode: "5060391090199"}, khruangbin)
	if v.Confidence != release.ConfidenceMedium {
		t.Errorf("expected medium, got %s", v.Confidence)
	}
	if len(v.MatchReasons) != 1 || v.MatchReasons[0] != ReasonUniqueIdentifier {
		t.Errorf("unexpected reasons: %v", v.MatchReasons)
	}
	if !v.Verified {
		t.Error("expected verified")
	}
}

func TestClassifyCatalogNumberMismatch(t *testing.T) {
	v := Classify(release.IdentifierQuery{CatalogNumber: "WARPLP 101"}, khruangbin)
	if v.Confidence != release.ConfidenceLow {
		t.Errorf("expected low, got %s", v.Confidence)
	}
	if v.Verified {
		t.Error("expected unverified")
	}
	if len(v.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", v.Warnings)
	}
}

func TestClassifyWrongArtist(t *testing.T) {
	q := release.IdentifierQuery{Artist: "Massive Attack", Album: "Mezzanine", Year: 1998}
	v := Classify(q, khruangbin)
	if v.Confidence != release.ConfidenceLow {
		t.Errorf("expected low, got %s", v.Confidence)
	}
	if v.Verified {
		t.Error("expected unverified")
	}
	if len(v.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", v.Warnings)
	}
}

func TestClassifyYear(t *testing.T) {
	cases := []struct {
		year     int
		strength release.Strength
	}{
		{2015, release.StrengthStrong},
		{2016, release.StrengthWeak},
		{2014, release.StrengthWeak},
		{2010, release.StrengthMismatch},
	}
	for _, c := range cases {
		signals := Signals(release.IdentifierQuery{Year: c.year}, khruangbin)
		if len(signals) != 1 || signals[0].Strength != c.strength {
			t.Errorf("year %d: expected %s, got %+v", c.year, c.strength, signals)
		}
	}
}

func TestClassifyFullMatchIsHigh(t *testing.T) {
	q := release.IdentifierQuery{
		Artist:        "Khruangbin",
		Album:         "The Universe Smiles Upon You",
		Year:          2015,
		CatalogNumber: "LITA 197",
	}
	v := Classify(q, khruangbin)
	if v.Confidence != release.ConfidenceHigh || !v.Verified {
		t.Errorf("expected verified high, got %+v", v)
	}
	if len(v.MatchReasons) != 4 {
		t.Errorf("expected 4 reasons, got %v", v.MatchReasons)
	}
}

func TestVerifiedImpliesNotLow(t *testing.T) {
	queries := []release.IdentifierQuery{
		{},
		{Barcode: "123"},
		{CatalogNumber: "LITA 197"},
		{CatalogNumber: "XYZ 1"},
		{Artist: "Khruangbin", Album: "Universe"},
		{Artist: "Khruangbin", Album: "Mordechai", Year: 2020},
		{Artist: "Someone", Album: "Else", Year: 1970, CatalogNumber: "ABC"},
		{Artist: "Khruangbin", Album: "The Universe Smiles Upon You", Year: 2013},
	}
	for _, q := range queries {
		v := Classify(q, khruangbin)
		if v.Verified && v.Confidence == release.ConfidenceLow {
			t.Errorf("query %+v: verified with low confidence", q)
		}
		if v.Verified && len(v.Warnings) > 1 {
			t.Errorf("query %+v: verified with %d warnings", q, len(v.Warnings))
		}
	}
}

func TestTierMonotonicInStrongSignals(t *testing.T) {
	strong := []release.MatchSignal{
		{Field: release.FieldArtist, Similarity: 1, Strength: release.StrengthStrong},
		{Field: release.FieldTitle, Similarity: 0.95, Strength: release.StrengthStrong},
		{Field: release.FieldYear, Similarity: 1, Strength: release.StrengthStrong},
		{Field: release.FieldCatalogNumber, Similarity: 1, Strength: release.StrengthStrong},
	}
	bases := [][]release.MatchSignal{
		nil,
		{{Field: release.FieldArtist, Similarity: 0.2, Strength: release.StrengthMismatch}},
		{{Field: release.FieldTitle, Similarity: 0.75, Strength: release.StrengthWeak}},
		{
			{Field: release.FieldArtist, Similarity: 0.72, Strength: release.StrengthWeak},
			{Field: release.FieldYear, Similarity: 0, Strength: release.StrengthMismatch},
		},
	}
	for bi, base := range bases {
		for _, add := range strong {
			before := Tier(base)
			grown := append(append([]release.MatchSignal{}, base...), add)
			after := Tier(grown)
			if after.Rank() < before.Rank() {
				t.Errorf("base %d + %s: tier dropped from %s to %s", bi, add.Field, before, after)
			}
		}
	}
}

func TestTier(t *testing.T) {
	weakArtist := release.MatchSignal{Field: release.FieldArtist, Similarity: 0.75, Strength: release.StrengthWeak}
	weakTitle := release.MatchSignal{Field: release.FieldTitle, Similarity: 0.8, Strength: release.StrengthWeak}
	strongYear := release.MatchSignal{Field: release.FieldYear, Similarity: 1, Strength: release.StrengthStrong}

	if got := Tier(nil); got != release.ConfidenceLow {
		t.Errorf("empty: expected low, got %s", got)
	}
	if got := Tier([]release.MatchSignal{strongYear}); got != release.ConfidenceLow {
		t.Errorf("one strong: expected low, got %s", got)
	}
	if got := Tier([]release.MatchSignal{weakArtist, weakTitle}); got != release.ConfidenceMedium {
		t.Errorf("two weak text: expected medium, got %s", got)
	}
	if got := Tier([]release.MatchSignal{strongYear, strongYear, strongYear}); got != release.ConfidenceHigh {
		t.Errorf("three strong: expected high, got %s", got)
	}
}

func TestManual(t *testing.T) {
	v := Manual(&khruangbin)
	if !v.Verified || v.Confidence != release.ConfidenceHigh {
		t.Errorf("expected verified high, got %+v", v)
	}
	if len(v.MatchReasons) != 1 || v.MatchReasons[0] != ReasonManual {
		t.Errorf("unexpected reasons: %v", v.MatchReasons)
	}
	if v.FoundCatalogNumber != "LITA 197" {
		t.Errorf("expected echoed catalog number, got %q", v.FoundCatalogNumber)
	}

	v = Manual(nil)
	if !v.Verified || v.FoundArtist != "" {
		t.Errorf("unexpected verification for nil candidate: %+v", v)
	}
}
