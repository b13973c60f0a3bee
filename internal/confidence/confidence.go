// Package confidence decides how far a catalog candidate can be trusted to
// be the release the caller described.
package confidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/sydlexius/spinmatch/internal/release"
	"github.com/sydlexius/spinmatch/internal/similarity"
)

// Similarity thresholds for text fields.
const (
	StrongThreshold = 0.9
	WeakThreshold   = 0.7
)

// Reasons used when no fuzzy comparison decides the outcome.
const (
	ReasonUniqueIdentifier = "Resolved by unique identifier"
	ReasonManual           = "Manually selected"
)

// Classify compares the query with the candidate field by field and returns
// the resulting verification. It never fails: a query with nothing to compare
// yields a medium-confidence verification, because identifier lookups are
// more trustworthy than text searches.
func Classify(q release.IdentifierQuery, c release.Candidate) release.Verification {
	signals := Signals(q, c)
	v := echo(&c)

	if len(signals) == 0 {
		v.Confidence = release.ConfidenceMedium
		v.MatchReasons = []string{ReasonUniqueIdentifier}
		v.Warnings = []string{}
		v.Verified = true
		return v
	}

	for _, s := range signals {
		if s.Strength == release.StrengthMismatch {
			v.Warnings = append(v.Warnings, s.Note)
		} else {
			v.MatchReasons = append(v.MatchReasons, s.Note)
		}
	}

	v.Confidence = Tier(signals)
	if !q.HasTextFields() && len(v.Warnings) == 0 && v.Confidence == release.ConfidenceLow {
		v.Confidence = release.ConfidenceMedium
		v.MatchReasons = append([]string{ReasonUniqueIdentifier}, v.MatchReasons...)
	}
	v.Verified = v.Confidence != release.ConfidenceLow && len(v.Warnings) <= 1
	return v
}

// Manual is the verification for a release the user picked themselves. No
// heuristic is applied. c may be nil when the release details are unknown.
func Manual(c *release.Candidate) release.Verification {
	v := echo(c)
	v.Verified = true
	v.Confidence = release.ConfidenceHigh
	v.MatchReasons = []string{ReasonManual}
	v.Warnings = []string{}
	return v
}

// Tier derives the confidence tier from a set of signals. Three or more
// strong signals, or artist and title both at or above StrongThreshold, give
// high; two or more non-mismatch signals, or artist and title both at or
// above WeakThreshold, give medium; anything else is low. Adding a strong
// signal never lowers the tier.
func Tier(signals []release.MatchSignal) release.Confidence {
	strong, matched := 0, 0
	artist, title := -1.0, -1.0
	for _, s := range signals {
		switch s.Strength {
		case release.StrengthStrong:
			strong++
			matched++
		case release.StrengthWeak:
			matched++
		}
		switch s.Field {
		case release.FieldArtist:
			artist = math.Max(artist, s.Similarity)
		case release.FieldTitle:
			title = math.Max(title, s.Similarity)
		}
	}

	switch {
	case strong >= 3, artist >= StrongThreshold && title >= StrongThreshold:
		return release.ConfidenceHigh
	case matched >= 2, artist >= WeakThreshold && title >= WeakThreshold:
		return release.ConfidenceMedium
	default:
		return release.ConfidenceLow
	}
}

// Signals computes one MatchSignal per field present on both sides.
func Signals(q release.IdentifierQuery, c release.Candidate) []release.MatchSignal {
	var out []release.MatchSignal

	if a := strings.TrimSpace(q.Artist); a != "" {
		out = append(out, textSignal(release.FieldArtist, "Artist", a, c.Artist))
	}
	if t := strings.TrimSpace(q.Album); t != "" {
		out = append(out, textSignal(release.FieldTitle, "Title", t, c.Title))
	}
	if q.Year != 0 && c.Year != 0 {
		out = append(out, yearSignal(q.Year, c.Year))
	}
	if cn := strings.TrimSpace(q.CatalogNumber); cn != "" {
		if s, ok := catalogSignal(cn, c.CatalogNumbers()); ok {
			out = append(out, s)
		}
	}
	return out
}

func textSignal(field release.Field, label, want, got string) release.MatchSignal {
	score := similarity.Score(want, got)
	s := release.MatchSignal{Field: field, Similarity: score}
	switch {
	case score >= StrongThreshold:
		s.Strength = release.StrengthStrong
		s.Note = label + " matches"
	case score >= WeakThreshold:
		s.Strength = release.StrengthWeak
		s.Note = fmt.Sprintf("%s similar (%.0f%%)", label, score*100)
	default:
		s.Strength = release.StrengthMismatch
		s.Note = fmt.Sprintf("%s mismatch: expected %q, found %q", label, want, got)
	}
	return s
}

func yearSignal(want, got int) release.MatchSignal {
	s := release.MatchSignal{Field: release.FieldYear}
	switch diff := want - got; {
	case diff == 0:
		s.Similarity = 1
		s.Strength = release.StrengthStrong
		s.Note = "Year matches"
	case diff == 1 || diff == -1:
		s.Similarity = 0.5
		s.Strength = release.StrengthWeak
		s.Note = fmt.Sprintf("Year close (%d vs %d)", want, got)
	default:
		s.Strength = release.StrengthMismatch
		s.Note = fmt.Sprintf("Year mismatch: expected %d, found %d", want, got)
	}
	return s
}

// catalogSignal compares the query's catalog number against every catalog
// number advertised by the candidate. Spacing and punctuation are ignored
// as a second pass, so "LITA197" matches "LITA 197".
func catalogSignal(want string, have []string) (release.MatchSignal, bool) {
	if len(have) == 0 {
		return release.MatchSignal{}, false
	}
	best, bestHave := 0.0, have[0]
	for _, h := range have {
		score := math.Max(similarity.Score(want, h), similarity.Score(compact(want), compact(h)))
		if score > best {
			best, bestHave = score, h
		}
	}
	s := release.MatchSignal{Field: release.FieldCatalogNumber, Similarity: best}
	if best >= StrongThreshold {
		s.Strength = release.StrengthStrong
		s.Note = "Catalog number matches"
	} else {
		s.Strength = release.StrengthMismatch
		s.Note = fmt.Sprintf("Catalog number mismatch: expected %q, found %q", want, bestHave)
	}
	return s, true
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '_', '/':
			return -1
		}
		return r
	}, s)
}

func echo(c *release.Candidate) release.Verification {
	v := release.Verification{MatchReasons: []string{}, Warnings: []string{}}
	if c == nil {
		return v
	}
	v.FoundArtist = c.Artist
	v.FoundTitle = c.Title
	v.FoundYear = c.Year
	v.FoundLabel = c.Label
	v.FoundCatalogNumber = c.CatalogNumber
	return v
}
