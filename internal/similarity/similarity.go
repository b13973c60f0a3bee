// Package similarity scores how closely two free-text release fields agree.
//
// Score favours containment over edit distance: artist and album strings
// commonly differ by a subtitle, an edition marker in parentheses, or word
// order ("Davis, Miles" / "Miles Davis"), and those should still score high.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scores returned for the two non-token cases.
const (
	exactScore       = 1.0
	containmentScore = 0.9
)

// Normalize lower-cases s, folds diacritics ("Björk" -> "bjork"), trims it
// and collapses internal whitespace runs to a single space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Score compares a and b and returns a value in [0,1].
//
// After normalization an exact match scores 1.0 and containment in either
// direction scores 0.9. Otherwise both sides are split into whitespace token
// sets and the score is the fraction of tokens in the smaller set that are
// contained in (or contain) some token of the larger set. Empty input on one
// side scores 0.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return exactScore
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}

	small, large := tokenSet(na), tokenSet(nb)
	if len(large) < len(small) {
		small, large = large, small
	}
	if len(small) == 0 {
		return 0
	}

	matched := 0
	for _, s := range small {
		for _, l := range large {
			if strings.Contains(l, s) || strings.Contains(s, l) {
				matched++
				break
			}
		}
	}
	return clamp(float64(matched) / float64(len(small)))
}

// Rank returns the index of the candidate closest to query by Jaro-Winkler
// distance over normalized text, and that distance. It returns -1 when there
// are no candidates.
func Rank(query string, candidates []string) (int, float64) {
	best, bestScore := -1, -1.0
	nq := Normalize(query)
	jw := metrics.NewJaroWinkler()
	for i, c := range candidates {
		s := strutil.Similarity(nq, Normalize(c), jw)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, clamp(bestScore)
}

// tokenSet splits a normalized string into unique tokens, keeping order.
func tokenSet(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
