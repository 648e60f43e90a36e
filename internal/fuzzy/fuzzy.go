// Package fuzzy scores approximate identifier matches for "did you mean"
// suggestions.
package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/dshills/docrag-mcp/pkg/types"
)

const containmentWeight = 0.9

// segmentSeparators split namespaced identifiers such as ext@Type.Method
const segmentSeparators = ".@/:"

// Similarity returns a score in [0,1] for how closely a matches b.
// Case-insensitive equality scores 1.0, containment scores
// 0.9*min(len)/max(len), anything else falls back to a normalized edit
// distance. For namespaced strings the last segment of each side is compared
// too and the higher score wins.
func Similarity(a, b string) float64 {
	best := similarity(a, b)

	sa, sb := lastSegment(a), lastSegment(b)
	if sa != a || sb != b {
		for _, pair := range [][2]string{{a, sb}, {sa, b}, {sa, sb}} {
			if s := similarity(pair[0], pair[1]); s > best {
				best = s
			}
		}
	}
	return best
}

func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentWeight * float64(shorter) / float64(longer)
	}

	dist := levenshtein.ComputeDistance(a, b)
	ratio := 1 - float64(dist)/float64(longer)
	if ratio < 0 {
		return 0
	}
	return ratio
}

func lastSegment(s string) string {
	i := strings.LastIndexAny(s, segmentSeparators)
	if i < 0 || i == len(s)-1 {
		return s
	}
	return s[i+1:]
}

// FindBestMatch returns the highest scoring candidate at or above threshold.
// Among equal scores a case-sensitive exact match wins, then candidate order.
func FindBestMatch(query string, candidates []string, threshold float64) (types.FuzzyMatch, bool) {
	var best types.FuzzyMatch
	found := false
	bestExact := false

	for _, c := range candidates {
		score := Similarity(query, c)
		if score < threshold {
			continue
		}
		exact := c == query
		if !found || score > best.Score || (score == best.Score && exact && !bestExact) {
			best = types.FuzzyMatch{Candidate: c, Score: score}
			bestExact = exact
			found = true
		}
	}
	return best, found
}

// FindBestMatches returns up to maxResults candidates at or above threshold,
// sorted by descending score. Equal scores keep candidate order.
// maxResults <= 0 returns every match.
func FindBestMatches(query string, candidates []string, threshold float64, maxResults int) []types.FuzzyMatch {
	matches := make([]types.FuzzyMatch, 0)
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if score := Similarity(query, c); score >= threshold {
			matches = append(matches, types.FuzzyMatch{Candidate: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}
