// Package suggest finds the closest known name for a misspelled identifier.
package suggest

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxDistance is the edit distance threshold used when none is
// configured.
const DefaultMaxDistance = 2

// Closest returns the candidate nearest to name by edit distance, compared
// case-insensitively, if that distance is at most maxDistance. The candidate
// is returned with its original casing.
//
// A candidate that differs only by underscores or doubled letters
// (userid vs user_id) counts as distance 1. Ties go to the candidate sharing
// the longest prefix with name, then to the earliest candidate, so the result
// is deterministic for a given candidate order. An exact case-insensitive
// match is not a suggestion.
func Closest(name string, candidates []string, maxDistance int) (string, bool) {
	if name == "" || maxDistance < 0 {
		return "", false
	}
	lower := strings.ToLower(name)
	norm := normalize(lower)

	best, bestDist, bestPrefix := "", maxDistance+1, -1
	for _, candidate := range candidates {
		candLower := strings.ToLower(candidate)
		if candLower == lower {
			continue
		}
		dist := Distance(lower, candLower)
		if dist > 1 && normalize(candLower) == norm {
			dist = 1
		}
		if dist > maxDistance {
			continue
		}
		prefix := commonPrefix(lower, candLower)
		if dist < bestDist || (dist == bestDist && prefix > bestPrefix) {
			best, bestDist, bestPrefix = candidate, dist, prefix
		}
	}
	return best, best != ""
}

// Distance is the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// normalize drops underscores and collapses repeated characters.
func normalize(s string) string {
	var sb strings.Builder
	var last rune = utf8.RuneError
	for _, r := range s {
		if r == '_' || r == last {
			continue
		}
		sb.WriteRune(r)
		last = r
	}
	return sb.String()
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
