// Package fuzzy implements edit-distance tolerant substring containment over
// text that has already been canonicalized by package textnorm.
//
// Contains slides a needle-sized window across the haystack and computes a
// Levenshtein distance per window, so its cost is O(H·N²) for a haystack of
// H runes and a needle of N runes. That is acceptable for short chat
// messages checked against a bounded phrase catalog; it is not meant for
// bulk or adversarially long input, and callers should bound message length.
package fuzzy

import "strings"

// MaxTolerance caps the number of edits Contains will accept for any needle.
const MaxTolerance = 2

// ToleranceStep is the needle length, in runes, that earns one extra edit.
const ToleranceStep = 12

// EffectiveTolerance returns the edit budget Contains applies to a needle of
// needleLen runes: longer needles earn one extra edit per ToleranceStep
// runes, never exceeding MaxTolerance.
func EffectiveTolerance(baseTolerance, needleLen int) int {
	return min(max(baseTolerance, 0)+needleLen/ToleranceStep, MaxTolerance)
}

// Contains reports whether needle occurs in haystack within the effective
// edit tolerance. An empty needle never matches, and a haystack shorter
// than the needle has no window to compare.
func Contains(haystack, needle string, baseTolerance int) bool {
	if needle == "" {
		return false
	}
	if strings.Contains(haystack, needle) {
		return true
	}

	h := []rune(haystack)
	n := []rune(needle)
	if len(h) < len(n) {
		return false
	}

	tolerance := EffectiveTolerance(baseTolerance, len(n))
	if tolerance == 0 {
		return false
	}

	row := make([]int, len(n)+1)
	for i := 0; i+len(n) <= len(h); i++ {
		if distance(h[i:i+len(n)], n, row) <= tolerance {
			return true
		}
	}
	return false
}

// Distance returns the Levenshtein distance between a and b in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	return distance(ra, rb, make([]int, len(rb)+1))
}

// distance computes the edit distance with a single rolling row sized
// len(b)+1. The row is scratch space and is overwritten.
func distance(a, b []rune, row []int) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			above := row[j]
			row[j] = min(row[j]+1, row[j-1]+1, diag+cost)
			diag = above
		}
	}

	return row[len(b)]
}
