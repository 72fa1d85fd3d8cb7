// Package text provides the normalized-text similarity measure used by the
// deduplicator's heuristic match and the answer bank's fuzzy lookup.
package text

import (
	"regexp"
	"sort"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Signature returns a stable normalized-token signature: the sorted unique
// tokens of the normalized text. Stored alongside answers so matching does
// not re-normalize historical entries with newer rules.
func Signature(s string) string {
	tokens := strings.Fields(Normalize(s))
	seen := make(map[string]struct{}, len(tokens))
	uniq := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		uniq = append(uniq, tok)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}

// Jaccard is the token-set overlap of the two normalized strings.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Ratio is a character-level similarity of the two normalized strings:
// 2*LCS/(len(a)+len(b)), the classic sequence-matcher shape.
func Ratio(a, b string) float64 {
	ra := []rune(Normalize(a))
	rb := []rune(Normalize(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Single-row LCS table; questions and titles are short.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// Similarity combines both measures, taking the higher of the two. Token
// overlap tolerates reordering, the character ratio tolerates small edits.
func Similarity(a, b string) float64 {
	j := Jaccard(a, b)
	r := Ratio(a, b)
	if j > r {
		return j
	}
	return r
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(Normalize(s)) {
		set[tok] = struct{}{}
	}
	return set
}
