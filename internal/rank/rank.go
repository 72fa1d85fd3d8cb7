// Package rank orders enriched postings for review. Hard filters remove
// postings that cannot qualify; soft preferences only affect ordering.
package rank

import (
	"regexp"
	"sort"
	"strings"

	"internhunter/internal/job"
)

// usStates covers the two-letter postal abbreviations that US postings use in
// "City, ST" locations. DC and the common territories included.
var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true,
}

var stateSuffixRe = regexp.MustCompile(`,\s*([A-Za-z]{2})\b`)

// Rank filters and orders postings: internships targeting Summer 2026 in a
// US or remote location, by relevance score descending, paid postings first
// at equal score, then most recently scraped. The result is a deterministic
// total order for any fixed input set.
func Rank(jobs []*job.Posting) []*job.Posting {
	eligible := make([]*job.Posting, 0, len(jobs))
	for _, p := range jobs {
		if Eligible(p) {
			eligible = append(eligible, p)
		}
	}

	// Pre-sort by ID so the stable sort's output does not depend on the
	// caller's insertion order.
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ID < eligible[j].ID
	})

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Enrichment.RelevanceScore != b.Enrichment.RelevanceScore {
			return a.Enrichment.RelevanceScore > b.Enrichment.RelevanceScore
		}
		aPaid := a.Enrichment.PaidFlag == job.PaidYes
		bPaid := b.Enrichment.PaidFlag == job.PaidYes
		if aPaid != bPaid {
			return aPaid
		}
		return a.ScrapedAt.After(b.ScrapedAt)
	})

	return eligible
}

// Eligible reports whether a posting passes every hard filter. Unenriched
// postings never pass.
func Eligible(p *job.Posting) bool {
	if p == nil || p.Enrichment == nil {
		return false
	}
	if !p.Enrichment.IsInternship || !p.Enrichment.IsSummer2026 {
		return false
	}
	return p.IsRemote || IsUSLocation(p.Location)
}

// IsUSLocation applies a lexical heuristic: an explicit country mention, a
// "City, ST" state suffix, or a remote-in-US marker.
func IsUSLocation(location string) bool {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return false
	}
	lower := strings.ToLower(loc)

	for _, marker := range []string{"united states", "usa", "u.s.", "remote (us)", "remote - us", "us-remote", "us remote"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	for _, m := range stateSuffixRe.FindAllStringSubmatch(loc, -1) {
		if usStates[strings.ToUpper(m[1])] {
			return true
		}
	}
	return false
}
