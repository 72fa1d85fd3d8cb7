package job

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"internhunter/internal/source"
)

// NormalizationError reports a raw posting that cannot become a canonical
// record. Such postings are dropped and counted as run errors, never stored.
type NormalizationError struct {
	Field string
	Board string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize posting from %s: missing required field %q", e.Board, e.Field)
}

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// Normalize maps a raw posting into the canonical record. It is deterministic:
// the same raw input always yields the same job ID and field values, which the
// deduplicator and idempotent re-runs depend on. ScrapedAt is the only
// call-dependent field.
func Normalize(raw source.RawJob, now time.Time) (*Posting, error) {
	company := strings.TrimSpace(raw.Company)
	title := strings.TrimSpace(raw.Title)
	applyURL := strings.TrimSpace(raw.ApplyURL)

	if company == "" {
		return nil, &NormalizationError{Field: "company", Board: raw.Company}
	}
	if title == "" {
		return nil, &NormalizationError{Field: "title", Board: raw.Company}
	}
	if applyURL == "" {
		return nil, &NormalizationError{Field: "apply_url", Board: raw.Company}
	}

	src := Source(raw.Platform)
	location := strings.TrimSpace(raw.Location)

	return &Posting{
		ID:              ComputeID(src, raw.SourceJobID, applyURL),
		Source:          src,
		SourceJobID:     raw.SourceJobID,
		Company:         company,
		Title:           title,
		Location:        location,
		IsRemote:        looksRemote(location, title),
		ApplyURL:        applyURL,
		PostingURL:      strings.TrimSpace(raw.PostingURL),
		DescriptionHTML: raw.DescriptionHTML,
		DescriptionText: CleanDescription(raw.DescriptionHTML),
		DatePosted:      strings.TrimSpace(raw.DatePosted),
		ScrapedAt:       now.UTC(),
	}, nil
}

// CleanDescription converts description HTML into readable plain text. Markup
// is collapsed, whitespace normalized, nothing truncated.
func CleanDescription(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	text, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		// Fall back to raw text with tags stripped naively.
		text = regexp.MustCompile(`<[^>]*>`).ReplaceAllString(html, " ")
	}

	text = spaces.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func looksRemote(location, title string) bool {
	haystack := strings.ToLower(location + " " + title)
	return strings.Contains(haystack, "remote")
}
