package source

import (
	"context"
	"fmt"
	"time"
)

const leverAPIURL = "https://api.lever.co/v0/postings"

// Lever fetches postings from the public Lever Postings API.
type Lever struct {
	fetcher *Fetcher
	// APIURL is overridable for tests.
	APIURL string
}

func NewLever(fetcher *Fetcher) *Lever {
	return &Lever{fetcher: fetcher, APIURL: leverAPIURL}
}

func (l *Lever) Platform() Platform { return PlatformLever }

type leverJob struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	ApplyURL   string `json:"applyUrl"`
	CreatedAt  int64  `json:"createdAt"`
	Categories struct {
		Location   string `json:"location"`
		Department string `json:"department"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	DescriptionBody string `json:"description"`
	Additional      string `json:"additional"`
}

// Fetch returns all current postings for the board. Lever returns a bare JSON
// array in mode=json.
func (l *Lever) Fetch(ctx context.Context, board Board) ([]RawJob, error) {
	url := fmt.Sprintf("%s/%s?mode=json", l.APIURL, board.Slug)

	var postings []leverJob
	if err := l.fetcher.GetJSON(ctx, url, &postings); err != nil {
		return nil, fmt.Errorf("lever board %q: %w", board.Slug, err)
	}

	jobs := make([]RawJob, 0, len(postings))
	for _, p := range postings {
		applyURL := p.ApplyURL
		if applyURL == "" {
			applyURL = p.HostedURL
		}

		posted := ""
		if p.CreatedAt > 0 {
			posted = time.UnixMilli(p.CreatedAt).UTC().Format(time.RFC3339)
		}

		jobs = append(jobs, RawJob{
			Platform:        PlatformLever,
			Company:         board.Name,
			SourceJobID:     p.ID,
			Title:           p.Text,
			Location:        p.Categories.Location,
			ApplyURL:        applyURL,
			PostingURL:      p.HostedURL,
			DescriptionHTML: p.DescriptionBody + p.Additional,
			DatePosted:      posted,
		})
	}
	return jobs, nil
}
