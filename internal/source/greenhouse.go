package source

import (
	"context"
	"fmt"
)

const (
	greenhouseAPIURL   = "https://boards-api.greenhouse.io/v1/boards"
	greenhouseBoardURL = "https://boards.greenhouse.io"
)

// Greenhouse fetches postings from the public Greenhouse Job Board API.
type Greenhouse struct {
	fetcher *Fetcher
	// APIURL is overridable for tests.
	APIURL string
}

func NewGreenhouse(fetcher *Fetcher) *Greenhouse {
	return &Greenhouse{fetcher: fetcher, APIURL: greenhouseAPIURL}
}

func (g *Greenhouse) Platform() Platform { return PlatformGreenhouse }

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Content     string `json:"content"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// Fetch returns all current postings for the board. The request asks for job
// content so descriptions arrive in the same call.
func (g *Greenhouse) Fetch(ctx context.Context, board Board) ([]RawJob, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", g.APIURL, board.Slug)

	var resp greenhouseResponse
	if err := g.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("greenhouse board %q: %w", board.Slug, err)
	}

	jobs := make([]RawJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		jobs = append(jobs, RawJob{
			Platform:        PlatformGreenhouse,
			Company:         board.Name,
			SourceJobID:     fmt.Sprintf("%d", j.ID),
			Title:           j.Title,
			Location:        j.Location.Name,
			ApplyURL:        j.AbsoluteURL,
			PostingURL:      fmt.Sprintf("%s/%s/jobs/%d", greenhouseBoardURL, board.Slug, j.ID),
			DescriptionHTML: j.Content,
			DatePosted:      j.UpdatedAt,
		})
	}
	return jobs, nil
}
