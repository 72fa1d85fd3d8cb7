// Package source fetches raw job postings from public job-board APIs.
package source

import (
	"context"
)

// Platform names a supported job-board platform.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
)

// Board is one configured job board to poll: a company name plus the slug the
// platform API keys its listings by. Boards are versioned configuration data
// injected from the config file, never hardcoded.
type Board struct {
	Name     string   `mapstructure:"name"`
	Platform Platform `mapstructure:"platform"`
	Slug     string   `mapstructure:"slug"`
}

// RawJob is a posting exactly as a platform API returned it, before
// normalization. Fetching is side-effect-free: re-fetching a board yields the
// same RawJobs for unchanged listings.
type RawJob struct {
	Platform        Platform
	Company         string
	SourceJobID     string
	Title           string
	Location        string
	ApplyURL        string
	PostingURL      string
	DescriptionHTML string
	DatePosted      string
}

// Client fetches all current postings for one board.
type Client interface {
	Platform() Platform
	Fetch(ctx context.Context, board Board) ([]RawJob, error)
}
