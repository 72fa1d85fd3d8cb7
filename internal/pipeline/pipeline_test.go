package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internhunter/internal/enrich"
	"internhunter/internal/source"
	"internhunter/internal/store"
)

const (
	stubExtraction = `{
		"role_family": "SWE",
		"is_internship": true,
		"season": "Summer",
		"year": 2026,
		"paid_flag": "PAID",
		"requirements": [],
		"preferred_skills": [],
		"keywords": [],
		"ai_confidence": 0.9
	}`
	stubScoring = `{"relevance_score": 80, "rationale": "good fit"}`
)

// stubClient serves canned raw jobs for one platform.
type stubClient struct {
	platform source.Platform
	jobs     []source.RawJob
	err      error
}

func (c *stubClient) Platform() source.Platform { return c.platform }

func (c *stubClient) Fetch(_ context.Context, _ source.Board) ([]source.RawJob, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.jobs, nil
}

// routingProvider answers extract and score prompts by shape, so it stays
// deterministic when jobs are enriched concurrently.
type routingProvider struct {
	mu       sync.Mutex
	calls    int
	badJSON  bool
	badCalls int
}

func (p *routingProvider) Complete(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	p.calls++
	bad := p.badJSON && p.calls <= p.badCalls
	p.mu.Unlock()

	if bad {
		return "this is not json", nil
	}
	if strings.Contains(prompt, "relevance_score") && strings.Contains(prompt, "Candidate profile") {
		return stubScoring, nil
	}
	return stubExtraction, nil
}

func (p *routingProvider) Model() string { return "stub-model" }

func rawJob(id int, title string) source.RawJob {
	return source.RawJob{
		Platform:        source.PlatformGreenhouse,
		Company:         "Stripe",
		SourceJobID:     fmt.Sprintf("%d", id),
		Title:           title,
		Location:        "San Francisco, CA",
		ApplyURL:        fmt.Sprintf("https://boards.greenhouse.io/stripe/jobs/%d", id),
		PostingURL:      fmt.Sprintf("https://boards.greenhouse.io/stripe/jobs/%d", id),
		DescriptionHTML: "<p>Summer 2026 internship on the payments team.</p>",
		DatePosted:      "2026-08-01T10:00:00Z",
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "internhunter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func boards() []source.Board {
	return []source.Board{{Name: "Stripe", Platform: source.PlatformGreenhouse, Slug: "stripe"}}
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern"), rawJob(2, "Backend Intern")},
	}
	p := New([]source.Client{client}, s, nil, zap.NewNop(), Config{})
	ctx := context.Background()

	first, err := p.Run(ctx, boards())
	require.NoError(t, err)
	require.Equal(t, 2, first.NewJobs)
	require.Empty(t, first.Errors)

	second, err := p.Run(ctx, boards())
	require.NoError(t, err)
	require.Equal(t, 0, second.NewJobs)
	require.Equal(t, 2, second.Duplicates)
}

func TestRunUpdatesChangedPosting(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern")},
	}
	p := New([]source.Client{client}, s, nil, zap.NewNop(), Config{})
	ctx := context.Background()

	_, err := p.Run(ctx, boards())
	require.NoError(t, err)

	changed := rawJob(1, "Software Engineering Intern")
	changed.DescriptionHTML = "<p>Now with relocation support.</p>"
	client.jobs = []source.RawJob{changed}

	second, err := p.Run(ctx, boards())
	require.NoError(t, err)
	require.Equal(t, 0, second.NewJobs)
	require.Equal(t, 1, second.UpdatedJobs)
}

func TestRunEnrichesNewJobs(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern"), rawJob(2, "Quant Research Intern")},
	}
	engine := enrich.NewEngine(&routingProvider{}, zap.NewNop(), "{}", 0)
	p := New([]source.Client{client}, s, engine, zap.NewNop(), Config{})

	summary, err := p.Run(context.Background(), boards())
	require.NoError(t, err)
	require.Equal(t, 2, summary.EnrichedJobs)
	require.Empty(t, summary.Errors)

	enriched, err := s.ListEnriched(context.Background())
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	for _, j := range enriched {
		require.NotNil(t, j.Enrichment)
		require.True(t, j.Enrichment.IsSummer2026)
	}
}

func TestRunKeywordPrefilterSkipsNonInternships(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern"), rawJob(2, "Staff Accountant")},
	}
	engine := enrich.NewEngine(&routingProvider{}, zap.NewNop(), "{}", 0)
	p := New([]source.Client{client}, s, engine, zap.NewNop(), Config{})

	summary, err := p.Run(context.Background(), boards())
	require.NoError(t, err)
	require.Equal(t, 1, summary.EnrichedJobs)
	require.Equal(t, 1, summary.Skipped)

	// The skipped posting stays visible with nil enrichment.
	pending, err := s.ListUnenriched(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Staff Accountant", pending[0].Title)
}

func TestRunEnrichAllDisablesPrefilter(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Staff Accountant")},
	}
	engine := enrich.NewEngine(&routingProvider{}, zap.NewNop(), "{}", 0)
	p := New([]source.Client{client}, s, engine, zap.NewNop(), Config{EnrichAll: true})

	summary, err := p.Run(context.Background(), boards())
	require.NoError(t, err)
	require.Equal(t, 1, summary.EnrichedJobs)
	require.Equal(t, 0, summary.Skipped)
}

func TestRunRecordsFetchFailureAndCompletes(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	failing := &stubClient{platform: source.PlatformGreenhouse, err: errors.New("api down")}
	working := &stubClient{
		platform: source.PlatformLever,
		jobs: []source.RawJob{{
			Platform:        source.PlatformLever,
			Company:         "Figma",
			SourceJobID:     "abc",
			Title:           "Product Engineering Intern",
			Location:        "New York, NY",
			ApplyURL:        "https://jobs.lever.co/figma/abc",
			PostingURL:      "https://jobs.lever.co/figma/abc",
			DescriptionHTML: "<p>Internship.</p>",
		}},
	}
	p := New([]source.Client{failing, working}, s, nil, zap.NewNop(), Config{})

	allBoards := []source.Board{
		{Name: "Stripe", Platform: source.PlatformGreenhouse, Slug: "stripe"},
		{Name: "Figma", Platform: source.PlatformLever, Slug: "figma"},
	}
	summary, err := p.Run(context.Background(), allBoards)
	require.NoError(t, err)
	require.Equal(t, 1, summary.NewJobs)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, "fetch", summary.Errors[0].Stage)
	require.Equal(t, "Stripe", summary.Errors[0].Board)

	rec, err := s.GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.NotNil(t, rec.EndedAt)
	require.Len(t, rec.Errors, 1)
}

func TestRunSurfacesCrossSourceRelistings(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	greenhouse := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern")},
	}
	lever := &stubClient{
		platform: source.PlatformLever,
		jobs: []source.RawJob{{
			Platform:        source.PlatformLever,
			Company:         "Stripe",
			SourceJobID:     "abc",
			Title:           "Software Engineering Intern",
			Location:        "San Francisco, CA",
			ApplyURL:        "https://jobs.lever.co/stripe/abc",
			PostingURL:      "https://jobs.lever.co/stripe/abc",
			DescriptionHTML: "<p>Summer 2026 internship on the payments team.</p>",
		}},
	}
	ctx := context.Background()

	first := New([]source.Client{greenhouse}, s, nil, zap.NewNop(), Config{})
	_, err := first.Run(ctx, boards())
	require.NoError(t, err)

	stored, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	second := New([]source.Client{lever}, s, nil, zap.NewNop(), Config{})
	summary, err := second.Run(ctx, []source.Board{
		{Name: "Stripe", Platform: source.PlatformLever, Slug: "stripe"},
	})
	require.NoError(t, err)

	// Both listings are kept; the match is surfaced for review.
	require.Equal(t, 1, summary.NewJobs)
	require.Len(t, summary.Relistings, 1)
	require.Equal(t, stored[0].ID, summary.Relistings[0].MatchedJobID)
	require.GreaterOrEqual(t, summary.Relistings[0].Similarity, 0.85)

	rec, err := s.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	require.Len(t, rec.Relistings, 1)
	require.Equal(t, stored[0].ID, rec.Relistings[0].MatchedJobID)
}

func TestRunMarksUnusableEnrichmentFailed(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	client := &stubClient{
		platform: source.PlatformGreenhouse,
		jobs:     []source.RawJob{rawJob(1, "Software Engineering Intern")},
	}
	// Both the initial prompt and the repair re-prompt return garbage.
	provider := &routingProvider{badJSON: true, badCalls: 2}
	engine := enrich.NewEngine(provider, zap.NewNop(), "{}", 0)
	p := New([]source.Client{client}, s, engine, zap.NewNop(), Config{})
	ctx := context.Background()

	summary, err := p.Run(ctx, boards())
	require.NoError(t, err)
	require.Equal(t, 0, summary.EnrichedJobs)
	require.Equal(t, 1, summary.FailedEnrichments)
	require.NotEmpty(t, summary.Errors)

	// Failed jobs are not retried on the next run.
	pending, err := s.ListUnenriched(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].EnrichmentFailed)
	require.Nil(t, jobs[0].Enrichment)
}

func TestLooksLikeInternship(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  bool
	}{
		{"Software Engineering Intern", true},
		{"2026 Summer Internship - Backend", true},
		{"Engineering Co-op", true},
		{"Investment Banking Summer Analyst", true},
		{"Senior Software Engineer", false},
		{"Staff Accountant", false},
		{"International Sales Lead", true}, // lexical false positive, caught by enrichment
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LooksLikeInternship(tc.title), tc.title)
	}
}
