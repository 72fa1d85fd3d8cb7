package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"internhunter/internal/job"
)

func enriched(id string, score float64, paid job.PaidFlag, scrapedAt time.Time) *job.Posting {
	season := job.SeasonSummer
	year := 2026
	e := &job.Enrichment{
		RoleFamily:     job.RoleSWE,
		IsInternship:   true,
		Season:         &season,
		Year:           &year,
		PaidFlag:       paid,
		RelevanceScore: score,
	}
	e.DeriveSummer2026()
	return &job.Posting{
		ID:         id,
		Company:    "Acme",
		Title:      "Software Engineering Intern",
		Location:   "New York, NY",
		ScrapedAt:  scrapedAt,
		Enrichment: e,
	}
}

func TestRankPaidBeatsUnpaidAtEqualScore(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	jobs := []*job.Posting{
		enriched("aaa", 90, job.PaidNo, now),
		enriched("bbb", 90, job.PaidYes, now),
		enriched("ccc", 70, job.PaidYes, now),
	}

	ranked := Rank(jobs)
	require.Len(t, ranked, 3)
	require.Equal(t, "bbb", ranked[0].ID)
	require.Equal(t, "aaa", ranked[1].ID)
	require.Equal(t, "ccc", ranked[2].ID)
}

func TestRankScoreDescThenNewerFirst(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	jobs := []*job.Posting{
		enriched("old", 80, job.PaidYes, now.Add(-48*time.Hour)),
		enriched("new", 80, job.PaidYes, now),
		enriched("top", 95, job.PaidUnknown, now.Add(-72*time.Hour)),
	}

	ranked := Rank(jobs)
	require.Equal(t, []string{"top", "new", "old"}, ids(ranked))
}

func TestRankDeterministicAcrossInsertionOrder(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	a := enriched("aaa", 80, job.PaidYes, now)
	b := enriched("bbb", 80, job.PaidYes, now)
	c := enriched("ccc", 80, job.PaidYes, now)

	first := ids(Rank([]*job.Posting{a, b, c}))
	second := ids(Rank([]*job.Posting{c, a, b}))
	require.Equal(t, first, second)
	require.Equal(t, []string{"aaa", "bbb", "ccc"}, first)
}

func TestRankExcludesNonSummer2026(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	keep := enriched("keep", 50, job.PaidYes, now)

	wrongSeason := enriched("fall", 99, job.PaidYes, now)
	fall := job.SeasonFall
	wrongSeason.Enrichment.Season = &fall
	wrongSeason.Enrichment.DeriveSummer2026()

	notInternship := enriched("ft", 99, job.PaidYes, now)
	notInternship.Enrichment.IsInternship = false

	unenriched := &job.Posting{ID: "raw", Location: "New York, NY", ScrapedAt: now}

	ranked := Rank([]*job.Posting{keep, wrongSeason, notInternship, unenriched})
	require.Equal(t, []string{"keep"}, ids(ranked))
}

func TestRankExcludesNonUSNonRemote(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	london := enriched("ldn", 99, job.PaidYes, now)
	london.Location = "London, UK"

	remote := enriched("rem", 50, job.PaidYes, now)
	remote.Location = "Anywhere"
	remote.IsRemote = true

	ranked := Rank([]*job.Posting{london, remote})
	require.Equal(t, []string{"rem"}, ids(ranked))
}

func TestIsUSLocation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		location string
		want     bool
	}{
		{"San Francisco, CA", true},
		{"New York, NY (Hybrid)", true},
		{"Remote - US", true},
		{"United States", true},
		{"Washington, DC", true},
		{"London, UK", false},
		{"Toronto, ON", false},
		{"", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, IsUSLocation(tc.location), tc.location)
	}
}

func ids(jobs []*job.Posting) []string {
	out := make([]string, 0, len(jobs))
	for _, p := range jobs {
		out = append(out, p.ID)
	}
	return out
}
