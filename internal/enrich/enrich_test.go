package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internhunter/internal/job"
)

const (
	validExtraction = `{
		"role_family": "SWE",
		"is_internship": true,
		"season": "Summer",
		"year": 2026,
		"paid_flag": "PAID",
		"requirements": ["CS degree in progress"],
		"preferred_skills": ["Go"],
		"keywords": ["backend"],
		"ai_confidence": 0.9
	}`
	validScoring = `{"relevance_score": 85, "rationale": "Strong skill overlap."}`
)

// stubProvider replays a scripted sequence of responses and records every
// prompt it is sent.
type stubProvider struct {
	responses []string
	err       error
	prompts   []string
}

func (s *stubProvider) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("stub exhausted")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *stubProvider) Model() string { return "stub-model" }

func testPosting() *job.Posting {
	return &job.Posting{
		ID:              "ab12cd34ef56ab12",
		Source:          job.SourceGreenhouse,
		Company:         "Stripe",
		Title:           "Software Engineering Intern",
		Location:        "San Francisco, CA",
		DescriptionText: "Summer 2026 internship on the payments backend team.",
	}
}

func TestEnrichHappyPath(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{responses: []string{validExtraction, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), `{"skills": ["Go"]}`, 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)

	require.Equal(t, job.RoleSWE, enrichment.RoleFamily)
	require.True(t, enrichment.IsInternship)
	require.NotNil(t, enrichment.Season)
	require.Equal(t, job.SeasonSummer, *enrichment.Season)
	require.NotNil(t, enrichment.Year)
	require.Equal(t, 2026, *enrichment.Year)
	require.True(t, enrichment.IsSummer2026)
	require.Equal(t, job.PaidYes, enrichment.PaidFlag)
	require.Equal(t, 85.0, enrichment.RelevanceScore)
	require.Equal(t, 0.9, enrichment.AIConfidence)
	require.Equal(t, "stub-model", enrichment.AIModelUsed)

	require.Len(t, stub.prompts, 2)
	require.Contains(t, stub.prompts[0], "Software Engineering Intern")
	require.Contains(t, stub.prompts[1], `"skills": ["Go"]`)
}

func TestEnrichStripsCodeFences(t *testing.T) {
	t.Parallel()

	fenced := "```json\n" + validExtraction + "\n```"
	stub := &stubProvider{responses: []string{fenced, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Equal(t, job.RoleSWE, enrichment.RoleFamily)
	require.Len(t, stub.prompts, 2)
}

func TestEnrichRepairsMalformedOutput(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{responses: []string{
		"Sure! Here is the classification you asked for.",
		validExtraction,
		validScoring,
	}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Equal(t, job.RoleSWE, enrichment.RoleFamily)

	// Extract, repair re-prompt, score.
	require.Len(t, stub.prompts, 3)
	require.Contains(t, stub.prompts[1], "previous response was rejected")
	require.Contains(t, stub.prompts[1], "Sure! Here is the classification")
}

func TestEnrichFailsAfterTwoBadResponses(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{responses: []string{"not json", "still not json"}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.ErrorIs(t, err, ErrUnusableOutput)
	require.Nil(t, enrichment)
	require.Len(t, stub.prompts, 2)
}

func TestEnrichRejectsInvalidRoleFamily(t *testing.T) {
	t.Parallel()

	bad := strings.Replace(validExtraction, `"SWE"`, `"WIZARD"`, 1)
	stub := &stubProvider{responses: []string{bad, bad}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	_, err := engine.Enrich(context.Background(), testPosting())
	require.ErrorIs(t, err, ErrUnusableOutput)
	require.Contains(t, stub.prompts[1], "invalid role_family")
}

func TestEnrichRejectsExtractionMissingRequiredKeys(t *testing.T) {
	t.Parallel()

	// Valid JSON, but is_internship and ai_confidence were omitted. Without a
	// presence check these would decode as false/0 and be stored as if the
	// model reported them.
	missing := `{
		"role_family": "SWE",
		"season": "Summer",
		"year": 2026,
		"paid_flag": "PAID",
		"requirements": [],
		"preferred_skills": [],
		"keywords": []
	}`
	stub := &stubProvider{responses: []string{missing, validExtraction, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.True(t, enrichment.IsInternship)
	require.Equal(t, 0.9, enrichment.AIConfidence)

	// Extract, repair re-prompt, score.
	require.Len(t, stub.prompts, 3)
	require.Contains(t, stub.prompts[1], "missing is_internship")

	stub = &stubProvider{responses: []string{missing, missing}}
	engine = NewEngine(stub, zap.NewNop(), "{}", 0)
	_, err = engine.Enrich(context.Background(), testPosting())
	require.ErrorIs(t, err, ErrUnusableOutput)
}

func TestEnrichAcceptsNullSeasonAndYearKeys(t *testing.T) {
	t.Parallel()

	ext := strings.Replace(validExtraction, `"season": "Summer"`, `"season": null`, 1)
	ext = strings.Replace(ext, `"year": 2026`, `"year": null`, 1)
	stub := &stubProvider{responses: []string{ext, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Nil(t, enrichment.Season)
	require.Nil(t, enrichment.Year)
	require.False(t, enrichment.IsSummer2026)
	require.Len(t, stub.prompts, 2)
}

func TestEnrichClampsOutOfRangeNumbers(t *testing.T) {
	t.Parallel()

	ext := strings.Replace(validExtraction, `"ai_confidence": 0.9`, `"ai_confidence": 3.5`, 1)
	sc := `{"relevance_score": 250, "rationale": "off the chart"}`
	stub := &stubProvider{responses: []string{ext, sc}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Equal(t, 1.0, enrichment.AIConfidence)
	require.Equal(t, 100.0, enrichment.RelevanceScore)
}

func TestEnrichDropsNonFourDigitYear(t *testing.T) {
	t.Parallel()

	ext := strings.Replace(validExtraction, `"year": 2026`, `"year": 26`, 1)
	stub := &stubProvider{responses: []string{ext, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Nil(t, enrichment.Year)
	require.False(t, enrichment.IsSummer2026)
}

func TestEnrichDerivesSummer2026Strictly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(string) string
		want   bool
	}{
		{"summer 2026", func(s string) string { return s }, true},
		{"fall 2026", func(s string) string { return strings.Replace(s, `"Summer"`, `"Fall"`, 1) }, false},
		{"summer 2025", func(s string) string { return strings.Replace(s, `"year": 2026`, `"year": 2025`, 1) }, false},
		{"no season", func(s string) string { return strings.Replace(s, `"season": "Summer"`, `"season": null`, 1) }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubProvider{responses: []string{tc.mutate(validExtraction), validScoring}}
			engine := NewEngine(stub, zap.NewNop(), "{}", 0)

			enrichment, err := engine.Enrich(context.Background(), testPosting())
			require.NoError(t, err)
			require.Equal(t, tc.want, enrichment.IsSummer2026)
		})
	}
}

func TestEnrichTolerantNumberDecoding(t *testing.T) {
	t.Parallel()

	// Models sometimes emit numbers as strings.
	ext := strings.Replace(validExtraction, `"ai_confidence": 0.9`, `"ai_confidence": "0.75"`, 1)
	stub := &stubProvider{responses: []string{ext, validScoring}}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	enrichment, err := engine.Enrich(context.Background(), testPosting())
	require.NoError(t, err)
	require.Equal(t, 0.75, enrichment.AIConfidence)
}

func TestEnrichPropagatesProviderError(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{err: errors.New("quota exceeded")}
	engine := NewEngine(stub, zap.NewNop(), "{}", 0)

	_, err := engine.Enrich(context.Background(), testPosting())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnusableOutput)
	require.Contains(t, err.Error(), "quota exceeded")
}
