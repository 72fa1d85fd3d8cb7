package answers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internhunter/internal/store"
)

func newTestBank(t *testing.T) (*Bank, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "internhunter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, zap.NewNop()), s
}

func TestFindMatchOnRephrasedQuestion(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t)
	ctx := context.Background()

	_, err := b.Record(ctx, "What's your availability?", "Summer 2026, June through August")
	require.NoError(t, err)

	match, err := b.FindMatch(ctx, "What is your availability")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "Summer 2026, June through August", match.Entry.Answer)
	require.GreaterOrEqual(t, match.Similarity, matchThreshold)
}

func TestFindMatchRejectsUnrelatedQuestion(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t)
	ctx := context.Background()

	_, err := b.Record(ctx, "What's your availability?", "Summer 2026")
	require.NoError(t, err)

	match, err := b.FindMatch(ctx, "Why do you want to work here?")
	require.NoError(t, err)
	require.Nil(t, match)
}

func TestFindMatchEmptyBank(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t)
	match, err := b.FindMatch(context.Background(), "Do you require sponsorship?")
	require.NoError(t, err)
	require.Nil(t, match)
}

func TestRecordUpdatesNearDuplicateInPlace(t *testing.T) {
	t.Parallel()

	b, s := newTestBank(t)
	ctx := context.Background()

	first, err := b.Record(ctx, "Do you require visa sponsorship?", "No")
	require.NoError(t, err)

	second, err := b.Record(ctx, "Do you require visa sponsorship now or in the future?", "No, I do not")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	entries, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "No, I do not", entries[0].Answer)
	// Canonical question stays as originally recorded.
	require.Equal(t, "Do you require visa sponsorship?", entries[0].CanonicalQuestion)
	// The upsert counts as a reuse of the existing entry.
	require.Equal(t, 1, entries[0].UsageCount)
	require.NotNil(t, entries[0].LastUsedAt)
}

func TestRecordUpsertBumpsUsageWithUnchangedAnswer(t *testing.T) {
	t.Parallel()

	b, s := newTestBank(t)
	ctx := context.Background()

	_, err := b.Record(ctx, "Do you require visa sponsorship?", "No")
	require.NoError(t, err)

	second, err := b.Record(ctx, "Do you require visa sponsorship now or in the future?", "No")
	require.NoError(t, err)
	require.Equal(t, 1, second.UsageCount)

	entries, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, entries[0].UsageCount)
}

func TestRecordInsertsDistinctQuestions(t *testing.T) {
	t.Parallel()

	b, s := newTestBank(t)
	ctx := context.Background()

	_, err := b.Record(ctx, "What's your availability?", "Summer 2026")
	require.NoError(t, err)
	_, err = b.Record(ctx, "Why do you want to work here?", "I admire the engineering culture")
	require.NoError(t, err)

	entries, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestUseBumpsUsageStats(t *testing.T) {
	t.Parallel()

	b, s := newTestBank(t)
	ctx := context.Background()

	_, err := b.Record(ctx, "What's your availability?", "Summer 2026")
	require.NoError(t, err)

	match, err := b.FindMatch(ctx, "What's your availability?")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.NoError(t, b.Use(ctx, match))

	entries, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, entries[0].UsageCount)
	require.NotNil(t, entries[0].LastUsedAt)
}

func TestTiesPreferMostUsedEntry(t *testing.T) {
	t.Parallel()

	b, s := newTestBank(t)
	ctx := context.Background()

	// Two distinct stored questions that both clear the threshold for the
	// lookup. The heavily used one must win.
	rare, err := s.InsertAnswer(ctx, "Are you authorized to work in the United States?",
		"authorized work united states", "Yes")
	require.NoError(t, err)
	frequent, err := s.InsertAnswer(ctx, "Are you authorized to work in the United States of America?",
		"america authorized work united states", "Yes, fully authorized")
	require.NoError(t, err)
	_ = rare

	for i := 0; i < 3; i++ {
		require.NoError(t, s.TouchAnswer(ctx, frequent.ID))
	}

	match, err := b.FindMatch(ctx, "Are you authorized to work in the United States of America?")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, frequent.ID, match.Entry.ID)
}
