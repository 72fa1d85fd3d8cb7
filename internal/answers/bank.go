// Package answers implements the reusable answer bank for application form
// questions. Matching is fuzzy over normalized question text; answers only
// ever enter the bank through explicit user confirmation.
package answers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"internhunter/internal/store"
	"internhunter/internal/text"
)

// matchThreshold is the minimum similarity at which a stored question is
// considered the same question. Below it the bank reports no match rather
// than risking a wrong autofilled answer.
const matchThreshold = 0.72

// Match is a stored answer accepted for a new question.
type Match struct {
	Entry      *store.AnswerEntry
	Similarity float64
}

type Bank struct {
	store  *store.Store
	logger *zap.Logger
}

func New(s *store.Store, logger *zap.Logger) *Bank {
	return &Bank{store: s, logger: logger}
}

// FindMatch returns the best stored answer for the question, or nil when no
// entry clears the similarity threshold. Ties at equal similarity go to the
// most used entry, then the most recently used one.
func (b *Bank) FindMatch(ctx context.Context, question string) (*Match, error) {
	entries, err := b.store.ListAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	var best *Match
	for _, entry := range entries {
		sim := text.Similarity(question, entry.CanonicalQuestion)
		if sim < matchThreshold {
			continue
		}
		if best == nil || better(entry, sim, best) {
			best = &Match{Entry: entry, Similarity: sim}
		}
	}

	if best != nil {
		b.logger.Debug("answer bank hit",
			zap.String("question", question),
			zap.String("matched_question", best.Entry.CanonicalQuestion),
			zap.Float64("similarity", best.Similarity),
		)
	}
	return best, nil
}

// Use marks a matched entry as reused, bumping its usage stats.
func (b *Bank) Use(ctx context.Context, m *Match) error {
	if m == nil || m.Entry == nil {
		return nil
	}
	return b.store.TouchAnswer(ctx, m.Entry.ID)
}

// Record stores a confirmed question/answer pair. If the question fuzzily
// matches an existing entry, that entry is updated in place instead of
// growing a near-duplicate: the answer text is refreshed and the usage stats
// bumped, since the user just reused it. Otherwise a new entry is inserted.
func (b *Bank) Record(ctx context.Context, question, answer string) (*store.AnswerEntry, error) {
	match, err := b.FindMatch(ctx, question)
	if err != nil {
		return nil, err
	}

	if match != nil {
		if match.Entry.Answer != answer {
			if err := b.store.UpdateAnswer(ctx, match.Entry.ID, answer); err != nil {
				return nil, fmt.Errorf("update answer %d: %w", match.Entry.ID, err)
			}
			match.Entry.Answer = answer
		}
		if err := b.store.TouchAnswer(ctx, match.Entry.ID); err != nil {
			return nil, fmt.Errorf("touch answer %d: %w", match.Entry.ID, err)
		}
		match.Entry.UsageCount++
		return match.Entry, nil
	}

	entry, err := b.store.InsertAnswer(ctx, question, text.Signature(question), answer)
	if err != nil {
		return nil, fmt.Errorf("insert answer: %w", err)
	}
	return entry, nil
}

// better reports whether (entry, sim) should replace the current best match.
func better(entry *store.AnswerEntry, sim float64, best *Match) bool {
	if sim != best.Similarity {
		return sim > best.Similarity
	}
	if entry.UsageCount != best.Entry.UsageCount {
		return entry.UsageCount > best.Entry.UsageCount
	}
	switch {
	case entry.LastUsedAt == nil:
		return false
	case best.Entry.LastUsedAt == nil:
		return true
	default:
		return entry.LastUsedAt.After(*best.Entry.LastUsedAt)
	}
}
