// Package dedup decides whether a normalized posting is new, an update of a
// stored job, or a duplicate.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"internhunter/internal/job"
	"internhunter/internal/store"
	"internhunter/internal/text"
)

// titleSimilarityThreshold gates the advisory cross-source match on
// (company, normalized title, location).
const titleSimilarityThreshold = 0.85

// Kind is the resolution for one candidate posting.
type Kind int

const (
	KindNew Kind = iota
	KindUpdated
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindUpdated:
		return "updated"
	case KindDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// HeuristicMatch flags a stored job that looks like the same posting listed
// under a different identity. Advisory only: both records are kept, the match
// is surfaced as data for caller review, never a hidden drop.
type HeuristicMatch struct {
	JobID      string
	Source     job.Source
	Similarity float64
}

// Resolution is the outcome for one candidate.
type Resolution struct {
	Kind      Kind
	Heuristic *HeuristicMatch
}

type Deduplicator struct {
	store  *store.Store
	logger *zap.Logger
}

func New(s *store.Store, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{store: s, logger: logger}
}

// Resolve classifies the candidate against the persisted job store: exact
// identity by job ID first, then the cross-source heuristic.
func (d *Deduplicator) Resolve(ctx context.Context, candidate *job.Posting) (*Resolution, error) {
	existing, err := d.store.GetJob(ctx, candidate.ID)
	switch {
	case err == nil:
		if existing.ContentEquals(candidate) {
			return &Resolution{Kind: KindDuplicate}, nil
		}
		return &Resolution{Kind: KindUpdated}, nil
	case errors.Is(err, store.ErrNotFound):
		// Fall through to the heuristic.
	default:
		return nil, fmt.Errorf("resolve %s: %w", candidate.ID, err)
	}

	res := &Resolution{Kind: KindNew}

	match, err := d.findHeuristicMatch(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if match != nil {
		res.Heuristic = match
		d.logger.Info("likely cross-source relisting",
			zap.String("job_id", candidate.ID),
			zap.String("matched_job_id", match.JobID),
			zap.Float64("similarity", match.Similarity),
		)
	}

	return res, nil
}

func (d *Deduplicator) findHeuristicMatch(ctx context.Context, candidate *job.Posting) (*HeuristicMatch, error) {
	stored, err := d.store.ListByCompany(ctx, candidate.Company)
	if err != nil {
		return nil, fmt.Errorf("heuristic match for %s: %w", candidate.ID, err)
	}

	var best *HeuristicMatch
	for _, other := range stored {
		if other.ID == candidate.ID {
			continue
		}
		if !locationsCompatible(candidate, other) {
			continue
		}

		sim := text.Similarity(candidate.Title, other.Title)
		if sim < titleSimilarityThreshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &HeuristicMatch{JobID: other.ID, Source: other.Source, Similarity: sim}
		}
	}
	return best, nil
}

func locationsCompatible(a, b *job.Posting) bool {
	if a.IsRemote && b.IsRemote {
		return true
	}
	la := strings.ToLower(strings.TrimSpace(a.Location))
	lb := strings.ToLower(strings.TrimSpace(b.Location))
	if la == "" || lb == "" {
		return true
	}
	return la == lb || strings.Contains(la, lb) || strings.Contains(lb, la)
}
