package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunError is one structured error descriptor accumulated during a run.
type RunError struct {
	Stage   string `json:"stage"`
	Board   string `json:"board,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message"`
}

// Relisting is an advisory note that a newly stored job looks like a posting
// already stored under a different identity. Both records are kept; the note
// is carried for caller review.
type Relisting struct {
	JobID        string  `json:"job_id"`
	MatchedJobID string  `json:"matched_job_id"`
	Similarity   float64 `json:"similarity"`
}

// RunRecord is one discovery/enrichment execution. Append-only, kept for
// observability: a run completes even with partial failures.
type RunRecord struct {
	RunID        string
	StartedAt    time.Time
	EndedAt      *time.Time
	SourceCount  int
	NewJobs      int
	EnrichedJobs int
	Relistings   []Relisting
	Errors       []RunError
}

// StartRun inserts an open run row (ended_at null while running).
func (s *Store) StartRun(ctx context.Context, runID string, sourceCount int) (*RunRecord, error) {
	rec := &RunRecord{
		RunID:       runID,
		StartedAt:   time.Now().UTC(),
		SourceCount: sourceCount,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, source_count) VALUES (?, ?, ?)`,
		rec.RunID, rec.StartedAt.Format(time.RFC3339), rec.SourceCount)
	if err != nil {
		return nil, fmt.Errorf("start run %s: %w", runID, err)
	}
	return rec, nil
}

// CloseRun stamps ended_at and persists the final counters and errors.
func (s *Store) CloseRun(ctx context.Context, rec *RunRecord) error {
	ended := time.Now().UTC()
	rec.EndedAt = &ended

	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return err
	}
	relistingsJSON, err := json.Marshal(rec.Relistings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, new_jobs = ?, enriched_jobs = ?, relistings = ?, errors = ?
		WHERE run_id = ?`,
		ended.Format(time.RFC3339), rec.NewJobs, rec.EnrichedJobs,
		string(relistingsJSON), string(errorsJSON), rec.RunID)
	if err != nil {
		return fmt.Errorf("close run %s: %w", rec.RunID, err)
	}
	return nil
}

// GetRun returns one run row.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, ended_at, source_count, new_jobs, enriched_jobs, relistings, errors
		FROM runs WHERE run_id = ?`, runID)

	var (
		rec            RunRecord
		startedAt      string
		endedAt        sql.NullString
		relistingsJSON sql.NullString
		errsJSON       sql.NullString
	)
	if err := row.Scan(&rec.RunID, &startedAt, &endedAt, &rec.SourceCount,
		&rec.NewJobs, &rec.EnrichedJobs, &relistingsJSON, &errsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, err
	}

	rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		rec.EndedAt = &t
	}
	if relistingsJSON.Valid && relistingsJSON.String != "" {
		if err := json.Unmarshal([]byte(relistingsJSON.String), &rec.Relistings); err != nil {
			return nil, fmt.Errorf("run %s: decode relistings: %w", runID, err)
		}
	}
	if errsJSON.Valid && errsJSON.String != "" {
		if err := json.Unmarshal([]byte(errsJSON.String), &rec.Errors); err != nil {
			return nil, fmt.Errorf("run %s: decode errors: %w", runID, err)
		}
	}
	return &rec, nil
}
