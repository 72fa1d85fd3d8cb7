package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"internhunter/internal/application"
)

// Attempt is one job's application lifecycle row. A job has at most one
// attempt; deleting the job cascades to it.
type Attempt struct {
	JobID      string
	Status     application.Status
	PacketPath string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateAttempt shortlists a job: it creates the application row in the
// initial status. Creating an attempt twice for the same job is an error.
func (s *Store) CreateAttempt(ctx context.Context, jobID string) (*Attempt, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (job_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		jobID, application.StatusShortlisted, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create attempt for %s: %w", jobID, err)
	}
	return &Attempt{JobID: jobID, Status: application.StatusShortlisted, CreatedAt: now, UpdatedAt: now}, nil
}

// GetAttempt returns the application row for a job.
func (s *Store) GetAttempt(ctx context.Context, jobID string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, packet_path, notes, created_at, updated_at
		FROM applications WHERE job_id = ?`, jobID)

	var (
		a          Attempt
		status     string
		packetPath sql.NullString
		notes      sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&a.JobID, &status, &packetPath, &notes, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attempt for %s: %w", jobID, ErrNotFound)
		}
		return nil, err
	}

	a.Status = application.Status(status)
	a.PacketPath = packetPath.String
	a.Notes = notes.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

// TransitionAttempt moves an attempt to a new status, enforcing the state
// machine. Notes and packet path are updated when non-empty.
func (s *Store) TransitionAttempt(ctx context.Context, jobID string, to application.Status, notes, packetPath string) (*Attempt, error) {
	attempt, err := s.GetAttempt(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := application.CheckTransition(attempt.Status, to); err != nil {
		return nil, err
	}

	if notes != "" {
		attempt.Notes = notes
	}
	if packetPath != "" {
		attempt.PacketPath = packetPath
	}
	attempt.Status = to
	attempt.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE applications SET status = ?, notes = ?, packet_path = ?, updated_at = ?
		WHERE job_id = ?`,
		attempt.Status, attempt.Notes, attempt.PacketPath,
		attempt.UpdatedAt.Format(time.RFC3339), jobID)
	if err != nil {
		return nil, fmt.Errorf("transition attempt for %s: %w", jobID, err)
	}
	return attempt, nil
}

// DeleteJob removes a posting; the applications row cascades.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete job %s: %w", jobID, ErrNotFound)
	}
	return nil
}
