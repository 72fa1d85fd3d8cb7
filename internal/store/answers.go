package store

import (
	"context"
	"database/sql"
	"time"
)

// AnswerEntry is one stored question/answer pair. Every stored answer was
// explicitly supplied by the user at some point; the bank never invents one.
type AnswerEntry struct {
	ID                int64
	CanonicalQuestion string
	Signature         string
	Answer            string
	UsageCount        int
	LastUsedAt        *time.Time
	CreatedAt         time.Time
}

// ListAnswers returns all answer bank entries.
func (s *Store) ListAnswers(ctx context.Context) ([]*AnswerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_question, signature, answer, usage_count, last_used_at, created_at
		FROM answers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AnswerEntry
	for rows.Next() {
		var (
			e         AnswerEntry
			lastUsed  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CanonicalQuestion, &e.Signature, &e.Answer,
			&e.UsageCount, &lastUsed, &createdAt); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			t, _ := time.Parse(time.RFC3339, lastUsed.String)
			e.LastUsedAt = &t
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// InsertAnswer stores a brand-new entry.
func (s *Store) InsertAnswer(ctx context.Context, question, signature, answer string) (*AnswerEntry, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (canonical_question, signature, answer, usage_count, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		question, signature, answer, now.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &AnswerEntry{
		ID:                id,
		CanonicalQuestion: question,
		Signature:         signature,
		Answer:            answer,
		CreatedAt:         now,
	}, nil
}

// UpdateAnswer refreshes an existing entry's answer text in place.
func (s *Store) UpdateAnswer(ctx context.Context, id int64, answer string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE answers SET answer = ? WHERE id = ?`, answer, id)
	return err
}

// TouchAnswer bumps the usage counter and the last-used timestamp after reuse.
func (s *Store) TouchAnswer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE answers SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}
