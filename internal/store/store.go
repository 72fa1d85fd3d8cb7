// Package store persists jobs, application attempts, discovery runs and the
// answer bank in a single SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"internhunter/internal/job"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database. A single writer connection serializes all
// writes, so dedup-then-insert is an atomic check-and-set per job ID.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS jobs (
		job_id            TEXT PRIMARY KEY,
		source            TEXT NOT NULL,
		source_job_id     TEXT NOT NULL,
		company           TEXT NOT NULL,
		title             TEXT NOT NULL,
		location          TEXT,
		is_remote         INTEGER NOT NULL DEFAULT 0,
		apply_url         TEXT NOT NULL,
		posting_url       TEXT,
		description_html  TEXT,
		description_text  TEXT,
		date_posted       TEXT,
		scraped_at        TEXT NOT NULL,
		role_family       TEXT,
		is_internship     INTEGER,
		season            TEXT,
		year              INTEGER,
		is_summer_2026    INTEGER,
		paid_flag         TEXT,
		requirements      TEXT,
		preferred_skills  TEXT,
		keywords          TEXT,
		relevance_score   REAL,
		ai_confidence     REAL,
		ai_model_used     TEXT,
		enrichment_failed INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS applications (
		job_id      TEXT PRIMARY KEY REFERENCES jobs(job_id) ON DELETE CASCADE,
		status      TEXT NOT NULL,
		packet_path TEXT,
		notes       TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		started_at    TEXT NOT NULL,
		ended_at      TEXT,
		source_count  INTEGER NOT NULL DEFAULT 0,
		new_jobs      INTEGER NOT NULL DEFAULT 0,
		enriched_jobs INTEGER NOT NULL DEFAULT 0,
		relistings    TEXT,
		errors        TEXT
	);

	CREATE TABLE IF NOT EXISTS answers (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		canonical_question TEXT NOT NULL,
		signature          TEXT NOT NULL,
		answer             TEXT NOT NULL,
		usage_count        INTEGER NOT NULL DEFAULT 0,
		last_used_at       TEXT,
		created_at         TEXT NOT NULL
	)`)
	return err
}

const jobColumns = `job_id, source, source_job_id, company, title, location, is_remote,
	apply_url, posting_url, description_html, description_text, date_posted, scraped_at,
	role_family, is_internship, season, year, is_summer_2026, paid_flag,
	requirements, preferred_skills, keywords, relevance_score, ai_confidence, ai_model_used,
	enrichment_failed`

// InsertJob stores a newly discovered posting with enrichment fields unset.
func (s *Store) InsertJob(ctx context.Context, p *job.Posting) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, source, source_job_id, company, title, location, is_remote,
			apply_url, posting_url, description_html, description_text, date_posted, scraped_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Source, p.SourceJobID, p.Company, p.Title, p.Location, boolInt(p.IsRemote),
		p.ApplyURL, p.PostingURL, p.DescriptionHTML, p.DescriptionText, p.DatePosted,
		p.ScrapedAt.Format(time.RFC3339), now, now)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", p.ID, err)
	}
	return nil
}

// UpdateJobContent overwrites the immutable-origin fields of an existing job.
// Enrichment columns are untouched: a description edit does not invalidate a
// prior enrichment, re-enrichment is a separate explicit step.
func (s *Store) UpdateJobContent(ctx context.Context, p *job.Posting) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET source = ?, source_job_id = ?, company = ?, title = ?, location = ?,
			is_remote = ?, apply_url = ?, posting_url = ?, description_html = ?,
			description_text = ?, date_posted = ?, scraped_at = ?, updated_at = ?
		WHERE job_id = ?`,
		p.Source, p.SourceJobID, p.Company, p.Title, p.Location,
		boolInt(p.IsRemote), p.ApplyURL, p.PostingURL, p.DescriptionHTML,
		p.DescriptionText, p.DatePosted, p.ScrapedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("update job %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update job %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// WriteEnrichment writes all enrichment fields in one statement so a job is
// either fully enriched or not at all. It also clears the failure marker.
func (s *Store) WriteEnrichment(ctx context.Context, jobID string, e *job.Enrichment) error {
	reqs, err := json.Marshal(e.Requirements)
	if err != nil {
		return err
	}
	skills, err := json.Marshal(e.PreferredSkills)
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET role_family = ?, is_internship = ?, season = ?, year = ?,
			is_summer_2026 = ?, paid_flag = ?, requirements = ?, preferred_skills = ?,
			keywords = ?, relevance_score = ?, ai_confidence = ?, ai_model_used = ?,
			enrichment_failed = 0, updated_at = ?
		WHERE job_id = ?`,
		e.RoleFamily, boolInt(e.IsInternship), nullableSeason(e.Season), nullableInt(e.Year),
		boolInt(e.IsSummer2026), e.PaidFlag, string(reqs), string(skills),
		string(keywords), e.RelevanceScore, e.AIConfidence, e.AIModelUsed,
		time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("write enrichment for %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("write enrichment for %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// MarkEnrichmentFailed records that the last enrichment attempt produced no
// usable output. The job stays visible with null enrichment fields.
func (s *Store) MarkEnrichmentFailed(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET enrichment_failed = 1, updated_at = ? WHERE job_id = ?`,
		time.Now().UTC().Format(time.RFC3339), jobID)
	return err
}

// GetJob returns a single posting by its canonical ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*job.Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	p, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return p, err
}

// ListJobs returns all stored postings ordered by job ID for determinism.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Posting, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY job_id`)
}

// ListByCompany returns stored postings for a company, case-insensitively.
// Used by the deduplicator's cross-source heuristic.
func (s *Store) ListByCompany(ctx context.Context, company string) ([]*job.Posting, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE company = ? COLLATE NOCASE ORDER BY job_id`, company)
}

// ListUnenriched returns postings that were never successfully enriched and
// are not marked failed.
func (s *Store) ListUnenriched(ctx context.Context) ([]*job.Posting, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE role_family IS NULL AND enrichment_failed = 0 ORDER BY job_id`)
}

// ListEnriched returns postings carrying a full enrichment, the ranker's input.
func (s *Store) ListEnriched(ctx context.Context) ([]*job.Posting, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE role_family IS NOT NULL ORDER BY job_id`)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*job.Posting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*job.Posting
	for rows.Next() {
		p, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, p)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*job.Posting, error) {
	var (
		p          job.Posting
		isRemote   int
		scrapedAt  string
		roleFamily sql.NullString
		isIntern   sql.NullInt64
		season     sql.NullString
		year       sql.NullInt64
		summer     sql.NullInt64
		paid       sql.NullString
		reqs       sql.NullString
		skills     sql.NullString
		keywords   sql.NullString
		relevance  sql.NullFloat64
		confidence sql.NullFloat64
		model      sql.NullString
		failed     int
		location   sql.NullString
		postingURL sql.NullString
		descHTML   sql.NullString
		descText   sql.NullString
		datePosted sql.NullString
	)

	err := row.Scan(&p.ID, &p.Source, &p.SourceJobID, &p.Company, &p.Title, &location, &isRemote,
		&p.ApplyURL, &postingURL, &descHTML, &descText, &datePosted, &scrapedAt,
		&roleFamily, &isIntern, &season, &year, &summer, &paid,
		&reqs, &skills, &keywords, &relevance, &confidence, &model, &failed)
	if err != nil {
		return nil, err
	}

	p.Location = location.String
	p.PostingURL = postingURL.String
	p.DescriptionHTML = descHTML.String
	p.DescriptionText = descText.String
	p.DatePosted = datePosted.String
	p.IsRemote = isRemote != 0
	p.EnrichmentFailed = failed != 0
	p.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedAt)

	if roleFamily.Valid {
		e := &job.Enrichment{
			RoleFamily:     job.RoleFamily(roleFamily.String),
			IsInternship:   isIntern.Int64 != 0,
			IsSummer2026:   summer.Int64 != 0,
			PaidFlag:       job.PaidFlag(paid.String),
			RelevanceScore: relevance.Float64,
			AIConfidence:   confidence.Float64,
			AIModelUsed:    model.String,
		}
		if season.Valid {
			se := job.Season(season.String)
			e.Season = &se
		}
		if year.Valid {
			y := int(year.Int64)
			e.Year = &y
		}
		if err := decodeList(reqs, &e.Requirements); err != nil {
			return nil, fmt.Errorf("job %s: requirements: %w", p.ID, err)
		}
		if err := decodeList(skills, &e.PreferredSkills); err != nil {
			return nil, fmt.Errorf("job %s: preferred_skills: %w", p.ID, err)
		}
		if err := decodeList(keywords, &e.Keywords); err != nil {
			return nil, fmt.Errorf("job %s: keywords: %w", p.ID, err)
		}
		p.Enrichment = e
	}

	return &p, nil
}

func decodeList(col sql.NullString, dst *[]string) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableSeason(v *job.Season) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
