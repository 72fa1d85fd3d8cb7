// Package job defines the canonical job posting record shared by the
// discovery pipeline, the enrichment engine and the ranker.
package job

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Source identifies the job board platform a posting came from.
type Source string

const (
	SourceGreenhouse Source = "greenhouse"
	SourceLever      Source = "lever"
)

// RoleFamily buckets a posting into the role classes the user targets.
type RoleFamily string

const (
	RoleSWE   RoleFamily = "SWE"
	RoleQuant RoleFamily = "QUANT"
	RoleOR    RoleFamily = "OR"
	RoleOther RoleFamily = "OTHER"
)

// PaidFlag describes whether a posting is known to be paid.
type PaidFlag string

const (
	PaidYes     PaidFlag = "PAID"
	PaidNo      PaidFlag = "UNPAID"
	PaidUnknown PaidFlag = "UNKNOWN"
)

// Season is the internship season a posting targets.
type Season string

const (
	SeasonSummer Season = "Summer"
	SeasonFall   Season = "Fall"
	SeasonSpring Season = "Spring"
	SeasonOther  Season = "Other"
)

// Enrichment holds the AI-derived classification fields. The fields are
// written atomically: a posting either carries a full Enrichment or none.
type Enrichment struct {
	RoleFamily      RoleFamily `json:"role_family"`
	IsInternship    bool       `json:"is_internship"`
	Season          *Season    `json:"season"`
	Year            *int       `json:"year"`
	IsSummer2026    bool       `json:"is_summer_2026"`
	PaidFlag        PaidFlag   `json:"paid_flag"`
	Requirements    []string   `json:"requirements"`
	PreferredSkills []string   `json:"preferred_skills"`
	Keywords        []string   `json:"keywords"`
	RelevanceScore  float64    `json:"relevance_score"`
	AIConfidence    float64    `json:"ai_confidence"`
	AIModelUsed     string     `json:"ai_model_used"`
}

// DeriveSummer2026 recomputes the strict filter flag from season and year.
// The flag is never taken from provider output directly.
func (e *Enrichment) DeriveSummer2026() {
	e.IsSummer2026 = e.Season != nil && *e.Season == SeasonSummer &&
		e.Year != nil && *e.Year == 2026
}

// Posting is the canonical, normalized representation of a job posting,
// independent of source platform quirks.
type Posting struct {
	ID              string    `json:"job_id"`
	Source          Source    `json:"source"`
	SourceJobID     string    `json:"source_job_id"`
	Company         string    `json:"company"`
	Title           string    `json:"title"`
	Location        string    `json:"location"`
	IsRemote        bool      `json:"is_remote"`
	ApplyURL        string    `json:"apply_url"`
	PostingURL      string    `json:"posting_url"`
	DescriptionHTML string    `json:"description_html"`
	DescriptionText string    `json:"description_text"`
	DatePosted      string    `json:"date_posted"`
	ScrapedAt       time.Time `json:"scraped_at"`

	// Enrichment is nil until the job has been successfully enriched.
	Enrichment *Enrichment `json:"enrichment,omitempty"`
	// EnrichmentFailed marks a job whose last enrichment attempt produced
	// unusable provider output. The job stays visible with nil enrichment.
	EnrichmentFailed bool `json:"enrichment_failed,omitempty"`
}

// ComputeID derives the stable identity of a posting. The same
// (source, source job id, apply URL) triple always hashes to the same ID,
// which is what makes re-discovery idempotent across runs.
func ComputeID(source Source, sourceJobID, applyURL string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", source, sourceJobID, applyURL)))
	return fmt.Sprintf("%x", sum[:8])
}

// ContentEquals reports whether the immutable content of two postings is
// identical. Scraped timestamps are ignored: re-fetching an unchanged posting
// must compare equal.
func (p *Posting) ContentEquals(other *Posting) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID &&
		p.Company == other.Company &&
		p.Title == other.Title &&
		p.Location == other.Location &&
		p.IsRemote == other.IsRemote &&
		p.ApplyURL == other.ApplyURL &&
		p.PostingURL == other.PostingURL &&
		p.DescriptionHTML == other.DescriptionHTML &&
		p.DatePosted == other.DatePosted
}
