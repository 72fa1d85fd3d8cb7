package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"internhunter/internal/job"
	"internhunter/internal/logger"
)

//go:embed extract_prompt.md
var extractPromptTemplate string

//go:embed score_prompt.md
var scorePromptTemplate string

const (
	defaultMaxLogLength = 200

	// maxDescriptionChars bounds the posting text sent to the provider.
	maxDescriptionChars = 12000
)

// ErrUnusableOutput is returned when the provider produced invalid output on
// both the initial prompt and the repair re-prompt. Callers mark the job as
// enrichment-failed; the job itself stays visible with nil enrichment.
var ErrUnusableOutput = errors.New("provider output unusable after repair attempt")

// extraction mirrors the JSON object the extract prompt demands.
type extraction struct {
	RoleFamily      string   `json:"role_family"`
	IsInternship    bool     `json:"is_internship"`
	Season          *string  `json:"season"`
	Year            *int     `json:"year"`
	PaidFlag        string   `json:"paid_flag"`
	Requirements    []string `json:"requirements"`
	PreferredSkills []string `json:"preferred_skills"`
	Keywords        []string `json:"keywords"`
	AIConfidence    float64  `json:"ai_confidence"`
}

// scoring mirrors the JSON object the score prompt demands.
type scoring struct {
	RelevanceScore float64 `json:"relevance_score"`
	Rationale      string  `json:"rationale"`
}

// Engine runs the extract-then-score enrichment sequence for one posting at a
// time. It is safe for concurrent use as long as the Provider is.
type Engine struct {
	provider    Provider
	logger      *zap.Logger
	profileJSON string
	maxLogLen   int
}

func NewEngine(provider Provider, log *zap.Logger, profileJSON string, maxLogLength int) *Engine {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Engine{
		provider:    provider,
		logger:      log,
		profileJSON: strings.TrimSpace(profileJSON),
		maxLogLen:   maxLogLength,
	}
}

// Enrich classifies and scores a single posting. The returned Enrichment is
// complete and validated; it is never partially populated. A nil error means
// the caller may persist it atomically.
func (e *Engine) Enrich(ctx context.Context, p *job.Posting) (*job.Enrichment, error) {
	if p == nil {
		return nil, errors.New("posting is required")
	}

	jobJSON, err := marshalPosting(p)
	if err != nil {
		return nil, fmt.Errorf("marshal posting %s: %w", p.ID, err)
	}

	ext, err := e.extract(ctx, p.ID, jobJSON)
	if err != nil {
		return nil, err
	}

	enrichment := e.buildEnrichment(p.ID, ext)

	sc, err := e.score(ctx, p.ID, jobJSON, ext)
	if err != nil {
		return nil, err
	}
	enrichment.RelevanceScore = clamp(sc.RelevanceScore, 0, 100)
	if enrichment.RelevanceScore != sc.RelevanceScore {
		e.logger.Warn("relevance score out of range, clamped",
			zap.String(logger.FieldJobID, p.ID),
			zap.Float64("raw_score", sc.RelevanceScore),
		)
	}

	return enrichment, nil
}

func (e *Engine) extract(ctx context.Context, jobID, jobJSON string) (*extraction, error) {
	prompt := strings.ReplaceAll(extractPromptTemplate, "{{JOB_JSON}}", jobJSON)

	var ext extraction
	if err := e.completeStrict(ctx, jobID, "extract", prompt, func(data map[string]any) error {
		return decodeExtraction(data, &ext)
	}); err != nil {
		return nil, err
	}
	return &ext, nil
}

func (e *Engine) score(ctx context.Context, jobID, jobJSON string, ext *extraction) (*scoring, error) {
	extJSON, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal extraction for %s: %w", jobID, err)
	}

	prompt := strings.ReplaceAll(scorePromptTemplate, "{{PROFILE_JSON}}", e.profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", jobJSON)
	prompt = strings.ReplaceAll(prompt, "{{EXTRACTION_JSON}}", string(extJSON))

	var sc scoring
	if err := e.completeStrict(ctx, jobID, "score", prompt, func(data map[string]any) error {
		return decodeScoring(data, &sc)
	}); err != nil {
		return nil, err
	}
	return &sc, nil
}

// completeStrict sends the prompt and decodes the response through decode. On
// parse or validation failure it re-prompts exactly once with the bad output
// attached, then gives up with ErrUnusableOutput.
func (e *Engine) completeStrict(ctx context.Context, jobID, task, prompt string, decode func(map[string]any) error) error {
	raw, err := e.complete(ctx, jobID, task, prompt)
	if err != nil {
		return err
	}

	parseErr := parseObject(raw, decode)
	if parseErr == nil {
		return nil
	}

	e.logger.Warn("provider output rejected, sending repair prompt",
		zap.String(logger.FieldJobID, jobID),
		zap.String("task", task),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
		zap.Error(parseErr),
	)

	repaired, err := e.complete(ctx, jobID, task, repairPrompt(prompt, raw, parseErr))
	if err != nil {
		return err
	}
	if err := parseObject(repaired, decode); err != nil {
		return fmt.Errorf("%s for job %s: %w: %w", task, jobID, ErrUnusableOutput, err)
	}
	return nil
}

func (e *Engine) complete(ctx context.Context, jobID, task, prompt string) (string, error) {
	e.logger.Debug("enrichment provider request",
		zap.String(logger.FieldJobID, jobID),
		zap.String("task", task),
		zap.String(logger.FieldModel, e.provider.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s for job %s: %w", task, jobID, err)
	}

	e.logger.Debug("enrichment provider response",
		zap.String(logger.FieldJobID, jobID),
		zap.String("task", task),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)
	return raw, nil
}

func (e *Engine) buildEnrichment(jobID string, ext *extraction) *job.Enrichment {
	enrichment := &job.Enrichment{
		RoleFamily:      job.RoleFamily(ext.RoleFamily),
		IsInternship:    ext.IsInternship,
		PaidFlag:        job.PaidFlag(ext.PaidFlag),
		Requirements:    ext.Requirements,
		PreferredSkills: ext.PreferredSkills,
		Keywords:        ext.Keywords,
		AIConfidence:    clamp(ext.AIConfidence, 0, 1),
		AIModelUsed:     e.provider.Model(),
	}
	if enrichment.AIConfidence != ext.AIConfidence {
		e.logger.Warn("confidence out of range, clamped",
			zap.String(logger.FieldJobID, jobID),
			zap.Float64("raw_confidence", ext.AIConfidence),
		)
	}

	if ext.Season != nil {
		season := job.Season(*ext.Season)
		enrichment.Season = &season
	}
	if ext.Year != nil {
		if *ext.Year >= 1000 && *ext.Year <= 9999 {
			year := *ext.Year
			enrichment.Year = &year
		} else {
			e.logger.Warn("year is not a four-digit value, dropped",
				zap.String(logger.FieldJobID, jobID),
				zap.Int("raw_year", *ext.Year),
			)
		}
	}

	enrichment.DeriveSummer2026()
	return enrichment
}

func marshalPosting(p *job.Posting) (string, error) {
	description := p.DescriptionText
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}

	payload := map[string]any{
		"company":     p.Company,
		"title":       p.Title,
		"location":    p.Location,
		"is_remote":   p.IsRemote,
		"date_posted": p.DatePosted,
		"description": description,
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func repairPrompt(original, badOutput string, parseErr error) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous response was rejected: ")
	b.WriteString(parseErr.Error())
	b.WriteString("\n\nPrevious response:\n")
	b.WriteString(badOutput)
	b.WriteString("\n\nRespond again with ONLY the valid JSON object described above.")
	return b.String()
}

func parseObject(raw string, decode func(map[string]any) error) error {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return fmt.Errorf("parse provider response: %w", err)
	}
	return decode(data)
}

// extractJSON strips markdown code fences some models wrap around JSON output.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// extractionKeys are required in every extraction response. A missing key is
// rejected rather than defaulted, so omissions go through the repair pass
// instead of being stored as zero values.
var extractionKeys = []string{
	"role_family", "is_internship", "season", "year", "paid_flag",
	"requirements", "preferred_skills", "keywords", "ai_confidence",
}

func decodeExtraction(data map[string]any, out *extraction) error {
	for _, key := range extractionKeys {
		if _, ok := data[key]; !ok {
			return fmt.Errorf("missing %s", key)
		}
	}
	if err := decodeObject(data, out); err != nil {
		return err
	}

	out.RoleFamily = strings.ToUpper(strings.TrimSpace(out.RoleFamily))
	switch job.RoleFamily(out.RoleFamily) {
	case job.RoleSWE, job.RoleQuant, job.RoleOR, job.RoleOther:
	default:
		return fmt.Errorf("invalid role_family %q", out.RoleFamily)
	}

	out.PaidFlag = strings.ToUpper(strings.TrimSpace(out.PaidFlag))
	switch job.PaidFlag(out.PaidFlag) {
	case job.PaidYes, job.PaidNo, job.PaidUnknown:
	default:
		return fmt.Errorf("invalid paid_flag %q", out.PaidFlag)
	}

	if out.Season != nil {
		var season string
		switch strings.ToLower(strings.TrimSpace(*out.Season)) {
		case "summer":
			season = string(job.SeasonSummer)
		case "fall":
			season = string(job.SeasonFall)
		case "spring":
			season = string(job.SeasonSpring)
		case "other":
			season = string(job.SeasonOther)
		default:
			return fmt.Errorf("invalid season %q", *out.Season)
		}
		out.Season = &season
	}

	return nil
}

func decodeScoring(data map[string]any, out *scoring) error {
	if _, ok := data["relevance_score"]; !ok {
		return errors.New("missing relevance_score")
	}
	return decodeObject(data, out)
}

// decodeObject maps a parsed JSON object onto a tagged struct, tolerating the
// loose typing models produce (numbers as strings, ints as floats).
func decodeObject(data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
