package autofill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"internhunter/internal/answers"
	"internhunter/internal/logger"
)

// State tracks the autofill session. ReadyForReview is terminal for this
// subsystem: submission is always performed by the human in the browser.
type State string

const (
	StateOpened            State = "OPENED"
	StateFieldsFilled      State = "FIELDS_FILLED"
	StateQuestionsPending  State = "QUESTIONS_PENDING"
	StateQuestionsResolved State = "QUESTIONS_RESOLVED"
	StateReadyForReview    State = "READY_FOR_REVIEW"
)

// maxQuestionPasses bounds the pending⇄resolved loop against forms that keep
// revealing new questions as earlier ones are answered.
const maxQuestionPasses = 5

// Prompter surfaces a question the answer bank could not resolve. The
// returned answer has been confirmed by the user.
type Prompter interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// SkippedField records a profile field that could not be filled. Mapping
// failures are reported, never fatal to the session.
type SkippedField struct {
	Field  string
	Reason string
}

// Result summarizes a completed session.
type Result struct {
	State             State
	Platform          Platform
	FilledFields      []string
	SkippedFields     []SkippedField
	BankHits          int
	PromptedQuestions int
}

type Orchestrator struct {
	driver   Driver
	bank     *answers.Bank
	prompter Prompter
	logger   *zap.Logger
}

func NewOrchestrator(driver Driver, bank *answers.Bank, prompter Prompter, log *zap.Logger) *Orchestrator {
	return &Orchestrator{driver: driver, bank: bank, prompter: prompter, logger: log}
}

// Run fills the application form at applyURL with profile data and answer
// bank lookups, then stops at ready-for-review. The browser session is
// released on every exit path.
func (o *Orchestrator) Run(ctx context.Context, jobID, applyURL string, profile *Profile) (*Result, error) {
	if profile == nil {
		return nil, errors.New("profile is required")
	}

	platform := DetectPlatform(applyURL)
	log := o.logger.With(
		zap.String(logger.FieldJobID, jobID),
		zap.String("platform", string(platform)),
	)

	if err := o.driver.Open(ctx, applyURL); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", jobID, err)
	}
	defer func() {
		if err := o.driver.Release(ctx); err != nil {
			log.Warn("release browser session failed", zap.Error(err))
		}
	}()

	result := &Result{State: StateOpened, Platform: platform}
	log.Info("application form opened", zap.String("url", applyURL))

	if !platform.Supported() {
		log.Warn("platform not supported for autofill, leaving form untouched")
		result.State = StateReadyForReview
		return result, nil
	}

	o.fillProfileFields(ctx, log, profile, result)
	result.State = StateFieldsFilled

	if err := o.resolveQuestions(ctx, log, result); err != nil {
		return result, err
	}

	result.State = StateReadyForReview
	log.Info("form ready for review, submission is up to you",
		zap.Int("filled_fields", len(result.FilledFields)),
		zap.Int("skipped_fields", len(result.SkippedFields)),
		zap.Int("bank_hits", result.BankHits),
		zap.Int("prompted_questions", result.PromptedQuestions),
	)
	return result, nil
}

func (o *Orchestrator) fillProfileFields(ctx context.Context, log *zap.Logger, profile *Profile, result *Result) {
	for _, mapping := range fieldsFor(result.Platform) {
		value := mapping.Value(profile)
		if value == "" {
			continue
		}

		if err := o.fillFirstMatch(ctx, mapping, value); err != nil {
			log.Warn("profile field skipped",
				zap.String("field", mapping.Name),
				zap.Error(err),
			)
			result.SkippedFields = append(result.SkippedFields, SkippedField{
				Field:  mapping.Name,
				Reason: err.Error(),
			})
			continue
		}
		result.FilledFields = append(result.FilledFields, mapping.Name)
	}
}

func (o *Orchestrator) fillFirstMatch(ctx context.Context, mapping fieldMapping, value string) error {
	var lastErr error
	for _, selector := range mapping.Selectors {
		var err error
		if mapping.File {
			err = o.driver.Upload(ctx, selector, value)
		} else {
			err = o.driver.Fill(ctx, selector, value)
		}
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// resolveQuestions loops between pending and resolved until the form has no
// unanswered questions left. Bank matches fill silently; everything else
// goes to the prompter and the confirmed answer is recorded for next time.
func (o *Orchestrator) resolveQuestions(ctx context.Context, log *zap.Logger, result *Result) error {
	for pass := 0; pass < maxQuestionPasses; pass++ {
		questions, err := o.driver.ReadQuestions(ctx)
		if err != nil {
			return fmt.Errorf("read questions: %w", err)
		}

		pending := unanswered(questions)
		if len(pending) == 0 {
			return nil
		}
		result.State = StateQuestionsPending

		for _, q := range pending {
			if err := o.resolveQuestion(ctx, log, q, result); err != nil {
				return err
			}
		}
		result.State = StateQuestionsResolved
	}

	return fmt.Errorf("questions still pending after %d passes", maxQuestionPasses)
}

func (o *Orchestrator) resolveQuestion(ctx context.Context, log *zap.Logger, q Question, result *Result) error {
	match, err := o.bank.FindMatch(ctx, q.Label)
	if err != nil {
		return fmt.Errorf("answer bank lookup: %w", err)
	}

	if match != nil {
		if err := o.driver.Answer(ctx, q.ID, match.Entry.Answer); err != nil {
			return fmt.Errorf("fill question %q: %w", q.Label, err)
		}
		if err := o.bank.Use(ctx, match); err != nil {
			return fmt.Errorf("touch answer %d: %w", match.Entry.ID, err)
		}
		result.BankHits++
		log.Debug("question answered from bank",
			zap.String("question", q.Label),
			zap.Float64("similarity", match.Similarity),
		)
		return nil
	}

	answer, err := o.prompter.Ask(ctx, q)
	if err != nil {
		return fmt.Errorf("prompt for %q: %w", q.Label, err)
	}
	if err := o.driver.Answer(ctx, q.ID, answer); err != nil {
		return fmt.Errorf("fill question %q: %w", q.Label, err)
	}
	if _, err := o.bank.Record(ctx, q.Label, answer); err != nil {
		return fmt.Errorf("record answer for %q: %w", q.Label, err)
	}
	result.PromptedQuestions++
	return nil
}

func unanswered(questions []Question) []Question {
	var pending []Question
	for _, q := range questions {
		if !q.Answered {
			pending = append(pending, q)
		}
	}
	return pending
}
