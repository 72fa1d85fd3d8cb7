package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/answers"
	"internhunter/internal/application"
	"internhunter/internal/autofill"
	"internhunter/internal/logger"
	"internhunter/internal/store"
)

const defaultSidecarURL = "http://127.0.0.1:8931"

var applyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Prefill the application form for a job and stop before submission",
	Long: `Shortlists the job, opens its application form through the browser
automation sidecar, fills profile fields and known questions, asks you for the
rest, and leaves the form ready for your review. Submission is always yours.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		apply(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func apply(_ *cobra.Command, jobID string) {
	ctx := context.Background()

	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	s, err := store.Open(config.Database)
	if err != nil {
		zl.Fatal("opening the job store", zap.Error(err))
	}
	defer s.Close()

	posting, err := s.GetJob(ctx, jobID)
	if err != nil {
		zl.Fatal("job not found", zap.String(logger.FieldJobID, jobID), zap.Error(err))
	}

	profile, err := loadProfile(config.Profile)
	if err != nil {
		zl.Fatal("loading profile", zap.Error(err))
	}

	attempt, err := s.GetAttempt(ctx, jobID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if attempt, err = s.CreateAttempt(ctx, jobID); err != nil {
			zl.Fatal("shortlisting job", zap.Error(err))
		}
		zl.Info("job shortlisted", zap.String(logger.FieldJobID, jobID))
	case err != nil:
		zl.Fatal("reading application attempt", zap.Error(err))
	case !application.Autofillable(attempt.Status):
		zl.Fatal("attempt is past the autofill stage",
			zap.String(logger.FieldJobID, jobID),
			zap.String("status", string(attempt.Status)),
		)
	}

	driver := autofill.NewRemoteDriver(sidecarURL(config), sidecarTimeout(config))
	bank := answers.New(s, zl)
	orchestrator := autofill.NewOrchestrator(driver, bank, &consolePrompter{}, zl)

	result, err := orchestrator.Run(ctx, jobID, posting.ApplyURL, profile)
	if err != nil {
		if errors.Is(err, autofill.ErrAutomationUnavailable) {
			zl.Fatal("browser automation sidecar is not reachable",
				zap.String("url", sidecarURL(config)),
				zap.String("hint", "start the sidecar or set autofill.sidecar-url"),
			)
		}
		zl.Fatal("autofill failed", zap.Error(err))
	}

	if attempt.Status == application.StatusShortlisted &&
		(len(result.FilledFields) > 0 || result.BankHits > 0 || result.PromptedQuestions > 0) {
		if attempt, err = s.TransitionAttempt(ctx, jobID, application.StatusAutofilled, "", ""); err != nil {
			zl.Fatal("updating attempt status", zap.Error(err))
		}
	}
	if attempt.Status != application.StatusReadyForReview {
		if _, err := s.TransitionAttempt(ctx, jobID, application.StatusReadyForReview, "", ""); err != nil {
			zl.Fatal("updating attempt status", zap.Error(err))
		}
	}

	for _, skipped := range result.SkippedFields {
		zl.Warn("field was not filled",
			zap.String("field", skipped.Field),
			zap.String("reason", skipped.Reason),
		)
	}

	fmt.Printf("\n%s at %s is ready for review.\n", posting.Title, posting.Company)
	fmt.Println("Review the form in the browser and submit it yourself, then run:")
	fmt.Printf("  %s status %s SUBMITTED\n", app, jobID)
}

// consolePrompter asks the user for answers the bank could not provide.
type consolePrompter struct{}

func (c *consolePrompter) Ask(_ context.Context, q autofill.Question) (string, error) {
	if len(q.Options) > 0 {
		sel := promptui.Select{Label: q.Label, Items: q.Options}
		_, answer, err := sel.Run()
		return answer, err
	}

	prompt := promptui.Prompt{
		Label: q.Label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("an answer is required")
			}
			return nil
		},
	}
	return prompt.Run()
}

func loadProfile(path string) (*autofill.Profile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile path is required (set the profile key)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}
	var profile autofill.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", path, err)
	}
	return &profile, nil
}

func sidecarURL(config *Config) string {
	if config.Autofill != nil && config.Autofill.SidecarURL != "" {
		return config.Autofill.SidecarURL
	}
	return defaultSidecarURL
}

func sidecarTimeout(config *Config) time.Duration {
	if config.Autofill != nil && config.Autofill.TimeoutSeconds > 0 {
		return time.Duration(config.Autofill.TimeoutSeconds) * time.Second
	}
	return 0
}
