package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/application"
	"internhunter/internal/logger"
	"internhunter/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id> [new-status]",
	Short: "Show or advance an application attempt",
	Long: `With one argument, prints the attempt for the job. With two, moves it
to the given status (SUBMITTED, INTERVIEW, OFFER, REJECTED, WITHDRAWN and so
on), enforcing the lifecycle. Submission itself always happens in the browser;
this command only records what you did.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		status(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("notes", "", "free-form notes to attach to the attempt")
	statusCmd.Flags().String("packet", "", "path to the application packet for this attempt")
}

func status(cmd *cobra.Command, args []string) {
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

	jobID := args[0]

	if len(args) == 1 {
		printAttempt(ctx, zl, s, jobID)
		return
	}

	to, err := application.Parse(args[1])
	if err != nil {
		zl.Fatal("invalid status", zap.Error(err))
	}

	notes, _ := cmd.Flags().GetString("notes")
	packet, _ := cmd.Flags().GetString("packet")

	attempt, err := s.TransitionAttempt(ctx, jobID, to, notes, packet)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zl.Fatal("no application attempt for this job",
				zap.String(logger.FieldJobID, jobID),
				zap.String("hint", fmt.Sprintf("run `%s apply %s` first", app, jobID)),
			)
		}
		zl.Fatal("updating attempt", zap.Error(err))
	}

	zl.Info("attempt updated",
		zap.String(logger.FieldJobID, jobID),
		zap.String("status", string(attempt.Status)),
	)
}

func printAttempt(ctx context.Context, zl *zap.Logger, s *store.Store, jobID string) {
	attempt, err := s.GetAttempt(ctx, jobID)
	if err != nil {
		zl.Fatal("no application attempt for this job", zap.String(logger.FieldJobID, jobID))
	}

	posting, err := s.GetJob(ctx, jobID)
	if err != nil {
		zl.Fatal("job not found", zap.String(logger.FieldJobID, jobID), zap.Error(err))
	}

	fmt.Printf("%s | %s (%s)\n", posting.Title, posting.Company, posting.Location)
	if application.IsTerminal(attempt.Status) {
		fmt.Printf("  status:  %s (closed)\n", attempt.Status)
	} else {
		fmt.Printf("  status:  %s\n", attempt.Status)
	}
	fmt.Printf("  updated: %s\n", attempt.UpdatedAt.Format("2006-01-02 15:04"))
	if attempt.PacketPath != "" {
		fmt.Printf("  packet:  %s\n", attempt.PacketPath)
	}
	if attempt.Notes != "" {
		fmt.Printf("  notes:   %s\n", attempt.Notes)
	}
}
