package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/answers"
	"internhunter/internal/logger"
	"internhunter/internal/store"
)

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Inspect and edit the reusable answer bank",
}

var answersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored answers",
	Run: func(_ *cobra.Command, _ []string) {
		answersList()
	},
}

var answersAddCmd = &cobra.Command{
	Use:   "add <question> <answer>",
	Short: "Record a question and your confirmed answer",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		answersAdd(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(answersCmd)
	answersCmd.AddCommand(answersListCmd)
	answersCmd.AddCommand(answersAddCmd)
}

func openAnswerBank(zl *zap.Logger) (*answers.Bank, *store.Store) {
	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	s, err := store.Open(config.Database)
	if err != nil {
		zl.Fatal("opening the job store", zap.Error(err))
	}
	return answers.New(s, zl), s
}

func answersList() {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	_, s := openAnswerBank(zl)
	defer s.Close()

	entries, err := s.ListAnswers(context.Background())
	if err != nil {
		zl.Fatal("listing answers", zap.Error(err))
	}

	if len(entries) == 0 {
		fmt.Println("The answer bank is empty.")
		return
	}

	for _, e := range entries {
		fmt.Printf("Q: %s\nA: %s (used %d times)\n\n", e.CanonicalQuestion, e.Answer, e.UsageCount)
	}
}

func answersAdd(question, answer string) {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	bank, s := openAnswerBank(zl)
	defer s.Close()

	entry, err := bank.Record(context.Background(), question, answer)
	if err != nil {
		zl.Fatal("recording answer", zap.Error(err))
	}

	zl.Info("answer recorded",
		zap.String("question", entry.CanonicalQuestion),
		zap.Int64("id", entry.ID),
	)
}
