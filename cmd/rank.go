package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/job"
	"internhunter/internal/logger"
	"internhunter/internal/rank"
	"internhunter/internal/store"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank enriched Summer 2026 internships by relevance",
	Run: func(cmd *cobra.Command, _ []string) {
		runRank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().Int("top", 25, "how many postings to show")
	rankCmd.Flags().Bool("dump", false, "print the ranked postings as JSON instead of a report")
}

func runRank(cmd *cobra.Command) {
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

	enriched, err := s.ListEnriched(ctx)
	if err != nil {
		zl.Fatal("listing enriched jobs", zap.Error(err))
	}

	ranked := rank.Rank(enriched)
	zl.Info("ranking finished",
		zap.Int("enriched", len(enriched)),
		zap.Int("eligible", len(ranked)),
	)

	top, _ := cmd.Flags().GetInt("top")
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}

	if dump, _ := cmd.Flags().GetBool("dump"); dump {
		pretty, err := json.MarshalIndent(ranked, "", "  ")
		if err != nil {
			zl.Fatal("encoding ranked jobs", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, string(pretty))
		return
	}

	printRankReport(ranked)
}

func printRankReport(ranked []*job.Posting) {
	if len(ranked) == 0 {
		fmt.Println("No eligible postings. Run `internhunter discover` first.")
		return
	}

	for i, p := range ranked {
		e := p.Enrichment
		paid := ""
		if e.PaidFlag == job.PaidYes {
			paid = " [PAID]"
		}
		fmt.Printf("%2d. %5.1f  [%s]%s %s | %s (%s)\n",
			i+1, e.RelevanceScore, e.RoleFamily, paid, p.Title, p.Company, p.Location)
		fmt.Printf("    %s  %s\n", p.ID, p.ApplyURL)
	}
}
