package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run discovery on a schedule until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		watch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("schedule", "@every 6h", "cron schedule for discovery runs")
	watchCmd.Flags().Bool("no-enrich", false, "discovery only, leave new postings unenriched")
}

func watch(cmd *cobra.Command) {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	schedule := cmd.Flag("schedule").Value.String()

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { discover(cmd) }); err != nil {
		zl.Fatal("invalid schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	zl.Info("watch started", zap.String("schedule", schedule))

	// First run immediately, then on the schedule.
	discover(cmd)
	c.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx := c.Stop()
	<-ctx.Done()
	zl.Info("watch stopped")
}
