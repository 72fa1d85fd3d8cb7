package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"internhunter/internal/enrich"
	"internhunter/internal/enrich/gemini"
	"internhunter/internal/enrich/openai"
	"internhunter/internal/logger"
	"internhunter/internal/pipeline"
	"internhunter/internal/secrets"
	"internhunter/internal/source"
	"internhunter/internal/store"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Fetch all configured boards, dedupe into the local store and enrich new postings",
	Run: func(cmd *cobra.Command, _ []string) {
		discover(cmd)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().Bool("enrich-all", false, "send every unenriched posting to the AI provider, skipping the internship keyword prefilter")
	discoverCmd.Flags().Bool("no-enrich", false, "discovery only, leave new postings unenriched")

	viper.BindPFlag("enrich-all", discoverCmd.Flags().Lookup("enrich-all"))
}

func discover(cmd *cobra.Command) {
	ctx := context.Background()

	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || len(config.Boards) == 0 {
		zl.Fatal("at least one board is required under the boards key")
	}

	zl.Info("starting internhunter", zap.String("version", version))

	pretty, _ := json.MarshalIndent(config.Boards, "", "  ")
	zl.Debug(fmt.Sprintf("configured boards: \n %s", pretty))

	s, err := store.Open(config.Database)
	if err != nil {
		zl.Fatal("opening the job store", zap.Error(err))
	}
	defer s.Close()

	var engine *enrich.Engine
	if cmd.Flag("no-enrich").Value.String() != "true" {
		engine, err = newEnrichmentEngine(ctx, config, zl)
		if err != nil {
			zl.Warn("enrichment disabled for this run", zap.Error(err))
		}
	}

	cfg := pipeline.Config{EnrichAll: viper.GetBool("enrich-all")}
	if config.Discover != nil {
		cfg.FetchConcurrency = config.Discover.FetchConcurrency
		cfg.EnrichConcurrency = config.Discover.EnrichConcurrency
	}

	p := pipeline.New(sourceClients(zl), s, engine, zl, cfg)

	summary, err := p.Run(ctx, config.Boards)
	if err != nil {
		zl.Fatal("discovery run failed", zap.Error(err))
	}

	if len(summary.Errors) > 0 {
		zl.Warn("run finished with errors", zap.Int("count", len(summary.Errors)))
	}
}

func sourceClients(zl *zap.Logger) []source.Client {
	fetcher := source.NewFetcher(zl)
	return []source.Client{
		source.NewGreenhouse(fetcher),
		source.NewLever(fetcher),
	}
}

// newEnrichmentEngine builds the configured AI provider plus the engine on
// top of it. A missing or disabled AI config is an error the caller may treat
// as "run without enrichment".
func newEnrichmentEngine(ctx context.Context, config *Config, zl *zap.Logger) (*enrich.Engine, error) {
	if config.AI == nil || !config.AI.Enabled {
		return nil, fmt.Errorf("ai is not enabled in the configuration")
	}

	profileJSON, err := loadProfileJSON(config.Profile)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, config.AI)
	if err != nil {
		return nil, err
	}

	engineLogger := logger.WithProvider(zl, config.AI.Provider, provider.Model())
	return enrich.NewEngine(provider, engineLogger, profileJSON, config.AI.MaxLogLength), nil
}

func newProvider(ctx context.Context, cfg *AIConfig) (enrich.Provider, error) {
	switch strings.TrimSpace(strings.ToLower(cfg.Provider)) {
	case "", "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini configuration is required when provider is gemini")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		return gemini.New(ctx, apiKey, cfg.Gemini.Model)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai configuration is required when provider is openai")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "openai api key",
			File: cfg.OpenAI.APIKeyFile,
			Env:  "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		return openai.New(apiKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// loadProfileJSON reads the applicant profile as opaque JSON for the scoring
// prompt.
func loadProfileJSON(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("profile path is required for enrichment (set the profile key)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading profile %q: %w", path, err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("profile %q is not valid JSON", path)
	}
	return string(data), nil
}
