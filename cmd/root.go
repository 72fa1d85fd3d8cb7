package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"internhunter/internal/source"
)

const (
	app = "internhunter"

	defaultDatabase = "internhunter.db"
)

type Config struct {
	Database string          `mapstructure:"database"`
	Profile  string          `mapstructure:"profile"`
	Boards   []source.Board  `mapstructure:"boards"`
	AI       *AIConfig       `mapstructure:"ai"`
	Autofill *AutofillConfig `mapstructure:"autofill"`
	Discover *DiscoverConfig `mapstructure:"discover"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type AutofillConfig struct {
	SidecarURL     string `mapstructure:"sidecar-url"`
	TimeoutSeconds int    `mapstructure:"timeout-seconds"`
}

type DiscoverConfig struct {
	FetchConcurrency  int `mapstructure:"fetch-concurrency"`
	EnrichConcurrency int `mapstructure:"enrich-concurrency"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "internhunter discovers Summer 2026 internships, enriches them with AI and prefills applications",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is internhunter.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if config != nil && config.Database == "" {
		config.Database = defaultDatabase
	}
	return config, nil
}
