// Package cli implements the one-shot command line surface: single-file
// extraction, batch directories, and template management.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/document"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/inference"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/parse"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/pipeline"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "LLM-backed PDF form data extraction",
	Long: `Pulls structured field values out of PDF forms using an LLM.

Point it at a PDF and a field list (or a named template) and it prints
the extracted values as JSON. The daemon counterpart (extractd) exposes
the same pipeline over HTTP.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("extract v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.pdf-extractor/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the config file and EXTRACTOR_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.pdf-extractor")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("EXTRACTOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// newLogger writes JSON to stderr so stdout stays parseable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers viper values over the environment-driven defaults.
func loadConfig() (*common.Config, error) {
	cfg := common.LoadConfig()
	if v := viper.GetString("api_key"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetString("base_url"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := viper.GetString("db_url"); v != "" {
		cfg.Database.DSN = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildProcessor(cfg *common.Config, logger *slog.Logger) *pipeline.Processor {
	loader := document.NewLoader(document.Config{MaxFileBytes: cfg.Pipeline.MaxFileBytes}, logger)
	prompts := prompt.NewBuilder(cfg.Pipeline.MaxPromptChars)
	client := inference.NewClient(inference.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		MaxAttempts:       cfg.LLM.MaxAttempts,
		AttemptTimeout:    cfg.LLM.AttemptTimeout,
		BackoffBase:       cfg.LLM.BackoffBase,
		BackoffCap:        cfg.LLM.BackoffCap,
		MaxInFlight:       cfg.LLM.MaxInFlight,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)
	return pipeline.NewProcessor(loader, prompts, client, parse.NewValidator(logger), logger)
}
