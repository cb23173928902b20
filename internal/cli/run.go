package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/repository"
)

var (
	runFields      []string
	runTemplate    string
	runFormType    string
	runModel       string
	runTemperature float32
	runTimeout     time.Duration
	runSave        bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.pdf>",
	Short: "Extract fields from a single PDF",
	Long: `Runs one PDF through the extraction pipeline and prints the result
as JSON on stdout.

Example:
  extract run claim.pdf --template insurance_claim
  extract run form.pdf --fields name,date_of_birth,email
  extract run form.pdf --fields total --model gpt-4o --temperature 0`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runFields, "fields", nil, "comma-separated field names to extract")
	runCmd.Flags().StringVar(&runTemplate, "template", "", "named template to take the field list from")
	runCmd.Flags().StringVar(&runFormType, "form-type", "", "form type label for the prompt")
	runCmd.Flags().StringVar(&runModel, "model", "", "override the configured model")
	runCmd.Flags().Float32Var(&runTemperature, "temperature", -1, "sampling temperature, 0..2")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall timeout")
	runCmd.Flags().BoolVar(&runSave, "save", false, "persist the result to the configured database")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	exCfg, err := resolveExtractionConfig(ctx, cfg)
	if err != nil {
		return err
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	proc := buildProcessor(cfg, logger)
	res := proc.Extract(ctx, content, filepath.Base(path), exCfg)

	if runSave {
		if err := persistResult(ctx, cfg, logger, res); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	if res.Status == constants.StatusFailed || res.Status == constants.StatusCancelled {
		return fmt.Errorf("extraction %s: %s", strings.ToLower(string(res.Status)), res.ErrorMessage)
	}
	return nil
}

// resolveExtractionConfig builds the per-run config from flags, looking the
// template up in the built-ins first and the database second.
func resolveExtractionConfig(ctx context.Context, cfg *common.Config) (*entity.ExtractionConfig, error) {
	var exCfg *entity.ExtractionConfig

	switch {
	case runTemplate != "":
		tpl, err := findTemplate(ctx, cfg, runTemplate)
		if err != nil {
			return nil, err
		}
		exCfg, err = tpl.Config()
		if err != nil {
			return nil, err
		}
	case len(runFields) > 0:
		var err error
		exCfg, err = entity.NewExtractionConfig(runFormType, runFields)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("either --template or --fields is required")
	}

	if runFormType != "" {
		exCfg.FormType = runFormType
	}
	model := runModel
	if model == "" {
		model = cfg.LLM.Model
	}
	exCfg = exCfg.WithModel(model)
	temp := cfg.LLM.Temperature
	if runTemperature >= 0 {
		temp = runTemperature
	}
	return exCfg.WithTemperature(temp)
}

func findTemplate(ctx context.Context, cfg *common.Config, name string) (*entity.FormTypeTemplate, error) {
	for _, tpl := range repository.DefaultTemplates() {
		if tpl.Name == name {
			return tpl, nil
		}
	}

	store, err := repository.Open(ctx, repository.Config{DSN: cfg.Database.DSN, DialTimeout: cfg.Database.DialTimeout}, newLogger())
	if err != nil {
		return nil, fmt.Errorf("template %q is not built in and the database is unreachable: %w", name, err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repository.NewTemplateRepository(store, nil).GetTemplate(ctx, name)
}

func persistResult(ctx context.Context, cfg *common.Config, logger *slog.Logger, res *entity.ExtractionResult) error {
	store, err := repository.Open(ctx, repository.Config{DSN: cfg.Database.DSN, DialTimeout: cfg.Database.DialTimeout}, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return repository.NewResultRepository(store, logger).SaveResult(ctx, res)
}
