package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/ingest"
)

var (
	watchInitialScan bool
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and extract every PDF that appears",
	Long: `Watches a directory tree and runs each new PDF through the pipeline,
writing one JSON result per file into the output directory. Runs until
interrupted.

Example:
  extract watch ./inbox --template loan_application
  extract watch ./inbox --fields name,total --initial-scan`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "also process PDFs already present")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "settle time before a new file is processed")
	watchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./extraction-results", "output directory for results")

	watchCmd.Flags().StringSliceVar(&runFields, "fields", nil, "comma-separated field names to extract")
	watchCmd.Flags().StringVar(&runTemplate, "template", "", "named template to take the field list from")
	watchCmd.Flags().StringVar(&runFormType, "form-type", "", "form type label for the prompt")
	watchCmd.Flags().StringVar(&runModel, "model", "", "override the configured model")
	watchCmd.Flags().Float32Var(&runTemperature, "temperature", -1, "sampling temperature, 0..2")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	exCfg, err := resolveExtractionConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
		return err
	}

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{args[0]},
		InitialScan: watchInitialScan,
		Debounce:    watchDebounce,
	}, logger)
	if err != nil {
		return err
	}

	proc := buildProcessor(cfg, logger)
	fmt.Fprintf(os.Stderr, "Watching %s\n", args[0])

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				logger.Error("watch.error", "error", err)
			}
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				logger.Error("watch.read_failed", "path", path, "error", err)
				continue
			}
			res := proc.Extract(ctx, content, filepath.Base(path), exCfg)
			if err := writeResultJSON(res); err != nil {
				logger.Error("watch.write_failed", "path", path, "error", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", res.Filename, res.Status)
		}
	}
}
