package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/export"
)

var (
	batchConcurrency int
	batchOutputDir   string
	batchTimeout     time.Duration
	batchXLSX        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract fields from every PDF in a directory",
	Long: `Processes all *.pdf files in a directory concurrently and writes one
JSON result per input file into the output directory.

Example:
  extract batch ./claims --template insurance_claim
  extract batch ./forms --fields name,date --concurrency 8 --xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", runtime.NumCPU(), "number of concurrent extractions")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./extraction-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().BoolVar(&batchXLSX, "xlsx", false, "also write a summary workbook")

	batchCmd.Flags().StringSliceVar(&runFields, "fields", nil, "comma-separated field names to extract")
	batchCmd.Flags().StringVar(&runTemplate, "template", "", "named template to take the field list from")
	batchCmd.Flags().StringVar(&runFormType, "form-type", "", "form type label for the prompt")
	batchCmd.Flags().StringVar(&runModel, "model", "", "override the configured model")
	batchCmd.Flags().Float32Var(&runTemperature, "temperature", -1, "sampling temperature, 0..2")
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	exCfg, err := resolveExtractionConfig(ctx, cfg)
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files in %s", dir)
	}
	if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Processing %d files with %d workers\n", len(paths), batchConcurrency)

	proc := buildProcessor(cfg, logger)

	var mu sync.Mutex
	results := make([]*entity.ExtractionResult, 0, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			res := proc.Extract(gctx, content, filepath.Base(path), exCfg)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			return writeResultJSON(res)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if batchXLSX {
		data, _, err := export.RenderXLSX(results)
		if err != nil {
			return err
		}
		path := filepath.Join(batchOutputDir, "summary.xlsx")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Summary workbook: %s\n", path)
	}

	ok, partial, failed := 0, 0, 0
	for _, res := range results {
		switch res.Status {
		case constants.StatusSuccess:
			ok++
		case constants.StatusPartial:
			partial++
		default:
			failed++
		}
	}
	fmt.Fprintf(os.Stderr, "Done: %d succeeded, %d partial, %d failed\n", ok, partial, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(results))
	}
	return nil
}

func writeResultJSON(res *entity.ExtractionResult) error {
	name := strings.TrimSuffix(res.Filename, filepath.Ext(res.Filename)) + ".json"
	out, err := os.Create(filepath.Join(batchOutputDir, name))
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
