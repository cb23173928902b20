package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/repository"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage form type templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplates(cmd.Context(), func(ctx context.Context, repo repository.TemplateRepository) error {
			tpls, err := repo.ListTemplates(ctx)
			if err != nil {
				return err
			}
			for _, tpl := range tpls {
				fmt.Printf("%-24s %s [%s]\n", tpl.Name, tpl.Description, strings.Join(tpl.Fields, ", "))
			}
			return nil
		})
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print one template as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplates(cmd.Context(), func(ctx context.Context, repo repository.TemplateRepository) error {
			tpl, err := repo.GetTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tpl)
		})
	},
}

var (
	tplDescription string
	tplFields      []string
	tplHint        string
)

var templatesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplates(cmd.Context(), func(ctx context.Context, repo repository.TemplateRepository) error {
			return repo.CreateTemplate(ctx, &entity.FormTypeTemplate{
				Name:        args[0],
				Description: tplDescription,
				Fields:      tplFields,
				Hint:        tplHint,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesAddCmd)

	templatesAddCmd.Flags().StringVar(&tplDescription, "description", "", "human-readable template description")
	templatesAddCmd.Flags().StringSliceVar(&tplFields, "fields", nil, "comma-separated field names")
	templatesAddCmd.Flags().StringVar(&tplHint, "hint", "", "extra guidance folded into the prompt")
}

// withTemplates opens the configured store, seeds the defaults, and hands the
// template repository to fn.
func withTemplates(ctx context.Context, fn func(context.Context, repository.TemplateRepository) error) error {
	cfg := common.LoadConfig()
	logger := newLogger()

	store, err := repository.Open(ctx, repository.Config{DSN: cfg.Database.DSN, DialTimeout: cfg.Database.DialTimeout}, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	repo := repository.NewTemplateRepository(store, logger)
	if err := repo.SeedDefaults(ctx); err != nil {
		return err
	}
	return fn(ctx, repo)
}
