package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

type TemplateRepository interface {
	ListTemplates(ctx context.Context) ([]*entity.FormTypeTemplate, error)
	GetTemplate(ctx context.Context, name string) (*entity.FormTypeTemplate, error)
	CreateTemplate(ctx context.Context, tpl *entity.FormTypeTemplate) error
	SeedDefaults(ctx context.Context) error
}

type templateRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewTemplateRepository(store *Store, logger *slog.Logger) TemplateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &templateRepository{store: store, logger: logger}
}

// DefaultTemplates are installed on first run and never overwritten.
func DefaultTemplates() []*entity.FormTypeTemplate {
	return []*entity.FormTypeTemplate{
		{
			Name:        "customer_registration",
			Description: "Customer Registration",
			Fields:      []string{"full_name", "date_of_birth", "email", "phone_number", "address"},
			Hint:        "Personal details are usually near the top of the form.",
		},
		{
			Name:        "insurance_claim",
			Description: "Insurance Claim",
			Fields:      []string{"claim_number", "policy_number", "incident_date", "claimant_name", "claim_amount"},
			Hint:        "Claim and policy numbers are alphanumeric identifiers.",
		},
		{
			Name:        "loan_application",
			Description: "Loan Application",
			Fields:      []string{"applicant_name", "loan_amount", "annual_income", "employment_status", "loan_purpose"},
			Hint:        "Monetary amounts may be written with currency symbols.",
		},
	}
}

func (r *templateRepository) ListTemplates(ctx context.Context) ([]*entity.FormTypeTemplate, error) {
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
		SELECT name, description, fields, hint, created_at_ms
		FROM templates ORDER BY name`))
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "list templates", err)
	}
	defer rows.Close()

	var out []*entity.FormTypeTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan template", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (r *templateRepository) GetTemplate(ctx context.Context, name string) (*entity.FormTypeTemplate, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(`
		SELECT name, description, fields, hint, created_at_ms
		FROM templates WHERE name = $1`), name)

	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "template not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "get template", err)
	}
	return tpl, nil
}

func (r *templateRepository) CreateTemplate(ctx context.Context, tpl *entity.FormTypeTemplate) error {
	if tpl.Name == "" || len(tpl.Fields) == 0 {
		return common.NewAppError("INVALID_INPUT", "template needs a name and at least one field", common.ErrInvalidInput)
	}
	if _, err := r.GetTemplate(ctx, tpl.Name); err == nil {
		return common.NewAppError("CONFLICT", "template already exists", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return common.NewAppError("INVALID_INPUT", "encode template fields", err)
	}
	created := tpl.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.store.db.ExecContext(ctx, r.store.rebind(`
		INSERT INTO templates (name, description, fields, hint, created_at_ms)
		VALUES ($1, $2, $3, $4, $5)`),
		tpl.Name, tpl.Description, string(fields), tpl.Hint, created.UnixMilli())
	if err != nil {
		r.logger.Error("repository.templates.create_failed", "name", tpl.Name, "error", err)
		return common.NewAppError("DB_ERROR", "insert template", err)
	}
	r.logger.Info("repository.templates.created", "name", tpl.Name, "fields", len(tpl.Fields))
	return nil
}

// SeedDefaults inserts the built-in templates, skipping names that exist.
func (r *templateRepository) SeedDefaults(ctx context.Context) error {
	for _, tpl := range DefaultTemplates() {
		if _, err := r.GetTemplate(ctx, tpl.Name); err == nil {
			continue
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if err := r.CreateTemplate(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

func scanTemplate(row rowScanner) (*entity.FormTypeTemplate, error) {
	var (
		tpl       entity.FormTypeTemplate
		fieldsRaw string
		createdMS int64
	)
	if err := row.Scan(&tpl.Name, &tpl.Description, &fieldsRaw, &tpl.Hint, &createdMS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fieldsRaw), &tpl.Fields); err != nil {
		return nil, err
	}
	tpl.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &tpl, nil
}
