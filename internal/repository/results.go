package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

type ResultRepository interface {
	SaveResult(ctx context.Context, res *entity.ExtractionResult) error
	GetResult(ctx context.Context, id uuid.UUID) (*entity.ExtractionResult, error)
	ListResults(ctx context.Context, limit int) ([]*entity.ExtractionResult, error)
}

type resultRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewResultRepository(store *Store, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepository{store: store, logger: logger}
}

func (r *resultRepository) SaveResult(ctx context.Context, res *entity.ExtractionResult) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("DB_ERROR", "begin save", err)
	}
	defer tx.Rollback()

	pageCount := 0
	if res.Document != nil {
		pageCount = res.Document.PageCount
	}

	_, err = tx.ExecContext(ctx, r.store.rebind(`
		INSERT INTO extractions
			(id, filename, file_size, status, error_kind, error_message,
			 model, attempts, prompt_truncated, page_count, elapsed_ms, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`),
		res.ID.String(), res.Filename, res.FileSize, string(res.Status),
		res.ErrorKind, res.ErrorMessage, res.Model, res.Attempts,
		res.PromptTruncated, pageCount, res.Elapsed.Milliseconds(),
		res.CreatedAt.UnixMilli(),
	)
	if err != nil {
		r.logger.Error("repository.results.save_failed", "id", res.ID, "error", err)
		return common.NewAppError("DB_ERROR", "insert extraction", err)
	}

	for i, f := range res.Fields {
		var conf sql.NullFloat64
		if f.Confidence != nil {
			conf = sql.NullFloat64{Float64: float64(*f.Confidence), Valid: true}
		}
		_, err = tx.ExecContext(ctx, r.store.rebind(`
			INSERT INTO extracted_fields
				(extraction_id, position, name, value, confidence, evidence, recovered)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`),
			res.ID.String(), i, f.Name, f.Value, conf, f.Evidence, f.Recovered,
		)
		if err != nil {
			return common.NewAppError("DB_ERROR", "insert field", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("DB_ERROR", "commit save", err)
	}
	r.logger.Debug("repository.results.saved", "id", res.ID, "fields", len(res.Fields))
	return nil
}

func (r *resultRepository) GetResult(ctx context.Context, id uuid.UUID) (*entity.ExtractionResult, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(`
		SELECT id, filename, file_size, status, error_kind, error_message,
		       model, attempts, prompt_truncated, page_count, elapsed_ms, created_at_ms
		FROM extractions WHERE id = $1`), id.String())

	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "extraction not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "get extraction", err)
	}

	if err := r.loadFields(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *resultRepository) ListResults(ctx context.Context, limit int) ([]*entity.ExtractionResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
		SELECT id, filename, file_size, status, error_kind, error_message,
		       model, attempts, prompt_truncated, page_count, elapsed_ms, created_at_ms
		FROM extractions ORDER BY created_at_ms DESC LIMIT $1`), limit)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "list extractions", err)
	}
	defer rows.Close()

	var out []*entity.ExtractionResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan extraction", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list extractions", err)
	}

	for _, res := range out {
		if err := r.loadFields(ctx, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *resultRepository) loadFields(ctx context.Context, res *entity.ExtractionResult) error {
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
		SELECT name, value, confidence, evidence, recovered
		FROM extracted_fields WHERE extraction_id = $1 ORDER BY position`),
		res.ID.String())
	if err != nil {
		return common.NewAppError("DB_ERROR", "load fields", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f entity.ExtractedField
		var conf sql.NullFloat64
		if err := rows.Scan(&f.Name, &f.Value, &conf, &f.Evidence, &f.Recovered); err != nil {
			return common.NewAppError("DB_ERROR", "scan field", err)
		}
		if conf.Valid {
			c := float32(conf.Float64)
			f.Confidence = &c
		}
		res.Fields = append(res.Fields, f)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*entity.ExtractionResult, error) {
	var (
		res       entity.ExtractionResult
		idStr     string
		status    string
		pageCount int
		elapsedMS int64
		createdMS int64
	)
	err := row.Scan(&idStr, &res.Filename, &res.FileSize, &status,
		&res.ErrorKind, &res.ErrorMessage, &res.Model, &res.Attempts,
		&res.PromptTruncated, &pageCount, &elapsedMS, &createdMS)
	if err != nil {
		return nil, err
	}
	res.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	res.Status = constants.ExtractionStatus(status)
	res.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	res.CreatedAt = time.UnixMilli(createdMS).UTC()
	if pageCount > 0 {
		res.Document = &entity.FormDocument{
			Filename:  res.Filename,
			FileSize:  res.FileSize,
			PageCount: pageCount,
		}
	}
	return &res, nil
}
