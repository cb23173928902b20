// Package pipeline coordinates the extraction stages: load the document,
// build the prompt, call the model, validate the response.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/document"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/inference"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/parse"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
)

// Processor runs one document end to end. Every stage failure is folded into
// the returned ExtractionResult; Extract never returns an error.
type Processor struct {
	Loader    *document.Loader
	Prompts   *prompt.Builder
	Inference inference.Caller
	Validator *parse.Validator
	Logger    *slog.Logger

	now func() time.Time
}

func NewProcessor(loader *document.Loader, prompts *prompt.Builder, caller inference.Caller, validator *parse.Validator, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Loader:    loader,
		Prompts:   prompts,
		Inference: caller,
		Validator: validator,
		Logger:    logger,
		now:       time.Now,
	}
}

// Extract processes one PDF and always hands back a result. The status and
// ErrorKind fields say what happened; callers never see a panic or an error
// return from this path.
func (p *Processor) Extract(ctx context.Context, content []byte, filename string, cfg *entity.ExtractionConfig) *entity.ExtractionResult {
	start := p.now()
	res := &entity.ExtractionResult{
		ID:        uuid.New(),
		Filename:  filename,
		FileSize:  int64(len(content)),
		Model:     cfg.Model,
		CreatedAt: start,
	}
	ctx = common.WithRequestID(ctx, res.ID.String())
	log := p.Logger.With("req_id", res.ID.String(), "filename", filename)
	log.Info("pipeline.extract.start", "form_type", cfg.FormType, "fields", len(cfg.Fields))

	defer func() {
		res.Elapsed = p.now().Sub(start)
		log.Info("pipeline.extract.done",
			"status", string(res.Status),
			"attempts", res.Attempts,
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
	}()

	doc, err := p.Loader.Load(content, filename)
	if err != nil {
		return p.fail(res, log, "pipeline.load.failed", err)
	}
	res.Document = doc
	res.Warnings = append(res.Warnings, doc.Warnings...)

	pr := p.Prompts.Build(cfg, doc.Text)
	res.PromptTruncated = pr.Truncated
	if pr.Truncated {
		res.Warnings = append(res.Warnings, "document text truncated to fit the prompt budget")
	}

	raw, err := p.Inference.Call(ctx, pr, cfg.Model, cfg.Temperature)
	res.Attempts = raw.Attempts
	if err != nil {
		// A cancelled or expired parent context is an external signal, not a
		// model failure.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status = constants.StatusCancelled
			res.ErrorMessage = err.Error()
			log.Warn("pipeline.extract.cancelled", "attempts", res.Attempts)
			return res
		}
		return p.fail(res, log, "pipeline.inference.failed", err)
	}
	if raw.Model != "" {
		res.Model = raw.Model
	}

	out, err := p.Validator.ParseResponse(raw.Content, cfg)
	if err != nil {
		return p.fail(res, log, "pipeline.parse.failed", err)
	}
	res.Fields = out.Fields
	res.Status = out.Status
	res.Warnings = append(res.Warnings, out.Warnings...)
	return res
}

// fail stamps the result as failed, pulling the kind off whichever typed
// error the stage produced.
func (p *Processor) fail(res *entity.ExtractionResult, log *slog.Logger, event string, err error) *entity.ExtractionResult {
	res.Status = constants.StatusFailed
	res.ErrorKind = errorKind(err)
	res.ErrorMessage = err.Error()
	log.Error(event, "kind", res.ErrorKind, "error", err)
	return res
}

func errorKind(err error) string {
	var docErr *document.Error
	if errors.As(err, &docErr) {
		return string(docErr.Kind)
	}
	var infErr *inference.Error
	if errors.As(err, &infErr) {
		return string(infErr.Kind)
	}
	var parseErr *parse.Error
	if errors.As(err, &parseErr) {
		return string(parseErr.Kind)
	}
	return "Unknown"
}
