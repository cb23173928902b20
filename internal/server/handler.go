// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/export"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/repository"
)

// Extractor is the pipeline capability the handlers need; tests stub it.
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename string, cfg *entity.ExtractionConfig) *entity.ExtractionResult
}

// Pinger reports storage health.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Handler struct {
	extractor Extractor
	results   repository.ResultRepository
	templates repository.TemplateRepository
	exporter  *export.Service
	pinger    Pinger
	logger    *slog.Logger

	maxUploadBytes int64
}

func NewHandler(extractor Extractor, results repository.ResultRepository, templates repository.TemplateRepository, exporter *export.Service, pinger Pinger, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{
		extractor:      extractor,
		results:        results,
		templates:      templates,
		exporter:       exporter,
		pinger:         pinger,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Attach(r chi.Router) {
	r.Post("/v1/extract", h.handleExtract)

	r.Get("/v1/extractions", h.handleListExtractions)
	r.Get("/v1/extractions/export.xlsx", h.handleExportExtractions)
	r.Get("/v1/extractions/{id}", h.handleGetExtraction)

	r.Get("/v1/templates", h.handleListTemplates)
	r.Post("/v1/templates", h.handleCreateTemplate)
	r.Get("/v1/templates/{name}", h.handleGetTemplate)

	r.Get("/healthz", h.handleHealthz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

// errStatus maps repository errors onto HTTP codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
