package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

func (h *Handler) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	results, err := h.results.ListResults(r.Context(), limit)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	if results == nil {
		results = []*entity.ExtractionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractions": results})
}

func (h *Handler) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("id must be a UUID"))
		return
	}

	res, err := h.results.GetResult(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExportExtractions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	data, err := h.exporter.ExportResultsXLSX(r.Context(), limit)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="extractions.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.HealthCheck(r.Context(), 0); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
