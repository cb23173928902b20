package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

// handleExtract accepts a multipart upload and runs it through the pipeline.
//
//	file        the PDF (required)
//	template    template name; its field list is used when set
//	fields      comma-separated field names; required without a template
//	form_type   free-text label, defaults to the template name or "general"
//	model       override the configured model
//	temperature override, 0..2
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file upload"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.requestConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := h.extractor.Extract(r.Context(), content, header.Filename, cfg)

	if err := h.results.SaveResult(r.Context(), res); err != nil {
		// the extraction itself worked; surface it with a warning
		h.logger.Error("server.extract.save_failed", "id", res.ID, "error", err)
		res.Warnings = append(res.Warnings, "result could not be persisted")
	}
	writeJSON(w, http.StatusOK, res)
}

// requestConfig resolves the extraction config from the form values,
// preferring a named template over an inline field list.
func (h *Handler) requestConfig(r *http.Request) (*entity.ExtractionConfig, error) {
	var cfg *entity.ExtractionConfig

	if name := strings.TrimSpace(r.FormValue("template")); name != "" {
		tpl, err := h.templates.GetTemplate(r.Context(), name)
		if err != nil {
			return nil, err
		}
		cfg, err = tpl.Config()
		if err != nil {
			return nil, err
		}
	} else {
		fields := splitFields(r.FormValue("fields"))
		if len(fields) == 0 {
			return nil, errors.New("either template or fields is required")
		}
		var err error
		cfg, err = entity.NewExtractionConfig(r.FormValue("form_type"), fields)
		if err != nil {
			return nil, err
		}
	}

	if ft := strings.TrimSpace(r.FormValue("form_type")); ft != "" {
		cfg.FormType = ft
	}
	if model := strings.TrimSpace(r.FormValue("model")); model != "" {
		cfg = cfg.WithModel(model)
	}
	if temp := strings.TrimSpace(r.FormValue("temperature")); temp != "" {
		t, err := strconv.ParseFloat(temp, 32)
		if err != nil {
			return nil, errors.New("temperature must be a number")
		}
		cfg, err = cfg.WithTemperature(float32(t))
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
