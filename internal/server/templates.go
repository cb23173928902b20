package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	if tpls == nil {
		tpls = []*entity.FormTypeTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": tpls})
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.GetTemplate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl entity.FormTypeTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("body must be a JSON template"))
		return
	}
	tpl.CreatedAt = time.Now().UTC()

	if err := h.templates.CreateTemplate(r.Context(), &tpl); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	h.logger.Info("server.templates.created", "name", tpl.Name)
	writeJSON(w, http.StatusCreated, tpl)
}
