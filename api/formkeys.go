package api

import (
	"net/http"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/pkg/models"
)

type FormKeyHandler struct {
	registry *forms.Registry
}

func NewFormKeyHandler(registry *forms.Registry) *FormKeyHandler {
	return &FormKeyHandler{registry: registry}
}

func (h *FormKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.registry.List(r.Context(), employerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if keys == nil {
		keys = []models.FormKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *FormKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var def forms.FormKeyDef
	if err := decodeJSON(r, &def); err != nil {
		writeServiceError(w, r, err)
		return
	}
	fk, err := h.registry.Create(r.Context(), employerID(r), def)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fk)
}

func (h *FormKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var def forms.FormKeyDef
	if err := decodeJSON(r, &def); err != nil {
		writeServiceError(w, r, err)
		return
	}
	fk, err := h.registry.Update(r.Context(), employerID(r), id, def)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fk)
}

func (h *FormKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.registry.Delete(r.Context(), employerID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
