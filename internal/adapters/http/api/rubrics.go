package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RubricHandler serves active rubric forms.
type RubricHandler struct {
	deps Dependencies
}

// NewRubricHandler creates a new rubric handler.
func NewRubricHandler(deps Dependencies) *RubricHandler {
	return &RubricHandler{deps: deps}
}

// HandleGetRubric handles GET /v1/rubrics/{sport}.
func (h *RubricHandler) HandleGetRubric(w http.ResponseWriter, r *http.Request) {
	form, err := h.deps.ActiveForm(r.Context(), chi.URLParam(r, "sport"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}
