package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
)

// maxDraftBody bounds a PUT body.
const maxDraftBody = 1 << 20

// DraftsHandler serves the per-evaluator draft records.
type DraftsHandler struct {
	deps Dependencies
}

// NewDraftsHandler creates a new drafts handler.
func NewDraftsHandler(deps Dependencies) *DraftsHandler {
	return &DraftsHandler{deps: deps}
}

type putResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
	Created   bool      `json:"created"`
	Unchanged bool      `json:"unchanged"`
}

// HandleList handles GET /v1/drafts.
func (h *DraftsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := draft.ListFilter{
		Sport:                   q.Get("sport"),
		FilmSubmissionReference: q.Get("film_submission_reference"),
		Mode:                    draftkey.Mode(q.Get("mode")),
	}
	switch f.Mode {
	case "", draftkey.ModeAutosave, draftkey.ModeNamed:
	default:
		writeError(w, http.StatusBadRequest, "invalid_mode",
			fmt.Errorf("mode must be %s or %s", draftkey.ModeAutosave, draftkey.ModeNamed))
		return
	}

	list, err := h.deps.ListDrafts(r.Context(), OwnerID(r.Context()), f)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []draft.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /v1/drafts/{key}.
func (h *DraftsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.GetDraft(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePut handles PUT /v1/drafts/{key}: a whole-record replace.
func (h *DraftsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDraftBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body) > maxDraftBody {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", nil)
		return
	}
	var in draft.UpsertInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}

	res, err := h.deps.PutDraft(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "key"), in)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, putResponse{UpdatedAt: res.UpdatedAt, Created: res.Created, Unchanged: res.Unchanged})
}

// HandleDelete handles DELETE /v1/drafts/{key}. Deleting an absent draft
// succeeds.
func (h *DraftsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteDraft(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "key")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleScoring handles GET /v1/drafts/{key}/scoring.
func (h *DraftsHandler) HandleScoring(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.ScoringExport(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleReport handles GET /v1/drafts/{key}/report as plain text.
func (h *DraftsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Report(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}
