// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/scoutnotes/internal/adapters/repository"
	service "github.com/okian/scoutnotes/internal/app"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/internal/domain/export"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ActiveForm returns the active rubric form for a sport.
	ActiveForm(ctx context.Context, sport string) (rubric.Form, error)

	// Draft records, always scoped to the owner.
	ListDrafts(ctx context.Context, ownerID string, f draft.ListFilter) ([]draft.Summary, error)
	GetDraft(ctx context.Context, ownerID, key string) (draft.Record, error)
	PutDraft(ctx context.Context, ownerID, key string, in draft.UpsertInput) (repository.UpsertResult, error)
	DeleteDraft(ctx context.Context, ownerID, key string) error

	// Exports rendered with the active form of the draft's sport.
	ScoringExport(ctx context.Context, ownerID, key string) (export.ScoringPayload, error)
	Report(ctx context.Context, ownerID, key string) (string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	draftsHandler *DraftsHandler
	rubricHandler *RubricHandler
	auth          *Authenticator
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, auth *Authenticator) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		draftsHandler: NewDraftsHandler(deps),
		rubricHandler: NewRubricHandler(deps),
		auth:          auth,
	}
}

// Register attaches all HTTP routes to r. Everything under /v1 requires an
// authenticated owner.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/rubrics/{sport}", MetricsMiddleware(s.rubricHandler.HandleGetRubric, "rubric"))

		r.Get("/drafts", MetricsMiddleware(s.draftsHandler.HandleList, "drafts_list"))
		r.Get("/drafts/{key}", MetricsMiddleware(s.draftsHandler.HandleGet, "drafts_get"))
		r.Put("/drafts/{key}", MetricsMiddleware(s.draftsHandler.HandlePut, "drafts_put"))
		r.Delete("/drafts/{key}", MetricsMiddleware(s.draftsHandler.HandleDelete, "drafts_delete"))
		r.Get("/drafts/{key}/scoring", MetricsMiddleware(s.draftsHandler.HandleScoring, "drafts_scoring"))
		r.Get("/drafts/{key}/report", MetricsMiddleware(s.draftsHandler.HandleReport, "drafts_report"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps domain error kinds to HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rubric.ErrNotConfigured):
		writeError(w, http.StatusNotFound, "not_configured", err)
	case errors.Is(err, draft.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, draftkey.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "invalid_key", err)
	case errors.Is(err, service.ErrKeyMismatch):
		writeError(w, http.StatusBadRequest, "key_mismatch", err)
	case errors.Is(err, draft.ErrInvalidRecord), errors.Is(err, draft.ErrMalformed):
		writeError(w, http.StatusBadRequest, "invalid_draft", err)
	case errors.Is(err, service.ErrDraftLimit):
		writeError(w, http.StatusConflict, "draft_limit", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		logger.Get().Named("api").Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}
