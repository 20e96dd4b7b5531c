// Package service provides the draft persistence service behind the HTTP
// API: per-evaluator draft storage, active rubric forms and exports.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scoutnotes/internal/adapters/forms"
	"github.com/okian/scoutnotes/internal/adapters/repository"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/internal/domain/export"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Service implements the API dependencies for the draft store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store repository.Store
	forms forms.Provider

	// Configuration
	maxNamedDrafts int
	now            func() time.Time

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the draft repository. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFormProvider sets where active rubric forms come from.
func WithFormProvider(p forms.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.forms = p
		}
	}
}

// WithMaxNamedDrafts caps the named drafts each evaluator may keep. Zero
// means unlimited.
func WithMaxNamedDrafts(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxNamedDrafts = n
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes defaults for components that were not provided: an
// in-memory store and the embedded form catalog.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory draft store")
	}
	if s.forms == nil {
		s.forms = forms.DefaultCatalog()
		s.logger.Info(ctx, "using embedded form catalog")
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "draft service started",
		logger.Int("maxNamedDrafts", s.maxNamedDrafts))
	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing draft store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "draft service stopped")
}

func (s *Service) components() (repository.Store, forms.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.forms, nil
}

// ActiveForm returns the active rubric form for a sport.
func (s *Service) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	_, provider, err := s.components()
	if err != nil {
		return rubric.Form{}, err
	}
	return provider.ActiveForm(ctx, sport)
}

// ListDrafts returns the owner's drafts matching f, newest first.
func (s *Service) ListDrafts(ctx context.Context, ownerID string, f draft.ListFilter) ([]draft.Summary, error) {
	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, ownerID, f)
}

// GetDraft returns one of the owner's drafts.
func (s *Service) GetDraft(ctx context.Context, ownerID, key string) (draft.Record, error) {
	store, _, err := s.components()
	if err != nil {
		return draft.Record{}, err
	}
	rec, err := store.Get(ctx, ownerID, key)
	metrics.RecordDraftFetch(err == nil)
	return rec, err
}

// PutDraft replaces the owner's draft under key with in.
func (s *Service) PutDraft(ctx context.Context, ownerID, key string, in draft.UpsertInput) (repository.UpsertResult, error) {
	store, _, err := s.components()
	if err != nil {
		return repository.UpsertResult{}, err
	}
	if in.Key == "" {
		in.Key = key
	}
	if in.Key != key {
		return repository.UpsertResult{}, fmt.Errorf("%w: %s != %s", ErrKeyMismatch, in.Key, key)
	}
	if err := in.Validate(); err != nil {
		return repository.UpsertResult{}, err
	}
	if err := s.checkNamedLimit(ctx, store, ownerID, key); err != nil {
		return repository.UpsertResult{}, err
	}

	res, err := store.Upsert(ctx, ownerID, in, s.now())
	if err != nil {
		return repository.UpsertResult{}, err
	}
	metrics.RecordDraftUpsert(res.Unchanged)
	s.logger.Debug(ctx, "draft stored",
		logger.String("owner", ownerID),
		logger.String("key", key),
		logger.Bool("created", res.Created),
		logger.Bool("unchanged", res.Unchanged))
	return res, nil
}

// checkNamedLimit refuses a new named draft once the owner holds the maximum.
// Replacing an existing draft is always allowed.
func (s *Service) checkNamedLimit(ctx context.Context, store repository.Store, ownerID, key string) error {
	if s.maxNamedDrafts == 0 || !draftkey.IsNamed(key) {
		return nil
	}
	_, err := store.Get(ctx, ownerID, key)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	n, err := store.CountNamed(ctx, ownerID)
	if err != nil {
		return err
	}
	if n >= s.maxNamedDrafts {
		return fmt.Errorf("%w: %d of %d", ErrDraftLimit, n, s.maxNamedDrafts)
	}
	return nil
}

// DeleteDraft removes the owner's draft. Missing drafts are not an error.
func (s *Service) DeleteDraft(ctx context.Context, ownerID, key string) error {
	store, _, err := s.components()
	if err != nil {
		return err
	}
	if _, err := draftkey.Parse(key); err != nil {
		return err
	}
	if err := store.Delete(ctx, ownerID, key); err != nil {
		return err
	}
	metrics.RecordDraftDelete()
	return nil
}

// ScoringExport renders the draft's rubric state for the scoring service
// using the active form of its sport.
func (s *Service) ScoringExport(ctx context.Context, ownerID, key string) (export.ScoringPayload, error) {
	rec, form, err := s.draftWithForm(ctx, ownerID, key)
	if err != nil {
		return export.ScoringPayload{}, err
	}
	return export.ToScoringPayload(form, rec.Payload.RubricState), nil
}

// Report renders the draft as a plain-text report.
func (s *Service) Report(ctx context.Context, ownerID, key string) (string, error) {
	rec, form, err := s.draftWithForm(ctx, ownerID, key)
	if err != nil {
		return "", err
	}
	return export.ToReport(form, rec.Payload), nil
}

func (s *Service) draftWithForm(ctx context.Context, ownerID, key string) (draft.Record, rubric.Form, error) {
	rec, err := s.GetDraft(ctx, ownerID, key)
	if err != nil {
		return draft.Record{}, rubric.Form{}, err
	}
	form, err := s.ActiveForm(ctx, rec.Sport)
	if err != nil {
		return draft.Record{}, rubric.Form{}, err
	}
	rec.Payload.Normalize(form.Index())
	return rec, form, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"maxNamedDrafts": s.maxNamedDrafts,
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	if n, err := s.store.Count(ctx); err == nil {
		stats["totalDrafts"] = n
		metrics.UpdateDraftsStored(n)
	} else {
		s.logger.Warn(ctx, "counting drafts", logger.Error(err))
	}
	return stats
}
