package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Schema is the DDL for the drafts table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluator_note_drafts (
	owner_id            TEXT        NOT NULL,
	draft_key           TEXT        NOT NULL,
	title               TEXT        NOT NULL DEFAULT '',
	sport               TEXT        NOT NULL,
	film_submission_ref TEXT        NOT NULL DEFAULT '',
	form_id             TEXT        NOT NULL DEFAULT '',
	payload             JSONB       NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, draft_key)
);
CREATE INDEX IF NOT EXISTS evaluator_note_drafts_recent
	ON evaluator_note_drafts (owner_id, updated_at DESC);
`

const summaryColumns = `draft_key, title, sport, film_submission_ref, form_id, updated_at`

// PostgresStore persists drafts in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool      *pgxpool.Pool
	log       logger.Logger
	bootstrap bool
}

// NewPostgres connects to dsn and, unless disabled, bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPostgresFromPool(pool, opts...)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if s.bootstrap {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresFromPool wraps an existing pool. The store owns the pool after this call.
func NewPostgresFromPool(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{pool: pool, log: logger.Get().Named("repository"), bootstrap: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the drafts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.log.Debug(ctx, "drafts schema ensured")
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context, ownerID string, f draft.ListFilter) ([]draft.Summary, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + summaryColumns + ` FROM evaluator_note_drafts
		WHERE owner_id = $1
		  AND ($2::text = '' OR sport = $2::text)
		  AND ($3::text = '' OR film_submission_ref = $3::text)
		  AND starts_with(draft_key, $4::text)
		ORDER BY updated_at DESC, draft_key ASC`
	rows, err := s.pool.Query(ctx, query, owner, f.Sport, f.FilmSubmissionReference, modePrefix(f.Mode))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	out := []draft.Summary{}
	for rows.Next() {
		var rec draft.Record
		if err := rows.Scan(&rec.Key, &rec.Title, &rec.Sport, &rec.FilmSubmissionReference, &rec.FormID, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft summary: %w", err)
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		out = append(out, rec.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return out, nil
}

func modePrefix(m draftkey.Mode) string {
	switch m {
	case draftkey.ModeAutosave:
		return draftkey.AutosavePrefix
	case draftkey.ModeNamed:
		return draftkey.NamedPrefix
	default:
		return ""
	}
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, ownerID, key string) (draft.Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return draft.Record{}, err
	}
	return s.get(ctx, s.pool, owner, key)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) get(ctx context.Context, q querier, owner, key string) (draft.Record, error) {
	var (
		rec draft.Record
		raw []byte
	)
	err := q.QueryRow(ctx, `SELECT `+summaryColumns+`, payload FROM evaluator_note_drafts
		WHERE owner_id = $1 AND draft_key = $2`, owner, key).
		Scan(&rec.Key, &rec.Title, &rec.Sport, &rec.FilmSubmissionReference, &rec.FormID, &rec.UpdatedAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return draft.Record{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return draft.Record{}, fmt.Errorf("get draft: %w", err)
	}
	p, err := draft.Decode(raw)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "malformed")
		return draft.Record{}, fmt.Errorf("get draft %s: %w", key, err)
	}
	rec.OwnerID = owner
	rec.Payload = p
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Upsert implements Store.Upsert. The unchanged check and the write run in one
// transaction holding the row lock.
func (s *PostgresStore) Upsert(ctx context.Context, ownerID string, in draft.UpsertInput, at time.Time) (UpsertResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := in.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_record")
		return UpsertResult{}, err
	}
	raw, err := in.Payload.Encode()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// lock the row if present
	if _, err := tx.Exec(ctx, `SELECT 1 FROM evaluator_note_drafts
		WHERE owner_id = $1 AND draft_key = $2 FOR UPDATE`, owner, in.Key); err != nil {
		return UpsertResult{}, fmt.Errorf("lock draft: %w", err)
	}

	old, err := s.get(ctx, tx, owner, in.Key)
	created := errors.Is(err, ErrNotFound)
	switch {
	case created:
	case errors.Is(err, draft.ErrMalformed):
		// overwritten below
	case err != nil:
		return UpsertResult{}, err
	case sameRecord(old, in):
		return UpsertResult{UpdatedAt: old.UpdatedAt, Unchanged: true}, nil
	}

	at = at.UTC().Truncate(time.Microsecond) // timestamptz precision
	_, err = tx.Exec(ctx, `INSERT INTO evaluator_note_drafts
		(owner_id, draft_key, title, sport, film_submission_ref, form_id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, draft_key) DO UPDATE SET
			title = EXCLUDED.title,
			sport = EXCLUDED.sport,
			film_submission_ref = EXCLUDED.film_submission_ref,
			form_id = EXCLUDED.form_id,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		owner, in.Key, in.Title, in.Sport, in.FilmSubmissionReference, in.FormID, raw, at)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		return UpsertResult{}, fmt.Errorf("upsert draft: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return UpsertResult{UpdatedAt: at, Created: created}, nil
}

// Delete implements Store.Delete.
func (s *PostgresStore) Delete(ctx context.Context, ownerID, key string) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM evaluator_note_drafts WHERE owner_id = $1 AND draft_key = $2`, owner, key); err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// CountNamed implements Store.CountNamed.
func (s *PostgresStore) CountNamed(ctx context.Context, ownerID string) (int, error) {
	owner, err := ownerKey(ownerID)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM evaluator_note_drafts
		WHERE owner_id = $1 AND starts_with(draft_key, $2::text)`, owner, draftkey.NamedPrefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count named drafts: %w", err)
	}
	return n, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM evaluator_note_drafts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return n, nil
}
