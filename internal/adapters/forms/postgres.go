package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Schema is the DDL for the forms table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluation_forms (
	form_id    TEXT        PRIMARY KEY,
	sport      TEXT        NOT NULL,
	active     BOOLEAN     NOT NULL DEFAULT FALSE,
	definition JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS evaluation_forms_one_active
	ON evaluation_forms (sport) WHERE active;
`

// Postgres reads the active form per sport from the evaluation_forms table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool. The caller keeps ownership of the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the forms table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure forms schema: %w", err)
	}
	return nil
}

// ActiveForm implements Provider.
func (p *Postgres) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT definition FROM evaluation_forms WHERE sport = $1 AND active`,
		normalizeSport(sport)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordRubricLookup("postgres", false)
		return rubric.Form{}, fmt.Errorf("%w: %s", rubric.ErrNotConfigured, sport)
	}
	if err != nil {
		metrics.RecordErrorByComponent("forms", "query")
		return rubric.Form{}, fmt.Errorf("load form for %s: %w", sport, err)
	}
	metrics.RecordRubricLookup("postgres", true)

	var form rubric.Form
	if err := json.Unmarshal(raw, &form); err != nil {
		return rubric.Form{}, fmt.Errorf("%w: %w", rubric.ErrInvalidForm, err)
	}
	if err := form.Validate(); err != nil {
		return rubric.Form{}, err
	}
	return form, nil
}

// Publish stores form and makes it the active one for its sport.
func (p *Postgres) Publish(ctx context.Context, form rubric.Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	sport := normalizeSport(form.Sport)

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE evaluation_forms SET active = FALSE WHERE sport = $1 AND active`, sport); err != nil {
			return fmt.Errorf("retire active form: %w", err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO evaluation_forms (form_id, sport, active, definition)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (form_id) DO UPDATE SET sport = EXCLUDED.sport, active = TRUE, definition = EXCLUDED.definition`,
			form.FormID, sport, raw)
		if err != nil {
			return fmt.Errorf("publish form %s: %w", form.FormID, err)
		}
		return nil
	})
}

// Seed publishes each form whose sport has no active form yet and returns
// how many were published.
func (p *Postgres) Seed(ctx context.Context, forms []rubric.Form) (int, error) {
	n := 0
	for _, form := range forms {
		_, err := p.ActiveForm(ctx, form.Sport)
		if err == nil {
			continue
		}
		if !errors.Is(err, rubric.ErrNotConfigured) {
			return n, err
		}
		if err := p.Publish(ctx, form); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
