// Package forms serves the active rubric form per sport from a YAML catalog or
// PostgreSQL, optionally cached in Redis and coalesced per sport.
package forms

import (
	"context"

	"github.com/okian/scoutnotes/internal/domain/rubric"
)

// Provider returns the active rubric form for a sport. A sport without an
// active form yields an error wrapping rubric.ErrNotConfigured.
type Provider interface {
	ActiveForm(ctx context.Context, sport string) (rubric.Form, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, sport string) (rubric.Form, error)

// ActiveForm implements Provider.
func (f ProviderFunc) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	return f(ctx, sport)
}
