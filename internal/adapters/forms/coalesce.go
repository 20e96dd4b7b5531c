package forms

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/okian/scoutnotes/internal/domain/rubric"
)

// Coalesce collapses concurrent lookups for the same sport into one call to
// the wrapped Provider.
type Coalesce struct {
	source Provider
	group  singleflight.Group
}

// NewCoalesce wraps source.
func NewCoalesce(source Provider) *Coalesce {
	return &Coalesce{source: source}
}

// ActiveForm implements Provider.
func (c *Coalesce) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	v, err, _ := c.group.Do(normalizeSport(sport), func() (any, error) {
		return c.source.ActiveForm(ctx, sport)
	})
	if err != nil {
		return rubric.Form{}, err
	}
	return v.(rubric.Form), nil
}
