// Package rubric models the weighted scoring form an evaluator fills in for a sport.
//
// A Form is served read-only by the evaluation-form provider. Trait keys are
// unique across the whole form so they can address the draft rubric state
// directly, independent of the category they live in.
package rubric

import (
	"fmt"
	"math"
	"strings"
)

// TraitType is the declared input kind of a trait.
type TraitType string

// Supported trait types.
const (
	TraitSlider TraitType = "slider"
	TraitSelect TraitType = "select"
)

// Weight bounds for categories. Weights are advisory and need not sum to 100.
const (
	minWeight = 0
	maxWeight = 100
)

// Form is a RubricFormDefinition.
type Form struct {
	FormID     string     `json:"form_id" yaml:"form_id"`
	Sport      string     `json:"sport" yaml:"sport"`
	Title      string     `json:"title" yaml:"title"`
	Categories []Category `json:"categories" yaml:"categories"`
}

// Category groups traits and carries an advisory weight (0-100).
type Category struct {
	Key    string  `json:"key" yaml:"key"`
	Label  string  `json:"label" yaml:"label"`
	Weight float64 `json:"weight" yaml:"weight"`
	Traits []Trait `json:"traits" yaml:"traits"`
}

// Trait is a single scored or evidenced attribute.
type Trait struct {
	Key   string    `json:"key" yaml:"key"`
	Label string    `json:"label" yaml:"label"`
	Type  TraitType `json:"type" yaml:"type"`
	// Required is nil when the definition omits it, which means required.
	Required *bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Slider bounds.
	Min  float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step float64 `json:"step,omitempty" yaml:"step,omitempty"`

	// Select choices.
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option is one choice of a select trait. Score is optional.
type Option struct {
	Value string   `json:"value" yaml:"value"`
	Label string   `json:"label" yaml:"label"`
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// IsRequired reports whether the trait must be filled for the draft to be complete.
func (t Trait) IsRequired() bool {
	return t.Required == nil || *t.Required
}

// InRange reports whether v lies within the slider bounds.
func (t Trait) InRange(v float64) bool {
	return v >= t.Min && v <= t.Max
}

// Option returns the option with the given value.
func (t Trait) Option(value string) (Option, bool) {
	for _, o := range t.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// MaxScore returns the highest declared option score, if any option declares one.
func (t Trait) MaxScore() (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, o := range t.Options {
		if o.Score == nil {
			continue
		}
		if !found || *o.Score > best {
			best = *o.Score
			found = true
		}
	}
	return best, found
}

// Trait looks up a trait by key across all categories.
func (f Form) Trait(key string) (Trait, bool) {
	for _, c := range f.Categories {
		for _, t := range c.Traits {
			if t.Key == key {
				return t, true
			}
		}
	}
	return Trait{}, false
}

// TraitCount returns the number of traits in the form.
func (f Form) TraitCount() int {
	n := 0
	for _, c := range f.Categories {
		n += len(c.Traits)
	}
	return n
}

// Index maps trait keys to their definitions.
type Index map[string]Trait

// Index builds a lookup table of the form's traits.
func (f Form) Index() Index {
	idx := make(Index, f.TraitCount())
	for _, c := range f.Categories {
		for _, t := range c.Traits {
			idx[t.Key] = t
		}
	}
	return idx
}

// Validate checks the structural invariants of the definition.
func (f Form) Validate() error {
	if strings.TrimSpace(f.FormID) == "" {
		return fmt.Errorf("%w: missing form_id", ErrInvalidForm)
	}
	if strings.TrimSpace(f.Sport) == "" {
		return fmt.Errorf("%w: form %s: missing sport", ErrInvalidForm, f.FormID)
	}
	seen := make(map[string]string, f.TraitCount())
	for _, c := range f.Categories {
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("%w: form %s: category without key", ErrInvalidForm, f.FormID)
		}
		if !finite(c.Weight) || c.Weight < minWeight || c.Weight > maxWeight {
			return fmt.Errorf("%w: category %s: weight %v outside %d..%d", ErrInvalidForm, c.Key, c.Weight, minWeight, maxWeight)
		}
		for _, t := range c.Traits {
			if prev, dup := seen[t.Key]; dup {
				return fmt.Errorf("%w: %w: trait %q in %s already defined in %s", ErrInvalidForm, ErrDuplicateTrait, t.Key, c.Key, prev)
			}
			seen[t.Key] = c.Key
			if err := t.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t Trait) validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("%w: trait without key", ErrInvalidForm)
	}
	switch t.Type {
	case TraitSlider:
		if !finite(t.Min) || !finite(t.Max) || !finite(t.Step) {
			return fmt.Errorf("%w: slider %s: bounds and step must be finite", ErrInvalidForm, t.Key)
		}
		if t.Min >= t.Max {
			return fmt.Errorf("%w: slider %s: min %v must be below max %v", ErrInvalidForm, t.Key, t.Min, t.Max)
		}
		if t.Step < 0 {
			return fmt.Errorf("%w: slider %s: negative step", ErrInvalidForm, t.Key)
		}
	case TraitSelect:
		if len(t.Options) == 0 {
			return fmt.Errorf("%w: select %s: no options", ErrInvalidForm, t.Key)
		}
		values := make(map[string]struct{}, len(t.Options))
		for _, o := range t.Options {
			if _, dup := values[o.Value]; dup {
				return fmt.Errorf("%w: select %s: duplicate option %q", ErrInvalidForm, t.Key, o.Value)
			}
			if o.Score != nil && !finite(*o.Score) {
				return fmt.Errorf("%w: select %s: option %q has a non-finite score", ErrInvalidForm, t.Key, o.Value)
			}
			values[o.Value] = struct{}{}
		}
	default:
		return fmt.Errorf("%w: trait %s: unknown type %q", ErrInvalidForm, t.Key, t.Type)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
