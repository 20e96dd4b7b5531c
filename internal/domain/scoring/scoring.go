// Package scoring evaluates a draft's rubric state against its form definition.
//
// Everything here is a pure function of (form, state) and runs in time linear
// in the number of traits, so callers recompute on every edit.
package scoring

import (
	"math"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/rubric"
)

// maxScoreValue is the top of the normalised summary scale.
const maxScoreValue = 100

// Completeness is the live view of required traits still lacking a value.
type Completeness struct {
	// MissingRequired lists trait labels in definition order.
	MissingRequired []string `json:"missing_required"`
	Required        int      `json:"required"`
	Filled          int      `json:"filled"`
	Total           int      `json:"total"`
}

// Complete reports whether every required trait has a value.
func (c Completeness) Complete() bool {
	return len(c.MissingRequired) == 0
}

// HasValue reports whether v is a usable value for t: an in-range number for
// sliders, a chosen option for selects.
func HasValue(t rubric.Trait, v draft.TraitValue) bool {
	switch t.Type {
	case rubric.TraitSlider:
		return v.Kind == draft.ValueNumeric && t.InRange(v.Number)
	case rubric.TraitSelect:
		return v.Kind == draft.ValueOption && v.Option != ""
	default:
		return false
	}
}

// ComputeCompleteness walks the form in category then trait order. Optional
// traits are never reported; absent keys count as empty.
func ComputeCompleteness(form rubric.Form, state draft.RubricState) Completeness {
	c := Completeness{MissingRequired: []string{}}
	for _, cat := range form.Categories {
		for _, t := range cat.Traits {
			c.Total++
			if !t.IsRequired() {
				continue
			}
			c.Required++
			if HasValue(t, state[t.Key]) {
				c.Filled++
				continue
			}
			c.MissingRequired = append(c.MissingRequired, t.Label)
		}
	}
	return c
}

// Contribution returns the declared score of the chosen option of a select
// trait. ok is false when the trait is not a select, has no value, or the
// chosen option declares no score.
func Contribution(t rubric.Trait, v draft.TraitValue) (score float64, ok bool) {
	if t.Type != rubric.TraitSelect || !HasValue(t, v) {
		return 0, false
	}
	opt, found := t.Option(v.Option)
	if !found || opt.Score == nil {
		return 0, false
	}
	return *opt.Score, true
}

// normalized maps a trait value onto 0..1, when the trait can be scored.
func normalized(t rubric.Trait, v draft.TraitValue) (float64, bool) {
	switch t.Type {
	case rubric.TraitSlider:
		if !HasValue(t, v) {
			return 0, false
		}
		return (v.Number - t.Min) / (t.Max - t.Min), true
	case rubric.TraitSelect:
		score, ok := Contribution(t, v)
		if !ok {
			return 0, false
		}
		best, ok := t.MaxScore()
		if !ok || best <= 0 {
			return 0, false
		}
		return math.Max(0, math.Min(1, score/best)), true
	default:
		return 0, false
	}
}

// CategorySummary is the normalised average of a category's scored traits.
type CategorySummary struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Weight  float64 `json:"weight"`
	Average float64 `json:"average"`
	Scored  int     `json:"scored"`
}

// Summary is an export-only roll up of the rubric; it never gates completeness.
type Summary struct {
	Categories []CategorySummary `json:"categories"`
	Overall    float64           `json:"overall"`
	HasOverall bool              `json:"has_overall"`
}

// Summarize averages scored traits per category on a 0-100 scale and combines
// the categories by their advisory weights. When no scored category carries a
// weight the categories count equally.
func Summarize(form rubric.Form, state draft.RubricState) Summary {
	s := Summary{Categories: make([]CategorySummary, 0, len(form.Categories))}
	var weighted, weights, plain float64
	var scoredCats int
	for _, cat := range form.Categories {
		cs := CategorySummary{Key: cat.Key, Label: cat.Label, Weight: cat.Weight}
		var sum float64
		for _, t := range cat.Traits {
			if n, ok := normalized(t, state[t.Key]); ok {
				sum += n
				cs.Scored++
			}
		}
		if cs.Scored > 0 {
			cs.Average = sum / float64(cs.Scored) * maxScoreValue
			weighted += cs.Average * cat.Weight
			weights += cat.Weight
			plain += cs.Average
			scoredCats++
		}
		s.Categories = append(s.Categories, cs)
	}
	switch {
	case weights > 0:
		s.Overall, s.HasOverall = weighted/weights, true
	case scoredCats > 0:
		s.Overall, s.HasOverall = plain/float64(scoredCats), true
	}
	return s
}
