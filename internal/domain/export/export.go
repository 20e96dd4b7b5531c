// Package export renders a draft into its submission body and a plain text report.
//
// Both transforms are pure: identical inputs produce byte-identical output and
// nothing time dependent is embedded.
package export

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/internal/domain/scoring"
)

// Placeholder is printed for any empty report section or value.
const Placeholder = "(none)"

// ScoringPayload is the structured submission body, ordered like the form.
type ScoringPayload struct {
	FormID     string          `json:"form_id"`
	Categories []CategoryScore `json:"categories"`
}

// CategoryScore lists a category's traits in definition order.
type CategoryScore struct {
	Key    string       `json:"key"`
	Traits []TraitScore `json:"traits"`
}

// TraitScore carries at most one of ValueNumber and ValueOption.
type TraitScore struct {
	Key         string   `json:"key"`
	ValueNumber *float64 `json:"value_number,omitempty"`
	ValueOption *string  `json:"value_option,omitempty"`
	// Score is the declared score of the chosen option, when it has one.
	Score *float64 `json:"score,omitempty"`
}

// ToScoringPayload maps the rubric state onto the form's structure. Traits
// without a usable value are listed with no value.
func ToScoringPayload(form rubric.Form, state draft.RubricState) ScoringPayload {
	out := ScoringPayload{
		FormID:     form.FormID,
		Categories: make([]CategoryScore, 0, len(form.Categories)),
	}
	for _, cat := range form.Categories {
		cs := CategoryScore{Key: cat.Key, Traits: make([]TraitScore, 0, len(cat.Traits))}
		for _, t := range cat.Traits {
			ts := TraitScore{Key: t.Key}
			v := state[t.Key]
			if scoring.HasValue(t, v) {
				switch v.Kind {
				case draft.ValueNumeric:
					n := v.Number
					ts.ValueNumber = &n
				case draft.ValueOption:
					o := v.Option
					ts.ValueOption = &o
					if s, ok := scoring.Contribution(t, v); ok {
						ts.Score = &s
					}
				}
			}
			cs.Traits = append(cs.Traits, ts)
		}
		out.Categories = append(out.Categories, cs)
	}
	return out
}

// Encode serialises the payload as JSON.
func (p ScoringPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// ToReport renders a human readable report of the draft against form.
func ToReport(form rubric.Form, d draft.Payload) string {
	var b strings.Builder

	title := form.Title
	if title == "" {
		title = form.FormID
	}
	b.WriteString("Evaluation notes: " + orPlaceholder(title) + "\n")
	b.WriteString("Sport: " + orPlaceholder(d.Sport) + "\n")
	b.WriteString("Film submission: " + orPlaceholder(d.FilmSubmissionReference) + "\n")
	if d.Title != "" {
		b.WriteString("Draft: " + d.Title + "\n")
	}

	for _, cat := range form.Categories {
		b.WriteString("\n== " + cat.Label)
		if cat.Weight > 0 {
			b.WriteString(" (weight " + formatNumber(cat.Weight) + ")")
		}
		b.WriteString(" ==\n")
		for _, t := range cat.Traits {
			v := d.RubricState[t.Key]
			b.WriteString("- " + t.Label + ": " + renderValue(t, v) + "\n")
			if note := strings.TrimSpace(v.Note); note != "" {
				b.WriteString("  Evidence: " + note + "\n")
			}
		}
	}

	if sum := scoring.Summarize(form, d.RubricState); sum.HasOverall {
		b.WriteString("\nOverall: " + strconv.FormatFloat(sum.Overall, 'f', 1, 64) + " / 100\n")
	}

	section(&b, "Strengths", d.StrengthsText)
	section(&b, "Areas for improvement", d.ImprovementsText)
	section(&b, "Notes", d.FreeNotesText)
	return b.String()
}

func section(b *strings.Builder, heading, text string) {
	b.WriteString("\n== " + heading + " ==\n")
	b.WriteString(orPlaceholder(strings.TrimSpace(text)) + "\n")
}

func renderValue(t rubric.Trait, v draft.TraitValue) string {
	if !scoring.HasValue(t, v) {
		return Placeholder
	}
	switch t.Type {
	case rubric.TraitSlider:
		return formatNumber(v.Number) + " / " + formatNumber(t.Max)
	case rubric.TraitSelect:
		if o, ok := t.Option(v.Option); ok && o.Label != "" {
			return o.Label
		}
		return v.Option
	default:
		return Placeholder
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
