package draft

import (
	"encoding/json"
	"fmt"

	"github.com/okian/scoutnotes/internal/domain/rubric"
)

// ValueKind tags which variant a TraitValue holds.
type ValueKind uint8

// Trait value variants.
const (
	ValueNone ValueKind = iota
	ValueNumeric
	ValueOption
)

// TraitValue is the state of one trait: at most one of a numeric (slider) or
// option (select) value, plus an optional evidence note.
type TraitValue struct {
	Kind   ValueKind
	Number float64
	Option string
	Note   string
}

// Numeric returns a slider value.
func Numeric(v float64) TraitValue {
	return TraitValue{Kind: ValueNumeric, Number: v}
}

// Choice returns a select value. An empty option is no value.
func Choice(option string) TraitValue {
	if option == "" {
		return TraitValue{}
	}
	return TraitValue{Kind: ValueOption, Option: option}
}

// WithNote returns v with its evidence note replaced.
func (v TraitValue) WithNote(note string) TraitValue {
	v.Note = note
	return v
}

// Cleared drops the value but keeps the evidence note.
func (v TraitValue) Cleared() TraitValue {
	return TraitValue{Note: v.Note}
}

// IsEmpty reports whether v carries neither a value nor a note.
func (v TraitValue) IsEmpty() bool {
	return v.Kind == ValueNone && v.Note == ""
}

// Matches reports whether the variant is consistent with the trait's declared type.
func (v TraitValue) Matches(t rubric.Trait) bool {
	switch v.Kind {
	case ValueNone:
		return true
	case ValueNumeric:
		return t.Type == rubric.TraitSlider
	case ValueOption:
		return t.Type == rubric.TraitSelect
	default:
		return false
	}
}

type traitValueJSON struct {
	NumericValue *float64 `json:"numeric_value,omitempty"`
	OptionValue  *string  `json:"option_value,omitempty"`
	EvidenceNote string   `json:"evidence_note,omitempty"`
}

// MarshalJSON keeps the semantic {numeric_value?, option_value?, evidence_note?} shape.
func (v TraitValue) MarshalJSON() ([]byte, error) {
	out := traitValueJSON{EvidenceNote: v.Note}
	switch v.Kind {
	case ValueNumeric:
		n := v.Number
		out.NumericValue = &n
	case ValueOption:
		o := v.Option
		out.OptionValue = &o
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects values carrying both variants.
func (v *TraitValue) UnmarshalJSON(data []byte) error {
	var in traitValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.NumericValue != nil && in.OptionValue != nil:
		return fmt.Errorf("%w: trait holds both numeric and option values", ErrMalformed)
	case in.NumericValue != nil:
		*v = Numeric(*in.NumericValue).WithNote(in.EvidenceNote)
	case in.OptionValue != nil:
		*v = Choice(*in.OptionValue).WithNote(in.EvidenceNote)
	default:
		*v = TraitValue{Note: in.EvidenceNote}
	}
	return nil
}
