// Package draft holds the evaluator notes draft: the payload that is
// synchronised between devices and the record the remote store keeps.
package draft

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/scoutnotes/internal/domain/rubric"
)

// SchemaVersion is the only payload layout this build reads or writes.
const SchemaVersion = 1

// minTick is the smallest step Touch advances a timestamp by when the clock stalls.
const minTick = time.Millisecond

// RubricState maps trait keys to their values.
type RubricState map[string]TraitValue

// Payload is the unit of synchronisation.
type Payload struct {
	SchemaVersion           int         `json:"schema_version"`
	Sport                   string      `json:"sport"`
	FormID                  string      `json:"form_id,omitempty"`
	FilmSubmissionReference string      `json:"film_submission_reference,omitempty"`
	Title                   string      `json:"title,omitempty"`
	RubricState             RubricState `json:"rubric_state"`
	StrengthsText           string      `json:"strengths_text"`
	ImprovementsText        string      `json:"improvements_text"`
	FreeNotesText           string      `json:"free_notes_text"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// New returns an empty payload for a sport and optional film submission.
func New(sport, filmSubmissionReference string) Payload {
	return Payload{
		SchemaVersion:           SchemaVersion,
		Sport:                   sport,
		FilmSubmissionReference: filmSubmissionReference,
		RubricState:             RubricState{},
	}
}

// Clone returns a deep copy.
func (p Payload) Clone() Payload {
	out := p
	out.RubricState = make(RubricState, len(p.RubricState))
	for k, v := range p.RubricState {
		out.RubricState[k] = v
	}
	return out
}

// Touch stamps the payload as mutated at now. The stamp never moves backwards.
func (p *Payload) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(minTick)
	}
	p.UpdatedAt = now
}

// Value returns the state of a trait; absent keys are empty values.
func (p Payload) Value(traitKey string) TraitValue {
	return p.RubricState[traitKey]
}

// SetValue stores v for a trait, deleting the entry when v is empty.
func (p *Payload) SetValue(traitKey string, v TraitValue) {
	if p.RubricState == nil {
		p.RubricState = RubricState{}
	}
	if v.IsEmpty() {
		delete(p.RubricState, traitKey)
		return
	}
	p.RubricState[traitKey] = v
}

// Normalize drops values whose variant disagrees with the trait's declared
// type, keeping any evidence note. Traits unknown to the form are kept as-is.
// It returns the number of values dropped.
func (p *Payload) Normalize(idx rubric.Index) int {
	dropped := 0
	for k, v := range p.RubricState {
		t, ok := idx[k]
		if !ok || v.Matches(t) {
			continue
		}
		p.SetValue(k, v.Cleared())
		dropped++
	}
	return dropped
}

// Encode serialises the payload.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a stored payload. Unparsable input or an unknown schema
// version yields ErrMalformed.
func Decode(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := p.Check(); err != nil {
		return Payload{}, err
	}
	if p.RubricState == nil {
		p.RubricState = RubricState{}
	}
	return p, nil
}

// Check validates the schema version.
func (p Payload) Check() error {
	if p.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: schema version %d", ErrMalformed, p.SchemaVersion)
	}
	return nil
}

// Fingerprint hashes the payload content, ignoring UpdatedAt. Two payloads
// with the same fingerprint carry the same evaluator-visible content.
func (p Payload) Fingerprint() uint64 {
	c := p
	c.UpdatedAt = time.Time{}
	if c.RubricState == nil {
		c.RubricState = RubricState{}
	}
	// map keys are emitted sorted, so the encoding is canonical
	raw, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(raw)
}

// Revision hashes the content together with UpdatedAt, identifying one saved
// version of the payload.
func (p Payload) Revision() uint64 {
	d := xxhash.New()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], p.Fingerprint())
	binary.BigEndian.PutUint64(buf[8:], uint64(p.UpdatedAt.UnixNano()))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// SameContent reports whether a and b differ only in UpdatedAt.
func SameContent(a, b Payload) bool {
	return a.Fingerprint() == b.Fingerprint()
}
