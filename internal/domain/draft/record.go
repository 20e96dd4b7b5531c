package draft

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/scoutnotes/internal/domain/draftkey"
)

// Record is the remote store's shape: one row per (owner, key).
type Record struct {
	OwnerID                 string    `json:"owner_id"`
	Key                     string    `json:"key"`
	Title                   string    `json:"title,omitempty"`
	Sport                   string    `json:"sport"`
	FilmSubmissionReference string    `json:"film_submission_reference,omitempty"`
	FormID                  string    `json:"form_id,omitempty"`
	Payload                 Payload   `json:"payload"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Summary is a record without its payload, as shown in a "my drafts" list.
type Summary struct {
	Key                     string        `json:"key"`
	Mode                    draftkey.Mode `json:"mode"`
	Title                   string        `json:"title,omitempty"`
	Sport                   string        `json:"sport"`
	FilmSubmissionReference string        `json:"film_submission_reference,omitempty"`
	FormID                  string        `json:"form_id,omitempty"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// Summary strips the payload.
func (r Record) Summary() Summary {
	mode := draftkey.ModeAutosave
	if draftkey.IsNamed(r.Key) {
		mode = draftkey.ModeNamed
	}
	return Summary{
		Key:                     r.Key,
		Mode:                    mode,
		Title:                   r.Title,
		Sport:                   r.Sport,
		FilmSubmissionReference: r.FilmSubmissionReference,
		FormID:                  r.FormID,
		UpdatedAt:               r.UpdatedAt,
	}
}

// UpsertInput is the body of a whole-record replace.
type UpsertInput struct {
	Key                     string  `json:"key"`
	Title                   string  `json:"title,omitempty"`
	Sport                   string  `json:"sport"`
	FilmSubmissionReference string  `json:"film_submission_reference,omitempty"`
	FormID                  string  `json:"form_id,omitempty"`
	Payload                 Payload `json:"payload"`
}

// FromPayload builds the upsert body for a payload stored under key.
func FromPayload(key string, p Payload) UpsertInput {
	return UpsertInput{
		Key:                     key,
		Title:                   p.Title,
		Sport:                   p.Sport,
		FilmSubmissionReference: p.FilmSubmissionReference,
		FormID:                  p.FormID,
		Payload:                 p,
	}
}

// Validate checks the key namespace, the payload schema and that the record
// columns agree with the payload they describe.
func (in UpsertInput) Validate() error {
	if _, err := draftkey.Parse(in.Key); err != nil {
		return err
	}
	if strings.TrimSpace(in.Sport) == "" {
		return fmt.Errorf("%w: missing sport", ErrInvalidRecord)
	}
	if err := in.Payload.Check(); err != nil {
		return err
	}
	if in.Payload.Sport != in.Sport {
		return fmt.Errorf("%w: payload sport %q does not match %q", ErrInvalidRecord, in.Payload.Sport, in.Sport)
	}
	return nil
}

// Record materialises the input for owner at the given store time.
func (in UpsertInput) Record(ownerID string, at time.Time) Record {
	return Record{
		OwnerID:                 ownerID,
		Key:                     in.Key,
		Title:                   in.Title,
		Sport:                   in.Sport,
		FilmSubmissionReference: in.FilmSubmissionReference,
		FormID:                  in.FormID,
		Payload:                 in.Payload.Clone(),
		UpdatedAt:               at.UTC(),
	}
}

// ListFilter narrows a draft listing. Zero fields match everything.
type ListFilter struct {
	Sport                   string
	FilmSubmissionReference string
	Mode                    draftkey.Mode
}

// Matches reports whether s passes the filter.
func (f ListFilter) Matches(s Summary) bool {
	if f.Sport != "" && s.Sport != f.Sport {
		return false
	}
	if f.FilmSubmissionReference != "" && s.FilmSubmissionReference != f.FilmSubmissionReference {
		return false
	}
	if f.Mode != "" && s.Mode != f.Mode {
		return false
	}
	return true
}
