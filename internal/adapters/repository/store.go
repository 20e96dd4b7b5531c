// Package repository stores evaluator note drafts on the server side, one
// record per (owner, key).
package repository

import (
	"context"
	"time"

	"github.com/okian/scoutnotes/internal/domain/draft"
)

// UpsertResult describes the outcome of a whole-record replace.
type UpsertResult struct {
	// UpdatedAt is the store time stamped on the record.
	UpdatedAt time.Time
	// Created is set when no record existed for the key.
	Created bool
	// Unchanged is set when the stored content already matched the input.
	Unchanged bool
}

// Store provides owner-scoped access to draft records.
type Store interface {
	// List returns summaries matching f, newest first.
	List(ctx context.Context, ownerID string, f draft.ListFilter) ([]draft.Summary, error)

	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, ownerID, key string) (draft.Record, error)

	// Upsert replaces the whole record for in.Key, stamping it with at.
	Upsert(ctx context.Context, ownerID string, in draft.UpsertInput, at time.Time) (UpsertResult, error)

	// Delete removes the record. Deleting an absent key is not an error.
	Delete(ctx context.Context, ownerID, key string) error

	// CountNamed returns how many named drafts the owner holds.
	CountNamed(ctx context.Context, ownerID string) (int, error)

	// Count returns the number of records across all owners.
	Count(ctx context.Context) (int, error)

	Close() error
}

// sameRecord reports whether rec already holds exactly what in would write.
func sameRecord(rec draft.Record, in draft.UpsertInput) bool {
	return rec.Title == in.Title &&
		rec.Sport == in.Sport &&
		rec.FilmSubmissionReference == in.FilmSubmissionReference &&
		rec.FormID == in.FormID &&
		rec.Payload.UpdatedAt.Equal(in.Payload.UpdatedAt) &&
		draft.SameContent(rec.Payload, in.Payload)
}
