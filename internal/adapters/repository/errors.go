package repository

import (
	"errors"

	"github.com/okian/scoutnotes/internal/domain/draft"
)

// Sentinel kinds for repository errors.
var (
	// ErrNotFound is draft.ErrNotFound so callers can match either.
	ErrNotFound     = draft.ErrNotFound
	ErrInvalidOwner = errors.New("missing draft owner")
	ErrClosed       = errors.New("repository closed")
)
