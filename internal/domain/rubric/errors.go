package rubric

import "errors"

// Sentinel kinds for rubric definition errors.
var (
	ErrInvalidForm    = errors.New("invalid rubric form")
	ErrDuplicateTrait = errors.New("duplicate trait key")
	ErrNotConfigured  = errors.New("no active rubric form for sport")
)
