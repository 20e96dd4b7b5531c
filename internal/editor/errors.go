package editor

import "errors"

// Sentinel errors returned by editor operations.
var (
	// ErrScoringDisabled is returned for rubric operations while no valid
	// form is available for the session's sport.
	ErrScoringDisabled = errors.New("scoring disabled: no evaluation form for sport")
	ErrUnknownTrait    = errors.New("trait not in evaluation form")
	ErrTraitType       = errors.New("value does not match trait type")
	ErrOutOfRange      = errors.New("value outside trait range")
	ErrUnknownOption   = errors.New("option not offered by trait")
	ErrNoSession       = errors.New("no draft open")
	ErrMissingSport    = errors.New("sport is required")
	ErrEmptyTitle      = errors.New("title is required")
	ErrClosed          = errors.New("editor closed")
)
