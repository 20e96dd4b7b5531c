package service

import "errors"

// Sentinel errors returned by the service.
var (
	// ErrDraftLimit is returned when creating another named draft would
	// exceed the per-evaluator cap.
	ErrDraftLimit  = errors.New("named draft limit reached")
	ErrNotStarted  = errors.New("service not started")
	ErrKeyMismatch = errors.New("draft key in body does not match path")
)
