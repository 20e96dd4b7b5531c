package remote

import "errors"

// Sentinel kinds for remote store errors.
var (
	ErrNotFound     = errors.New("remote: not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrUnavailable  = errors.New("remote: unavailable")
	ErrRejected     = errors.New("remote: request rejected")
	ErrInvalidURL   = errors.New("remote: invalid base url")
)
