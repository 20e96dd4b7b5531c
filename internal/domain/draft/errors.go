package draft

import "errors"

// Sentinel kinds for draft errors.
var (
	ErrMalformed     = errors.New("malformed draft payload")
	ErrInvalidRecord = errors.New("invalid draft record")
	ErrNotFound      = errors.New("draft not found")
)
