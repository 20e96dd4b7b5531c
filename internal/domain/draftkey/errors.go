package draftkey

import "errors"

// ErrInvalidKey is returned for identifiers outside both key namespaces.
var ErrInvalidKey = errors.New("invalid draft key")
