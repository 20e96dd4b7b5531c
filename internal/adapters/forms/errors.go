package forms

import "errors"

// Sentinel kinds for form provider errors.
var (
	ErrCatalog    = errors.New("invalid form catalog")
	ErrDuplicated = errors.New("sport has more than one form in catalog")
)
