package cli

import "errors"

// Sentinel kinds for command errors.
var (
	ErrUsage     = errors.New("invalid usage")
	ErrSyncError = errors.New("draft not saved remotely")
)
