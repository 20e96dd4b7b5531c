package editor

import "time"

// State is the remote sync state shown to the evaluator.
type State string

// Sync states. Idle -> Saving -> {Saved, Error}; Error -> Saving on retry.
const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateError  State = "error"
)

// Status is the last sync state transition.
type Status struct {
	State   State
	Changed time.Time
	// Err is the last remote failure while State is StateError.
	Err error
}

func (e *Editor) setStatusLocked(s State, err error) {
	if e.status.State == s && e.status.Err == err {
		return
	}
	e.status = Status{State: s, Changed: e.now().UTC(), Err: err}
}
