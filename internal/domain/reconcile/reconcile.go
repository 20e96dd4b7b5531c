// Package reconcile decides which replica of a draft is authoritative when a
// key is opened: the copy in the device cache or the one in the remote store.
//
// The merge is whole-object last-write-wins over the payload timestamp. Fields
// from the two replicas are never combined.
package reconcile

import (
	"github.com/okian/scoutnotes/internal/domain/draft"
)

// Winner names the replica a decision picked.
type Winner string

// Possible winners.
const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
	WinnerEmpty  Winner = "empty"
)

// Decision is the outcome of a reconciliation.
type Decision struct {
	// Payload is the authoritative content.
	Payload draft.Payload
	Winner  Winner
	// WriteLocal is set when the device cache must be overwritten with Payload.
	WriteLocal bool
	// PushRemote is set when the local replica is strictly newer than the
	// remote one and should reach the store on the next remote save.
	PushRemote bool
}

// Resolve reconciles a local payload with a remote record. Either side may be
// nil when absent; a replica that fails the schema check counts as absent.
// empty is returned when neither side is usable.
//
// Ties favour the local replica and request no remote write.
func Resolve(local *draft.Payload, remote *draft.Record, empty draft.Payload) Decision {
	l := usable(local)
	var r *draft.Payload
	if remote != nil {
		r = usable(&remote.Payload)
	}

	switch {
	case r == nil && l == nil:
		return Decision{Payload: empty, Winner: WinnerEmpty}
	case r == nil:
		return Decision{Payload: l.Clone(), Winner: WinnerLocal}
	case l == nil:
		return Decision{Payload: r.Clone(), Winner: WinnerRemote, WriteLocal: true}
	case r.UpdatedAt.After(l.UpdatedAt):
		return Decision{Payload: r.Clone(), Winner: WinnerRemote, WriteLocal: true}
	default:
		return Decision{
			Payload:    l.Clone(),
			Winner:     WinnerLocal,
			PushRemote: l.UpdatedAt.After(r.UpdatedAt),
		}
	}
}

// Pick is the bare LWW rule over two present payloads.
func Pick(local, remote draft.Payload) draft.Payload {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote
	}
	return local
}

func usable(p *draft.Payload) *draft.Payload {
	if p == nil || p.Check() != nil {
		return nil
	}
	return p
}
