package queue

import (
	"github.com/okian/scoutnotes/internal/domain/draft"
)

// Kind is the remote operation a job performs.
type Kind uint8

// Job kinds.
const (
	KindUpsert Kind = iota + 1
	KindRemove
	KindFetch
	// KindBarrier does no remote work; its Done channel is closed once every
	// job queued before it has been handled.
	KindBarrier
)

func (k Kind) String() string {
	switch k {
	case KindUpsert:
		return "upsert"
	case KindRemove:
		return "remove"
	case KindFetch:
		return "fetch"
	case KindBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// Job is one remote draft operation.
type Job struct {
	Kind Kind
	Key  string
	// Epoch is the editor session the job was issued for.
	Epoch uint64
	// Input is the record to write for KindUpsert.
	Input draft.UpsertInput
	// Done is closed by the worker after handling a KindBarrier job.
	Done chan struct{}
}

// Barrier returns a barrier job and the channel that signals it.
func Barrier() (Job, <-chan struct{}) {
	done := make(chan struct{})
	return Job{Kind: KindBarrier, Done: done}, done
}
