package editor

import (
	"context"
	"errors"
	"time"

	"github.com/okian/scoutnotes/internal/adapters/mq/queue"
	"github.com/okian/scoutnotes/internal/adapters/remote"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/reconcile"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// markDirtyLocked (re)arms both debounced writers. Each edit bumps the
// generation so only the last scheduled fire does any work.
func (e *Editor) markDirtyLocked() {
	e.localDirty = true
	e.remoteDirty = true
	e.armLocalLocked()
	e.armRemoteLocked()
}

func (e *Editor) armLocalLocked() {
	e.localGen++
	gen := e.localGen
	if e.localTimer != nil {
		e.localTimer.Stop()
	}
	e.localTimer = time.AfterFunc(e.localDelay, func() { e.fireLocal(gen) })
}

func (e *Editor) armRemoteLocked() {
	e.remoteGen++
	gen := e.remoteGen
	if e.remoteTimer != nil {
		e.remoteTimer.Stop()
	}
	e.remoteTimer = time.AfterFunc(e.remoteDelay, func() { e.fireRemote(gen) })
}

func (e *Editor) stopTimersLocked() {
	if e.localTimer != nil {
		e.localTimer.Stop()
		e.localTimer = nil
	}
	if e.remoteTimer != nil {
		e.remoteTimer.Stop()
		e.remoteTimer = nil
	}
	// invalidate fires already past Stop
	e.localGen++
	e.remoteGen++
}

func (e *Editor) fireLocal(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.localGen || !e.localDirty {
		return
	}
	e.writeLocalLocked()
}

func (e *Editor) fireRemote(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.remoteGen {
		return
	}
	e.enqueuePendingRemovesLocked()
	if e.remoteDirty {
		e.pushLocked()
	}
}

func (e *Editor) writeLocalLocked() {
	e.cache.Set(e.sess.Identity.Key, e.sess.Payload)
	e.localDirty = false
}

// pushLocked queues a whole-record upsert of the open draft. A full queue
// leaves the draft dirty and retries on the next remote cycle.
func (e *Editor) pushLocked() {
	j := queue.Job{
		Kind:  queue.KindUpsert,
		Key:   e.sess.Identity.Key,
		Epoch: e.epoch,
		Input: draft.FromPayload(e.sess.Identity.Key, e.sess.Payload.Clone()),
	}
	if !e.queue.Enqueue(e.runCtx, j) {
		e.remoteDirty = true
		e.setStatusLocked(StateError, queue.ErrClosed)
		if !e.closed {
			e.armRemoteLocked()
		}
		return
	}
	e.remoteDirty = false
	e.inFlight++
	e.setStatusLocked(StateSaving, nil)
}

func (e *Editor) enqueuePendingRemovesLocked() {
	for key := range e.pendingRemoves {
		if !e.queue.Enqueue(e.runCtx, queue.Job{Kind: queue.KindRemove, Key: key, Epoch: e.epoch}) {
			return
		}
		delete(e.pendingRemoves, key)
	}
}

// handle runs on the sync worker, one job at a time in submission order.
func (e *Editor) handle(ctx context.Context, j queue.Job) error {
	switch j.Kind {
	case queue.KindFetch:
		return e.handleFetch(ctx, j)
	case queue.KindUpsert:
		return e.handleUpsert(ctx, j)
	case queue.KindRemove:
		return e.handleRemove(ctx, j)
	default:
		return nil
	}
}

func (e *Editor) handleFetch(ctx context.Context, j queue.Job) error {
	e.mu.Lock()
	if j.Epoch != e.epoch || e.fetchCtx == nil {
		e.mu.Unlock()
		return nil
	}
	fetchCtx := e.fetchCtx
	e.mu.Unlock()

	rec, err := e.remote.FetchByKey(fetchCtx, j.Key)
	var remoteRec *draft.Record
	switch {
	case err == nil:
		remoteRec = &rec
		// a remote copy may carry a sport this session has no form for yet
		if sport := rec.Payload.Sport; sport != "" {
			e.formFor(fetchCtx, sport)
		}
	case fetchCtx.Err() != nil:
		// the session was left while the fetch was in flight
		return nil
	case errors.Is(err, remote.ErrNotFound):
	default:
		// unreachable store reads as absent; the edit session goes on
		e.log.Warn(ctx, "remote fetch failed, keeping local copy",
			logger.String("key", j.Key), logger.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if j.Epoch != e.epoch {
		return nil
	}

	// the dedupe entry tracks what the store holds now, not what this
	// device pushed last
	switch {
	case remoteRec != nil:
		e.dedupe.SeenAndRecord(ctx, j.Key, remoteRec.Payload.Revision())
	case errors.Is(err, remote.ErrNotFound):
		e.dedupe.Forget(ctx, j.Key)
	}

	var local *draft.Payload
	if !e.sess.Payload.UpdatedAt.IsZero() {
		local = &e.sess.Payload
	}
	d := reconcile.Resolve(local, remoteRec, e.sess.Payload)
	metrics.RecordReconciliation(string(d.Winner))

	switch d.Winner {
	case reconcile.WinnerRemote:
		e.adoptRemoteLocked(d.Payload)
	case reconcile.WinnerLocal:
		if d.PushRemote {
			e.remoteDirty = true
			e.armRemoteLocked()
		}
	}
	e.log.Debug(ctx, "draft reconciled",
		logger.String("key", j.Key), logger.String("winner", string(d.Winner)))
	return nil
}

// adoptRemoteLocked replaces the open payload with the remote copy and
// mirrors it to the local cache.
func (e *Editor) adoptRemoteLocked(p draft.Payload) {
	if p.Sport != "" && (p.Sport != e.sess.Sport || e.sess.Form == nil) {
		e.sess.Sport = p.Sport
		e.sess.FilmSubmissionReference = p.FilmSubmissionReference
		e.sess.Form = nil
		if f, ok := e.forms[p.Sport]; ok {
			e.sess.Form = &f
		}
	}
	if e.sess.Form != nil {
		p.Normalize(e.sess.Form.Index())
	}
	e.sess.Payload = p
	e.cache.Set(e.sess.Identity.Key, p)
	e.dedupe.SeenAndRecord(e.runCtx, e.sess.Identity.Key, p.Revision())

	// nothing of ours is pending any more
	e.localDirty = false
	e.remoteDirty = false
	e.stopTimersLocked()
}

func (e *Editor) handleUpsert(ctx context.Context, j queue.Job) error {
	fp := j.Input.Payload.Revision()
	if e.dedupe.SeenAndRecord(ctx, j.Key, fp) {
		metrics.RecordRemoteSync("upsert", metrics.OutcomeSkipped)
		e.finishPush(j, nil)
		return nil
	}

	_, err := e.remote.Upsert(ctx, j.Input)
	if err != nil {
		e.dedupe.Unrecord(ctx, j.Key, fp)
	}
	e.finishPush(j, err)
	return err
}

func (e *Editor) finishPush(j queue.Job, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--

	if err != nil {
		e.setStatusLocked(StateError, err)
		// retry the open draft on the next remote cycle; other keys are
		// picked up by reconciliation when reopened
		if !e.closed && j.Epoch == e.epoch && j.Key == e.sess.Identity.Key {
			e.remoteDirty = true
			e.armRemoteLocked()
		}
		return
	}
	if e.inFlight == 0 {
		e.setStatusLocked(StateSaved, nil)
	}
}

func (e *Editor) handleRemove(ctx context.Context, j queue.Job) error {
	err := e.remote.Remove(ctx, j.Key)
	// an upsert handled before this job may have recorded the key again
	e.dedupe.Forget(ctx, j.Key)

	if err != nil {
		e.mu.Lock()
		e.pendingRemoves[j.Key] = struct{}{}
		e.setStatusLocked(StateError, err)
		if !e.closed {
			e.armRemoteLocked()
		}
		e.mu.Unlock()
	}
	return err
}
