// Package editor is the device-side draft engine. It owns the open draft,
// mirrors edits to the local cache and the remote store through debounced
// writers, reconciles the two replicas when a draft is opened, and keeps
// completeness against the sport's evaluation form.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/scoutnotes/internal/adapters/localcache"
	"github.com/okian/scoutnotes/internal/adapters/mq/queue"
	"github.com/okian/scoutnotes/internal/adapters/mq/worker"
	"github.com/okian/scoutnotes/internal/domain/dedupe"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/logger"
)

// Remote is the draft persistence service as the editor uses it.
type Remote interface {
	FetchByKey(ctx context.Context, key string) (draft.Record, error)
	Upsert(ctx context.Context, in draft.UpsertInput) (time.Time, error)
	Remove(ctx context.Context, key string) error
}

// FormSource returns the active evaluation form for a sport.
type FormSource interface {
	ActiveForm(ctx context.Context, sport string) (rubric.Form, error)
}

// Session is the open draft.
type Session struct {
	Identity                draftkey.Identity
	Sport                   string
	FilmSubmissionReference string
	Payload                 draft.Payload
	// Form is nil while scoring is disabled for the sport.
	Form *rubric.Form
}

// ScoringEnabled reports whether rubric edits are possible.
func (s Session) ScoringEnabled() bool { return s.Form != nil }

// Editor edits one draft at a time. It is safe for concurrent use.
type Editor struct {
	mu sync.Mutex

	cache  localcache.Cache
	remote Remote
	source FormSource
	dedupe dedupe.Deduper
	log    logger.Logger

	queue  *queue.InMemoryQueue
	worker *worker.Worker

	now           func() time.Time
	localDelay    time.Duration
	remoteDelay   time.Duration
	queueCapacity int

	runCtx    context.Context
	runCancel context.CancelFunc

	sess  Session
	open  bool
	epoch uint64
	// fetchCtx is cancelled when the session it was issued for is left.
	fetchCtx    context.Context
	fetchCancel context.CancelFunc

	// forms caches successful lookups per sport.
	forms map[string]rubric.Form

	localTimer  *time.Timer
	remoteTimer *time.Timer
	localGen    uint64
	remoteGen   uint64
	localDirty  bool
	remoteDirty bool

	// pendingRemoves holds keys whose remote removal has not succeeded yet.
	pendingRemoves map[string]struct{}

	status   Status
	inFlight int
	closed   bool

	closeOnce sync.Once
	closeErr  error
}

// New starts an editor over a local cache, a remote store and a form source.
func New(cache localcache.Cache, remote Remote, source FormSource, opts ...Option) *Editor {
	e := &Editor{
		cache:          cache,
		remote:         remote,
		source:         source,
		log:            logger.Get().Named("editor"),
		now:            time.Now,
		localDelay:     defaultLocalDelay,
		remoteDelay:    defaultRemoteDelay,
		queueCapacity:  defaultQueueCapacity,
		forms:          make(map[string]rubric.Form),
		pendingRemoves: make(map[string]struct{}),
		status:         Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = localcache.Noop{}
	}
	if e.dedupe == nil {
		e.dedupe = dedupe.NewInMemoryDeduper()
	}

	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	e.queue = queue.NewInMemoryQueue(queue.WithCapacity(e.queueCapacity))
	e.worker = worker.New(e.queue, worker.HandlerFunc(e.handle),
		worker.WithName("sync"), worker.WithLogger(e.log))
	go e.worker.Run(e.runCtx)
	return e
}

// OpenAutosave opens the autosave draft for a sport and optional film
// submission. The local copy is loaded immediately; the remote copy is
// reconciled in the background.
func (e *Editor) OpenAutosave(ctx context.Context, sport, filmSubmissionReference string) error {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		return ErrMissingSport
	}
	form := e.formFor(ctx, sport)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.switchAwayLocked()

	id := draftkey.Autosave(sport, filmSubmissionReference)
	empty := draft.New(sport, filmSubmissionReference)
	e.beginLocked(id, sport, filmSubmissionReference, form, empty)
	return nil
}

// OpenNamed opens a named draft by key. When the device has no copy, the
// current sport and film submission are kept until the remote copy arrives.
func (e *Editor) OpenNamed(ctx context.Context, key string) error {
	id, err := draftkey.Parse(key)
	if err != nil {
		return err
	}
	if id.Mode != draftkey.ModeNamed {
		return fmt.Errorf("%w: %s is not a named draft", draftkey.ErrInvalidKey, key)
	}

	e.mu.Lock()
	sport, ref := e.sess.Sport, e.sess.FilmSubmissionReference
	e.mu.Unlock()
	if local, ok := e.cache.Get(key); ok {
		sport, ref = local.Sport, local.FilmSubmissionReference
	}
	var form *rubric.Form
	if sport != "" {
		form = e.formFor(ctx, sport)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.switchAwayLocked()

	empty := draft.New(sport, ref)
	e.beginLocked(id, sport, ref, form, empty)
	return nil
}

// SwitchToAutosave returns to the autosave draft of the current sport and
// film submission.
func (e *Editor) SwitchToAutosave(ctx context.Context) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrNoSession
	}
	sport, ref := e.sess.Sport, e.sess.FilmSubmissionReference
	e.mu.Unlock()
	return e.OpenAutosave(ctx, sport, ref)
}

// beginLocked installs a new session, reads the local replica and queues
// the remote reconciliation.
func (e *Editor) beginLocked(id draftkey.Identity, sport, ref string, form *rubric.Form, empty draft.Payload) {
	if form != nil {
		empty.FormID = form.FormID
	}
	p := empty
	if local, ok := e.cache.Get(id.Key); ok {
		p = local
	}
	if form != nil {
		p.Normalize(form.Index())
	}

	e.epoch++
	e.sess = Session{
		Identity:                id,
		Sport:                   sport,
		FilmSubmissionReference: ref,
		Payload:                 p,
		Form:                    form,
	}
	e.open = true
	e.fetchCtx, e.fetchCancel = context.WithCancel(e.runCtx)

	e.enqueuePendingRemovesLocked()
	if !e.queue.Enqueue(e.runCtx, queue.Job{Kind: queue.KindFetch, Key: id.Key, Epoch: e.epoch}) {
		e.log.Warn(e.runCtx, "reconciliation skipped, sync queue unavailable", logger.String("key", id.Key))
	}
	e.log.Debug(e.runCtx, "draft opened",
		logger.String("key", id.Key),
		logger.String("mode", string(id.Mode)),
		logger.Bool("scoring", form != nil))
}

// switchAwayLocked persists the open draft before another one replaces it.
func (e *Editor) switchAwayLocked() {
	if !e.open {
		return
	}
	if e.localDirty {
		e.writeLocalLocked()
	}
	if e.remoteDirty {
		e.pushLocked()
	}
	e.stopTimersLocked()
	if e.fetchCancel != nil {
		e.fetchCancel()
		e.fetchCancel = nil
	}
}

// formFor returns the form for sport, fetching it on first use. Failures are
// not cached so the next selection of the sport tries again.
func (e *Editor) formFor(ctx context.Context, sport string) *rubric.Form {
	e.mu.Lock()
	f, ok := e.forms[sport]
	e.mu.Unlock()
	if ok {
		return &f
	}
	if e.source == nil {
		return nil
	}

	f, err := e.source.ActiveForm(ctx, sport)
	if err == nil {
		err = f.Validate()
	}
	if err != nil {
		e.log.Warn(ctx, "scoring disabled for sport",
			logger.String("sport", sport), logger.Error(err))
		return nil
	}

	e.mu.Lock()
	e.forms[sport] = f
	e.mu.Unlock()
	return &f
}

// Session returns a copy of the open draft.
func (e *Editor) Session() (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return Session{}, ErrNoSession
	}
	s := e.sess
	s.Payload = e.sess.Payload.Clone()
	return s, nil
}

// Status returns the remote sync status.
func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Flush writes pending changes to the local cache immediately, queues any
// pending remote write, and waits until the remote queue has drained.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.open {
		if e.localDirty {
			e.writeLocalLocked()
		}
		if e.remoteDirty {
			e.pushLocked()
		}
		e.stopTimersLocked()
	}
	e.enqueuePendingRemovesLocked()
	e.mu.Unlock()
	return e.WaitIdle(ctx)
}

// WaitIdle waits until every remote job queued so far has been handled.
func (e *Editor) WaitIdle(ctx context.Context) error {
	job, done := queue.Barrier()
	if err := e.queue.Put(ctx, job); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the open draft, drains the remote queue and releases the
// local cache. It is safe to call more than once.
func (e *Editor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		flushErr := e.Flush(ctx)

		e.mu.Lock()
		e.closed = true
		e.stopTimersLocked()
		e.mu.Unlock()

		_ = e.queue.Close()
		select {
		case <-e.worker.Done():
		case <-ctx.Done():
			e.runCancel()
			_ = e.worker.Shutdown(context.Background())
			if flushErr == nil {
				flushErr = ctx.Err()
			}
		}

		e.mu.Lock()
		if e.fetchCancel != nil {
			e.fetchCancel()
		}
		e.mu.Unlock()
		e.runCancel()

		e.closeErr = errors.Join(flushErr, e.cache.Close())
	})
	return e.closeErr
}
