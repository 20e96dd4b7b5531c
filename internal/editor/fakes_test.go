package editor_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/scoutnotes/internal/adapters/remote"
	"github.com/okian/scoutnotes/internal/domain/draft"
)

// fakeRemote is an in-memory draft store with fault injection.
type fakeRemote struct {
	mu      sync.Mutex
	records map[string]draft.Record
	upserts int
	removes int
	fetches int

	upsertErr error
	fetchErr  error
	removeErr error
	// gate, when set, blocks FetchByKey until closed or ctx is done.
	gate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]draft.Record{}}
}

func (f *fakeRemote) FetchByKey(ctx context.Context, key string) (draft.Record, error) {
	f.mu.Lock()
	gate := f.gate
	f.fetches++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return draft.Record{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return draft.Record{}, f.fetchErr
	}
	rec, ok := f.records[key]
	if !ok {
		return draft.Record{}, remote.ErrNotFound
	}
	rec.Payload = rec.Payload.Clone()
	return rec, nil
}

func (f *fakeRemote) Upsert(_ context.Context, in draft.UpsertInput) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return time.Time{}, f.upsertErr
	}
	f.upserts++
	at := time.Now().UTC()
	f.records[in.Key] = in.Record("ev-1", at)
	return at, nil
}

func (f *fakeRemote) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removes++
	delete(f.records, key)
	return nil
}

func (f *fakeRemote) put(rec draft.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.Key] = rec
}

func (f *fakeRemote) get(key string) (draft.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	return rec, ok
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func (f *fakeRemote) setUpsertErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

func (f *fakeRemote) setGate(g chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = g
}

var errRemoteDown = errors.New("remote down")

// eventually polls cond until it holds or the timeout passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
