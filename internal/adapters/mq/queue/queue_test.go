package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/scoutnotes/internal/domain/draftkey"
)

func upsertJob(n int) Job {
	return Job{Kind: KindUpsert, Key: draftkey.DeriveAutosaveKey("football", fmt.Sprintf("film-%d", n)), Epoch: uint64(n)}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job := upsertJob(1)
	if !q.Enqueue(ctx, job) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Key != job.Key || got.Kind != KindUpsert {
		t.Errorf("expected %v, got %v", job.Key, got.Key)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	_ = q.Close()
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, upsertJob(1)) || !q.Enqueue(ctx, upsertJob(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, upsertJob(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}

	// Put waits for space until its context gives up
	putCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Put(putCtx, upsertJob(3)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Ordering(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			if err := q.Put(ctx, upsertJob(i)); err != nil {
				t.Errorf("unexpected put error: %v", err)
				return
			}
		}
		_ = q.Close()
	}()

	next := 0
	for j := range q.Dequeue(ctx) {
		if j.Epoch != uint64(next) {
			t.Fatalf("expected job %d, got %d", next, j.Epoch)
		}
		next++
	}
	if next != n {
		t.Errorf("expected %d jobs, got %d", n, next)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, upsertJob(1)) || !q.Enqueue(ctx, upsertJob(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, upsertJob(3)) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.Put(ctx, upsertJob(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued jobs still drain before the channel closes
	drained := 0
	timeout := time.After(time.Second)
	jobs := q.Dequeue(ctx)
	for {
		select {
		case _, ok := <-jobs:
			if !ok {
				if drained != 2 {
					t.Errorf("expected 2 drained jobs, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}

func TestBarrier(t *testing.T) {
	job, done := Barrier()
	if job.Kind != KindBarrier || job.Kind.String() != "barrier" {
		t.Errorf("expected barrier job, got %v", job.Kind)
	}
	close(job.Done)
	select {
	case <-done:
	default:
		t.Error("expected done to be closed")
	}
}
