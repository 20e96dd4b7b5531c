package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/scoutnotes/internal/adapters/mq/queue"
	"github.com/okian/scoutnotes/internal/adapters/mq/worker"
	logging "github.com/okian/scoutnotes/pkg/logger"
)

// recordingHandler remembers the order jobs arrived in.
type recordingHandler struct {
	mu     sync.Mutex
	seen   []string
	errs   map[string]error
	delays map[string]time.Duration
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errs: map[string]error{}, delays: map[string]time.Duration{}}
}

func (h *recordingHandler) Handle(ctx context.Context, j queue.Job) error {
	h.mu.Lock()
	delay := h.delays[j.Key]
	err := h.errs[j.Key]
	h.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	h.seen = append(h.seen, j.Kind.String()+":"+j.Key)
	h.mu.Unlock()
	return err
}

func (h *recordingHandler) order() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a worker on an ordered queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		h := newRecordingHandler()
		w := worker.New(q, h, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an upsert is slow and a remove for the same key follows", func() {
			h.delays["k1"] = 30 * time.Millisecond
			convey.So(q.Enqueue(ctx, queue.Job{Kind: queue.KindUpsert, Key: "k1"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{Kind: queue.KindRemove, Key: "k1"}), convey.ShouldBeTrue)

			barrier, done := queue.Barrier()
			convey.So(q.Enqueue(ctx, barrier), convey.ShouldBeTrue)
			<-done

			convey.Convey("Then the remove runs after the upsert", func() {
				convey.So(h.order(), convey.ShouldResemble, []string{"upsert:k1", "remove:k1"})
			})
		})

		convey.Convey("When a job fails", func() {
			h.errs["bad"] = errors.New("remote down")
			convey.So(q.Enqueue(ctx, queue.Job{Kind: queue.KindUpsert, Key: "bad"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{Kind: queue.KindFetch, Key: "good"}), convey.ShouldBeTrue)

			barrier, done := queue.Barrier()
			convey.So(q.Enqueue(ctx, barrier), convey.ShouldBeTrue)
			<-done

			convey.Convey("Then later jobs still run", func() {
				convey.So(h.order(), convey.ShouldResemble, []string{"upsert:bad", "fetch:good"})
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Enqueue(ctx, queue.Job{Kind: queue.KindRemove, Key: "last"}), convey.ShouldBeTrue)
			convey.So(q.Close(), convey.ShouldBeNil)

			select {
			case <-w.Done():
			case <-time.After(time.Second):
			}

			convey.Convey("Then pending jobs drain before the worker stops", func() {
				convey.So(h.order(), convey.ShouldResemble, []string{"remove:last"})
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		cancel()
		_ = q.Close()
		<-w.Done()
	})
}

func TestHandlerFunc(t *testing.T) {
	convey.Convey("Given a handler func", t, func() {
		var got queue.Kind
		h := worker.HandlerFunc(func(_ context.Context, j queue.Job) error {
			got = j.Kind
			return nil
		})

		convey.So(h.Handle(context.Background(), queue.Job{Kind: queue.KindFetch}), convey.ShouldBeNil)
		convey.So(got, convey.ShouldEqual, queue.KindFetch)
	})
}
