package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/guardrail/internal/adapters/mq/queue"
	"github.com/okian/guardrail/internal/adapters/mq/worker"
	"github.com/okian/guardrail/internal/domain/model"
	logging "github.com/okian/guardrail/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 128)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(id string) {
	mq.jobs <- model.Run{ID: id, Manifest: model.Manifest{Name: id}}
}

type mockRunner struct {
	mu     sync.Mutex
	errors map[string]error
}

func newMockRunner() *mockRunner {
	return &mockRunner{errors: make(map[string]error)}
}

func (mr *mockRunner) Run(_ context.Context, run model.Run) (model.Report, error) {
	mr.mu.Lock()
	err := mr.errors[run.ID]
	mr.mu.Unlock()
	if err != nil {
		return model.Report{}, err
	}
	rep := model.PendingReport(run)
	rep.Status = model.StatusPassed
	rep.Strategy = "direct"
	return rep, nil
}

func (mr *mockRunner) setError(id string, err error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.errors[id] = err
}

type mockStore struct {
	mu      sync.Mutex
	history map[string][]model.Status
	reports map[string]model.Report
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{history: make(map[string][]model.Status), reports: make(map[string]model.Report)}
}

func (ms *mockStore) Put(_ context.Context, r model.Report) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return ms.err
	}
	ms.history[r.RunID] = append(ms.history[r.RunID], r.Status)
	ms.reports[r.RunID] = r
	return nil
}

func (ms *mockStore) report(id string) (model.Report, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	r, ok := ms.reports[id]
	return r, ok
}

func (ms *mockStore) statuses(id string) []model.Status {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]model.Status(nil), ms.history[id]...)
}

func (ms *mockStore) finished() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	n := 0
	for _, r := range ms.reports {
		if r.Status.Terminal() {
			n++
		}
	}
	return n
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		r := newMockRunner()
		s := newMockStore()
		w := worker.NewInMemoryWorker(q, r, s, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a run is queued", func() {
			q.add("run-1")

			convey.Convey("Then the report moves from running to its final status", func() {
				convey.So(waitFor(func() bool { return len(s.statuses("run-1")) == 2 }), convey.ShouldBeTrue)
				convey.So(s.statuses("run-1"), convey.ShouldResemble, []model.Status{model.StatusRunning, model.StatusPassed})
			})
		})

		convey.Convey("When the runner cannot evaluate a run", func() {
			r.setError("run-2", errors.New("boom"))
			q.add("run-2")

			convey.Convey("Then a failed report carries the reason", func() {
				convey.So(waitFor(func() bool { return s.finished() == 1 }), convey.ShouldBeTrue)
				rep, ok := s.report("run-2")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rep.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(rep.Reason, convey.ShouldEqual, "evaluation aborted: boom")
				convey.So(rep.FinishedAt, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker loop returns", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestInMemoryWorker_StoreFailure(t *testing.T) {
	convey.Convey("Given a worker whose store rejects writes", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		r := newMockRunner()
		s := newMockStore()
		s.err = errors.New("disk full")
		w := worker.NewInMemoryWorker(q, r, s)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a run is queued", func() {
			q.add("run-x")
			_ = q.Close()

			convey.Convey("Then the worker keeps going and nothing is stored", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
				}
				_, ok := s.report("run-x")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		r := newMockRunner()
		s := newMockStore()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, r, s)

			convey.Convey("Then it is sized from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When many runs are queued concurrently", func() {
			pool := worker.NewPool(4, q, r, s)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const total = 100
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < total/5; j++ {
						q.add(fmt.Sprintf("run-%d-%d", p, j))
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then shutdown drains every run", func() {
				err := pool.Shutdown(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.finished(), convey.ShouldEqual, total)
			})
		})

		convey.Convey("When stopped", func() {
			pool := worker.NewPool(2, q, r, s)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)
			pool.Stop()

			convey.Convey("Then new runs are not processed", func() {
				q.add("late")
				time.Sleep(20 * time.Millisecond)
				_, ok := s.report("late")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

// blockingRunner holds every run until its context is cancelled.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ model.Run) (model.Report, error) {
	<-ctx.Done()
	return model.Report{}, ctx.Err()
}

func TestPool_Cancellation(t *testing.T) {
	convey.Convey("Given a pool started with a cancellable context", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		s := newMockStore()
		pool := worker.NewPool(2, q, newMockRunner(), s)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When the context is cancelled before runs are drained", func() {
			cancel()
			for i := 0; i < 10; i++ {
				q.add(fmt.Sprintf("late-%d", i))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then shutdown still finishes every queued run", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.finished(), convey.ShouldEqual, 10)
				for i := 0; i < 10; i++ {
					rep, ok := s.report(fmt.Sprintf("late-%d", i))
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(rep.Status, convey.ShouldEqual, model.StatusPassed)
				}
			})
		})
	})

	convey.Convey("Given a pool whose run never finishes on its own", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		s := newMockStore()
		pool := worker.NewPool(1, q, blockingRunner{}, s)
		pool.Start(context.Background())
		q.add("stuck")
		convey.So(waitFor(func() bool { return len(s.statuses("stuck")) == 1 }), convey.ShouldBeTrue)

		convey.Convey("When shutdown times out", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then the run is aborted and stored before shutdown returns", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				rep, ok := s.report("stuck")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rep.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(rep.Reason, convey.ShouldEqual, "evaluation aborted: context canceled")
			})
		})
	})
}
