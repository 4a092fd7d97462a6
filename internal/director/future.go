package director

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrWorkerClosed is returned for jobs submitted after Close.
var ErrWorkerClosed = errors.New("background worker is closed")

// Future is the pending result of a background job.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(v, err)
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.value = v
	f.err = err
	close(f.done)
}

// Ready reports without blocking whether the job has finished.
func (f *Future[T]) Ready() bool {
	if f == nil {
		return false
	}
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if f == nil {
		return zero, ErrNotReady
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Result returns the value of a finished job. It must only be called once
// Ready reports true.
func (f *Future[T]) Result() (T, error) {
	if !f.Ready() {
		var zero T
		return zero, ErrNotReady
	}
	return f.value, f.err
}

// Worker runs jobs one at a time, in submission order, on a single goroutine.
// Its queue grows as needed, so Submit never blocks.
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []func(context.Context)
	wake   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewWorker starts the worker goroutine. queue sizes the initial backlog.
// Jobs see a context detached from the caller's cancellation; only Close
// stops them early.
func NewWorker(ctx context.Context, queue int) *Worker {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Worker{
		ctx:    wctx,
		cancel: cancel,
		queue:  make([]func(context.Context), 0, max(queue, 0)),
		wake:   make(chan struct{}, 1),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()
		job(w.ctx)
	}
}

func (w *Worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Submit enqueues fn on w and returns its future.
func Submit[T any](w *Worker, name string, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	job := func(ctx context.Context) {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", name, r)
			}
			if err != nil {
				log.Printf("director: job %s failed: %v", name, err)
			}
			f.complete(v, err)
		}()
		v, err = fn(ctx)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		var zero T
		f.complete(zero, ErrWorkerClosed)
		return f
	}
	w.queue = append(w.queue, job)
	w.mu.Unlock()
	w.notify()
	return f
}

// Close stops accepting jobs, cancels the running one and waits for the
// queue to drain. Jobs still queued run with a canceled context.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.notify()
	w.wg.Wait()
}
