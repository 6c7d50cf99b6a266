package parallel

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// WorkerPool manages a pool of worker goroutines
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // guards taskQueue against close during send
	closed    bool
	onPanic   func(recovered any)
}

// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
var ErrTooManyWorkers = fmt.Errorf("worker count exceeds maximum")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithPanicHandler installs a callback invoked with the value recovered from
// a panicking task. The worker keeps running.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(wp *WorkerPool) {
		wp.onPanic = fn
	}
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers. A non-positive count yields a single worker.
func NewWorkerPool(workers int, opts ...Option) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}

	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*2),
	}
	for _, opt := range opts {
		opt(pool)
	}

	pool.start()
	return pool, nil
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil && wp.onPanic != nil {
			wp.onPanic(r)
		}
	}()
	task()
}

// Submit adds a task to the worker pool.
// Returns false if the pool is closed.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}

	wp.taskQueue <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Wait waits for all submitted tasks to complete. The pool cannot be reused.
func (wp *WorkerPool) Wait() {
	wp.Close()
}

// ForEach runs fn(i) for every i in [0, n) on a fresh pool of the given size
// and returns once all calls completed. Work is split into contiguous chunks.
// The context is checked before each chunk starts; a cancelled context skips
// the remaining chunks and its error is returned. A panic inside fn is
// reported as an error.
func ForEach(ctx context.Context, workers, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}

	var (
		errMu    sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	pool, err := NewWorkerPool(workers, WithPanicHandler(func(r any) {
		setErr(fmt.Errorf("task panic: %v", r))
	}))
	if err != nil {
		return err
	}

	chunk := n / (pool.workers * 4)
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		lo, hi := start, end
		pool.Submit(func() {
			if err := ctx.Err(); err != nil {
				setErr(err)
				return
			}
			for i := lo; i < hi; i++ {
				fn(i)
			}
		})
	}
	pool.Wait()

	return firstErr
}
