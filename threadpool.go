package relay

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/wuyongjia/threadpool"
)

const DEFAULT_MAX_WORKERS = 16

type Task func()

// stopWorker makes the worker thread that receives it exit.
type stopWorker struct{}

type PoolState int32

const (
	POOL_RUNNING       PoolState = 0
	POOL_SHUTTING_DOWN PoolState = 1
	POOL_STOPPED       PoolState = 2
)

func (s PoolState) String() string {
	switch s {
	case POOL_RUNNING:
		return "running"
	case POOL_SHUTTING_DOWN:
		return "shutting_down"
	case POOL_STOPPED:
		return "stopped"
	}
	return "unknown"
}

// WorkerPool runs tasks on a fixed set of threads, off the reactor goroutine.
// Accepted tasks are never dropped: Shutdown waits for all of them.
type WorkerPool struct {
	workers     int
	queueLength int
	mu          sync.Mutex
	state       PoolState
	inflight    int
	pending     sync.WaitGroup
	exited      sync.WaitGroup
	stopped     chan struct{}
	executed    atomic.Int64
	onPanic     func(v interface{})
	tp          *threadpool.Pool
}

func NewWorkerPool(workers int, queueLength int) (*WorkerPool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("worker pool size %d: must be positive", workers)
	}
	if workers > DEFAULT_MAX_WORKERS {
		return nil, fmt.Errorf("worker pool size %d > %d: %w", workers, DEFAULT_MAX_WORKERS, ErrTooManyWorkers)
	}
	if queueLength <= 0 {
		queueLength = DEFAULT_WORKER_QUEUE
	}
	if queueLength < workers {
		return nil, fmt.Errorf("worker queue %d < %d workers: %w", queueLength, workers, ErrWorkerQueueTooShort)
	}
	var wp = &WorkerPool{
		workers:     workers,
		queueLength: queueLength,
		state:       POOL_RUNNING,
		stopped:     make(chan struct{}),
	}
	wp.exited.Add(workers)
	wp.tp = threadpool.NewWithFunc(workers, queueLength, func(payload interface{}) {
		switch p := payload.(type) {
		case Task:
			wp.run(p)
		case stopWorker:
			wp.exited.Done()
			runtime.Goexit()
		}
	})
	return wp, nil
}

// SetPanicHandler installs the hook called with the recovered value when a task panics.
func (wp *WorkerPool) SetPanicHandler(fn func(v interface{})) {
	wp.mu.Lock()
	wp.onPanic = fn
	wp.mu.Unlock()
}

// Submit enqueues task and returns immediately. The number of queued plus
// running tasks never exceeds the queue length; past it ErrQueueFull is returned.
func (wp *WorkerPool) Submit(task Task) error {
	wp.mu.Lock()
	if wp.state != POOL_RUNNING {
		wp.mu.Unlock()
		return ErrPoolStopped
	}
	if wp.inflight >= wp.queueLength {
		wp.mu.Unlock()
		return ErrQueueFull
	}
	wp.inflight++
	wp.pending.Add(1)
	wp.mu.Unlock()

	wp.tp.Invoke(task)
	return nil
}

func (wp *WorkerPool) run(task Task) {
	defer func() {
		if v := recover(); v != nil {
			wp.mu.Lock()
			var fn = wp.onPanic
			wp.mu.Unlock()
			if fn != nil {
				fn(v)
			}
		}
		wp.executed.Add(1)
		wp.mu.Lock()
		wp.inflight--
		wp.mu.Unlock()
		wp.pending.Done()
	}()
	task()
}

// Shutdown stops accepting tasks, waits for every accepted task to finish and
// then for every worker thread to exit. Concurrent and repeated calls block
// until the pool is stopped.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.state != POOL_RUNNING {
		wp.mu.Unlock()
		<-wp.stopped
		return
	}
	wp.state = POOL_SHUTTING_DOWN
	wp.mu.Unlock()

	wp.pending.Wait()
	for i := 0; i < wp.workers; i++ {
		wp.tp.Invoke(stopWorker{})
	}
	wp.exited.Wait()

	wp.mu.Lock()
	wp.state = POOL_STOPPED
	wp.mu.Unlock()
	close(wp.stopped)
}

func (wp *WorkerPool) State() PoolState {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.state
}

func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) Pending() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.inflight
}

func (wp *WorkerPool) Executed() int64 {
	return wp.executed.Load()
}
