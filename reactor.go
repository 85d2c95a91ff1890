package relay

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
)

// Reactor owns the listening socket and the ring and drives every connection
// from a single goroutine.
type Reactor struct {
	opts        Options
	ring        Ring
	listenFd    int
	addr        net.Addr
	tokens      *slab[Op]
	backlog     *Backlog
	buffers     *BufferPool
	workers     *WorkerPool
	conns       *Registry
	coord       *Coordinator
	observer    Observer
	clock       clockwork.Clock
	acceptToken Handle
	acceptArmed int
	acceptPause time.Time
	completions []Completion
	lastSweep   time.Time
	stopping    atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

func newReactor(opts Options, ring Ring, listenFd int, addr net.Addr) (*Reactor, error) {
	opts = opts.withDefaults()
	var r = &Reactor{
		opts:        opts,
		ring:        ring,
		listenFd:    listenFd,
		addr:        addr,
		tokens:      newSlab[Op](opts.RingEntries),
		backlog:     NewBacklog(),
		buffers:     NewBufferPool(opts.ReadBuffer, opts.BufferCapacity),
		conns:       NewRegistry(),
		observer:    opts.Observer,
		clock:       opts.Clock,
		completions: make([]Completion, 0, opts.MaxEvents),
	}
	r.lastSweep = r.clock.Now()
	if opts.Workers > 0 {
		var wp, err = NewWorkerPool(opts.Workers, opts.WorkerQueue)
		if err != nil {
			return nil, err
		}
		wp.SetPanicHandler(func(v interface{}) {
			r.observer.OnError(-1, ERROR_TASK_PANIC, fmt.Errorf("task panic: %v", v))
		})
		r.workers = wp
	}
	var framer = NewFramer(opts.Framing, opts.FrameSize, opts.Delimiter)
	r.coord = NewCoordinator(r.conns, opts.Policy, framer, r.wake)
	r.acceptToken = r.tokens.Insert(AcceptOp{Fd: listenFd})
	r.armAccepts()
	return r, nil
}

// Stop makes Run return after the current iteration. It may be called from
// any goroutine, more than once.
func (r *Reactor) Stop() {
	if r.stopping.CompareAndSwap(false, true) {
		r.wake()
	}
}

// Close tears down every connection, the listening socket and the ring, then
// shuts the worker pool down. Call it after Run has returned.
func (r *Reactor) Close() error {
	r.closeOnce.Do(func() {
		r.Stop()
		for _, fd := range r.conns.Fds() {
			if c, ok := r.conns.Get(fd); ok {
				r.closeConnection(c, 0, nil)
			}
		}
		var err error
		if r.listenFd >= 0 {
			if e := r.ring.Release(r.listenFd); e != nil {
				err = multierr.Append(err, fmt.Errorf("close listener: %w", e))
			}
			r.listenFd = -1
		}
		if e := r.ring.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("close ring: %w", e))
		}
		if r.workers != nil {
			r.workers.Shutdown()
		}
		if err != nil {
			r.observer.OnError(-1, ERROR_STOP, err)
		}
		r.closeErr = err
	})
	return r.closeErr
}

func (r *Reactor) wake() {
	if err := r.ring.Wake(); err != nil && !r.stopping.Load() {
		r.observer.OnError(-1, ERROR_SUBMIT, fmt.Errorf("wake: %w", err))
	}
}

func (r *Reactor) Addr() net.Addr {
	return r.addr
}

func (r *Reactor) Connections() int {
	return r.conns.Len()
}

func (r *Reactor) Registry() *Registry {
	return r.conns
}

func (r *Reactor) Buffers() *BufferPool {
	return r.buffers
}

// Workers returns nil when decoding runs on the reactor goroutine.
func (r *Reactor) Workers() *WorkerPool {
	return r.workers
}

func (r *Reactor) BacklogLen() int {
	return r.backlog.Len()
}
