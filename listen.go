package relay

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Run drives the event loop until ctx is done or Stop is called.
func (r *Reactor) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var stop = context.AfterFunc(ctx, r.Stop)
	defer stop()

	for !r.stopping.Load() {
		if err := r.step(); err != nil {
			r.observer.OnError(-1, ERROR_EPOLL_WAIT, err)
			return err
		}
	}
	return nil
}

// step runs one loop iteration: wait, drain the backlog, re-arm accepts,
// dispatch completions, then pick up work handed over by the workers.
func (r *Reactor) step() error {
	if err := r.ring.SubmitAndWait(r.waitTimeout()); err != nil {
		return fmt.Errorf("submit and wait: %w", err)
	}

	if _, err := r.backlog.DrainInto(r.push); err != nil {
		r.observer.OnError(-1, ERROR_SUBMIT, err)
	}
	r.armAccepts()

	r.completions = r.ring.Completions(r.completions[:0])
	for i := range r.completions {
		r.dispatch(r.completions[i])
	}

	for _, req := range r.conns.takeClosing() {
		if c, ok := r.conns.Get(req.conn.Fd); ok && c == req.conn {
			r.closeConnection(c, req.code, req.err)
		}
	}
	for _, fd := range r.conns.TakeDirty() {
		r.armWrite(fd)
	}
	r.reapIdle()
	return nil
}

// waitTimeout bounds the wait so that idle sweeps and the end of an accept
// pause are not missed.
func (r *Reactor) waitTimeout() int {
	var timeout = r.opts.WaitTimeout
	if r.opts.IdleTimeout > 0 {
		timeout = capTimeout(timeout, r.opts.IdleTimeout/2)
	}
	if r.acceptArmed < r.opts.AcceptConcurrency {
		if rest := r.acceptPause.Sub(r.clock.Now()); rest > 0 {
			timeout = capTimeout(timeout, rest)
		}
	}
	return timeout
}

func capTimeout(timeout int, d time.Duration) int {
	var ms = int(d / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	if timeout < 0 || timeout > ms {
		return ms
	}
	return timeout
}

// armAccepts keeps AcceptConcurrency accepts outstanding on the listener. After
// a hard accept error, such as running out of descriptors, re-arming waits
// until the pause is over.
func (r *Reactor) armAccepts() {
	if r.clock.Now().Before(r.acceptPause) {
		return
	}
	for r.acceptArmed < r.opts.AcceptConcurrency {
		if err := r.ring.Push(entryFor(r.acceptToken, AcceptOp{Fd: r.listenFd})); err != nil {
			return
		}
		r.acceptArmed++
	}
}

func (r *Reactor) reapIdle() {
	if r.opts.IdleTimeout <= 0 {
		return
	}
	var now = r.clock.Now()
	if now.Sub(r.lastSweep) < r.opts.IdleTimeout/2 {
		return
	}
	r.lastSweep = now
	for _, fd := range r.conns.Idle(now, r.opts.IdleTimeout) {
		if c, ok := r.conns.Get(fd); ok {
			r.closeConnection(c, ERROR_IDLE_TIMEOUT, ErrIdleTimeout)
		}
	}
}
