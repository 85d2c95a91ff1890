package relay

import (
	"errors"
)

// push hands the operation behind h to the ring. Stale handles belong to a
// connection that is already gone and are dropped.
func (r *Reactor) push(h Handle) error {
	var op, ok = r.tokens.Get(h)
	if !ok {
		return nil
	}
	return r.ring.Push(entryFor(h, op))
}

// submit pushes h, deferring it to the backlog while the ring is full.
func (r *Reactor) submit(h Handle) {
	var err = r.push(h)
	if err == nil {
		return
	}
	if errors.Is(err, ErrRingFull) {
		r.backlog.Push(h)
		return
	}
	r.observer.OnError(-1, ERROR_SUBMIT, err)
}

func (r *Reactor) dispatch(c Completion) {
	var h = Handle(c.User)
	var op, ok = r.tokens.Get(h)
	if !ok {
		return
	}
	switch o := op.(type) {
	case AcceptOp:
		r.acceptAction(c)
	case PollOp:
		r.pollAction(h, o, c)
	case ReadOp:
		r.readAction(h, o, c)
	case WriteOp:
		r.writeAction(h, o, c)
	}
}

func (r *Reactor) acceptAction(c Completion) {
	r.acceptArmed--
	if c.Result < 0 {
		var err = resultError(c.Result)
		if !isTransient(err) {
			r.acceptPause = r.clock.Now().Add(r.opts.AcceptBackoff)
			r.observer.OnError(r.listenFd, ERROR_ACCEPT, err)
		}
		return
	}

	var fd = c.Result
	var err error
	if err = r.ring.Setup(fd); err != nil {
		r.observer.OnError(fd, ERROR_ADD_CONNECTION, err)
		r.ring.Release(fd)
		return
	}
	var conn = newConnection(fd, c.Addr, r.clock.Now())
	if err = r.conns.Insert(conn); err != nil {
		r.observer.OnError(fd, ERROR_ADD_CONNECTION, err)
		r.ring.Release(fd)
		return
	}
	r.observer.OnAccept(fd, c.Addr)
	conn.readToken = r.tokens.Insert(PollOp{Fd: fd})
	r.submit(conn.readToken)
}

func (r *Reactor) pollAction(h Handle, o PollOp, c Completion) {
	var conn, ok = r.conns.Get(o.Fd)
	if !ok {
		r.tokens.Remove(h)
		return
	}
	if c.Result < 0 {
		var err = resultError(c.Result)
		if isTransient(err) {
			r.submit(h)
			return
		}
		r.closeConnection(conn, ERROR_POLL, err)
		return
	}
	if c.Result&POLL_IN == 0 {
		if c.Result&(POLL_ERR|POLL_HUP) != 0 {
			r.closeConnection(conn, ERROR_POLL, ErrHangup)
			return
		}
		r.submit(h)
		return
	}

	var buf, err = r.buffers.Acquire()
	if err != nil {
		r.closeConnection(conn, ERROR_POOL_BUFFER, err)
		return
	}
	r.tokens.Set(h, ReadOp{Fd: o.Fd, Buf: buf})
	r.submit(h)
}

func (r *Reactor) readAction(h Handle, o ReadOp, c Completion) {
	var conn, ok = r.conns.Get(o.Fd)
	if !ok {
		r.tokens.Remove(h)
		r.releaseBuffer(o.Fd, o.Buf)
		return
	}
	if c.Result < 0 {
		var err = resultError(c.Result)
		if isTransient(err) {
			r.submit(h)
			return
		}
		r.closeConnection(conn, ERROR_READ, err)
		return
	}
	if c.Result == 0 {
		r.closeConnection(conn, 0, nil)
		return
	}

	var n = c.Result
	r.observer.OnBytes(o.Fd, DIRECTION_IN, n)
	r.conns.Touch(o.Fd, r.clock.Now())
	r.tokens.Set(h, PollOp{Fd: o.Fd})
	r.offload(conn, o.Buf, n)
	r.submit(h)
}

func (r *Reactor) writeAction(h Handle, o WriteOp, c Completion) {
	var conn, ok = r.conns.Get(o.Fd)
	if !ok {
		r.tokens.Remove(h)
		o.Msg.release()
		return
	}
	if c.Result < 0 {
		var err = resultError(c.Result)
		if isTransient(err) {
			r.submit(h)
			return
		}
		r.closeConnection(conn, ERROR_WRITE, err)
		return
	}

	var written = c.Result
	if written > 0 {
		r.observer.OnBytes(o.Fd, DIRECTION_OUT, written)
	}
	if written < o.Len {
		r.tokens.Set(h, WriteOp{Fd: o.Fd, Msg: o.Msg, Offset: o.Offset + written, Len: o.Len - written})
		r.submit(h)
		return
	}

	r.tokens.Remove(h)
	conn.writeToken = NoHandle
	o.Msg.release()
	r.armWrite(o.Fd)
}

// armWrite starts writing the head of the outbound queue of fd unless a write
// is already in flight.
func (r *Reactor) armWrite(fd int) {
	var conn, ok = r.conns.Get(fd)
	if !ok || conn.writeToken != NoHandle {
		return
	}
	var msg *Outbound
	if msg, ok = r.conns.PopOutbound(fd); !ok {
		return
	}
	conn.writeToken = r.tokens.Insert(WriteOp{Fd: fd, Msg: msg, Offset: 0, Len: msg.Len()})
	r.submit(conn.writeToken)
}

// closeConnection removes conn from the registry, frees its operations and
// buffers, and removes and closes its descriptor. A zero code is a clean close.
func (r *Reactor) closeConnection(conn *Connection, code ErrorCode, err error) {
	if cur, ok := r.conns.Get(conn.Fd); !ok || cur != conn {
		return
	}
	r.conns.Remove(conn.Fd)
	if code != 0 {
		r.observer.OnError(conn.Fd, code, err)
	}

	for _, h := range [2]Handle{conn.readToken, conn.writeToken} {
		var op, ok = r.tokens.Remove(h)
		if !ok {
			continue
		}
		switch o := op.(type) {
		case ReadOp:
			r.releaseBuffer(o.Fd, o.Buf)
		case WriteOp:
			o.Msg.release()
		}
	}
	conn.readToken = NoHandle
	conn.writeToken = NoHandle

	var out, bufs = r.conns.detach(conn)
	for _, msg := range out {
		msg.release()
	}
	for _, buf := range bufs {
		r.releaseBuffer(conn.Fd, buf)
	}

	if e := r.ring.Release(conn.Fd); e != nil {
		r.observer.OnError(conn.Fd, ERROR_CLOSE_CONNECTION, e)
	}
	r.observer.OnClose(conn.Fd)
}

func (r *Reactor) releaseBuffer(fd int, buf *Buffer) {
	if err := r.buffers.Release(buf); err != nil {
		r.observer.OnError(fd, ERROR_POOL_BUFFER, err)
	}
}
