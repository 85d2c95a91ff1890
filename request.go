package relay

// offload queues a filled buffer on the connection inbox and makes sure one
// drain task runs for it. Inbound data of one connection is therefore decoded
// in read order even with several workers.
func (r *Reactor) offload(c *Connection, buf *Buffer, n int) {
	var ok, start = r.conns.PushInbound(c.Fd, buf, n)
	if !ok {
		r.releaseBuffer(c.Fd, buf)
		return
	}
	if !start {
		return
	}
	if r.workers == nil {
		r.drainInbound(c)
		return
	}
	if err := r.workers.Submit(func() { r.drainInbound(c) }); err != nil {
		r.drainInbound(c)
	}
}

func (r *Reactor) drainInbound(c *Connection) {
	for {
		var in, ok = r.conns.PopInbound(c)
		if !ok {
			return
		}
		r.decode(c, in)
	}
}

// decode splits one read into frames, fans them out and gives the buffer back.
// Complete frames ahead of a framing error are still delivered.
func (r *Reactor) decode(c *Connection, in inbound) {
	defer r.releaseBuffer(c.Fd, in.buf)
	var frames, rest, err = r.coord.Framer().Decode(c.carry, in.buf.B[:in.n])
	r.coord.Deliver(c, frames...)
	if err != nil {
		c.carry = nil
		if r.conns.RequestClose(c, ERROR_FRAME, err) {
			r.wake()
		}
		return
	}
	c.carry = rest
}
