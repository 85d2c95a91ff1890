package relay

import (
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
)

type inbound struct {
	buf *Buffer
	n   int
}

// Connection is the per-descriptor state. The queues and flags are only
// touched through Registry methods; readToken and writeToken belong to the
// reactor goroutine.
type Connection struct {
	Fd        int
	Id        uuid.UUID
	Addr      net.Addr
	Accepted  time.Time
	Timestamp time.Time // last inbound activity

	outbound   *queue.Queue // *Outbound
	inbox      *queue.Queue // inbound
	writing    bool
	processing bool
	dirty      bool

	// carry is owned by whichever task is draining the inbox.
	carry []byte

	readToken  Handle
	writeToken Handle
}

func newConnection(fd int, addr net.Addr, now time.Time) *Connection {
	return &Connection{
		Fd:        fd,
		Id:        uuid.New(),
		Addr:      addr,
		Accepted:  now,
		Timestamp: now,
		outbound:  queue.New(),
		inbox:     queue.New(),
	}
}

// Registry maps live descriptors to connections. It is the only structure
// shared between the reactor and the workers; every access takes mu and no
// I/O happens while it is held.
type Registry struct {
	mu      sync.Mutex
	list    map[int]*Connection
	order   []int
	dirty   []int
	closing []closeRequest
}

func NewRegistry() *Registry {
	return &Registry{
		list: make(map[int]*Connection),
	}
}

func (rg *Registry) Insert(c *Connection) error {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if _, ok := rg.list[c.Fd]; ok {
		return ErrDuplicateConnection
	}
	rg.list[c.Fd] = c
	rg.order = append(rg.order, c.Fd)
	return nil
}

func (rg *Registry) Get(fd int) (*Connection, bool) {
	rg.mu.Lock()
	var c, ok = rg.list[fd]
	rg.mu.Unlock()
	return c, ok
}

func (rg *Registry) Remove(fd int) (*Connection, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var c, ok = rg.list[fd]
	if !ok {
		return nil, false
	}
	delete(rg.list, fd)
	for i, v := range rg.order {
		if v == fd {
			rg.order = append(rg.order[:i], rg.order[i+1:]...)
			break
		}
	}
	return c, true
}

func (rg *Registry) Len() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return len(rg.list)
}

// Range calls fn for every connection in insertion order on a snapshot, so
// fn may call back into the registry.
func (rg *Registry) Range(fn func(c *Connection) bool) {
	for _, c := range rg.Connections() {
		if !fn(c) {
			return
		}
	}
}

// Fds returns the registered descriptors in insertion order.
func (rg *Registry) Fds() []int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var fds = make([]int, len(rg.order))
	copy(fds, rg.order)
	return fds
}

// Connections returns the registered connections in insertion order.
func (rg *Registry) Connections() []*Connection {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var conns = make([]*Connection, 0, len(rg.order))
	for _, fd := range rg.order {
		conns = append(conns, rg.list[fd])
	}
	return conns
}

// Owns reports whether c is still the registered connection of its descriptor.
func (rg *Registry) Owns(c *Connection) bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.list[c.Fd] == c
}

// Enqueue appends msg to the outbound queue of c. It reports whether c is
// still registered and whether the reactor must be woken to arm a write.
func (rg *Registry) Enqueue(c *Connection, msg *Outbound) (bool, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.list[c.Fd] != c {
		return false, false
	}
	c.outbound.Add(msg)
	if c.writing || c.dirty {
		return true, false
	}
	c.dirty = true
	rg.dirty = append(rg.dirty, c.Fd)
	return true, len(rg.dirty) == 1
}

// TakeDirty returns the descriptors with queued output and no write in flight.
func (rg *Registry) TakeDirty() []int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if len(rg.dirty) == 0 {
		return nil
	}
	var fds = rg.dirty
	rg.dirty = nil
	for _, fd := range fds {
		if c, ok := rg.list[fd]; ok {
			c.dirty = false
		}
	}
	return fds
}

// PopOutbound takes the head of the outbound queue and marks the connection
// as writing. With nothing queued the writing flag is cleared.
func (rg *Registry) PopOutbound(fd int) (*Outbound, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var c, ok = rg.list[fd]
	if !ok {
		return nil, false
	}
	if c.outbound.Length() == 0 {
		c.writing = false
		return nil, false
	}
	c.writing = true
	return c.outbound.Remove().(*Outbound), true
}

func (rg *Registry) OutboundLen(fd int) int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if c, ok := rg.list[fd]; ok {
		return c.outbound.Length()
	}
	return 0
}

// PushInbound queues a filled buffer for decoding. It returns true when the
// caller must start a drain task for this connection.
func (rg *Registry) PushInbound(fd int, buf *Buffer, n int) (bool, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var c, ok = rg.list[fd]
	if !ok {
		return false, false
	}
	c.inbox.Add(inbound{buf: buf, n: n})
	if c.processing {
		return true, false
	}
	c.processing = true
	return true, true
}

// PopInbound hands the next queued buffer of c to the draining task. When the
// inbox is empty, or c is no longer the registered owner of its descriptor,
// the processing flag is cleared and ok is false.
func (rg *Registry) PopInbound(c *Connection) (inbound, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.list[c.Fd] != c || c.inbox.Length() == 0 {
		c.processing = false
		return inbound{}, false
	}
	return c.inbox.Remove().(inbound), true
}

type closeRequest struct {
	conn *Connection
	code ErrorCode
	err  error
}

// RequestClose asks the reactor to tear c down. It reports whether the
// reactor must be woken.
func (rg *Registry) RequestClose(c *Connection, code ErrorCode, err error) bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.list[c.Fd] != c {
		return false
	}
	rg.closing = append(rg.closing, closeRequest{conn: c, code: code, err: err})
	return len(rg.closing) == 1
}

func (rg *Registry) takeClosing() []closeRequest {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var reqs = rg.closing
	rg.closing = nil
	return reqs
}

func (rg *Registry) Touch(fd int, now time.Time) {
	rg.mu.Lock()
	if c, ok := rg.list[fd]; ok {
		c.Timestamp = now
	}
	rg.mu.Unlock()
}

// Idle returns descriptors whose last inbound activity is older than timeout.
func (rg *Registry) Idle(now time.Time, timeout time.Duration) []int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var fds []int
	for _, fd := range rg.order {
		if now.Sub(rg.list[fd].Timestamp) >= timeout {
			fds = append(fds, fd)
		}
	}
	return fds
}

// detach empties the queues of a removed connection and returns what they
// held so the caller can release it outside the lock.
func (rg *Registry) detach(c *Connection) ([]*Outbound, []*Buffer) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var out = make([]*Outbound, 0, c.outbound.Length())
	for c.outbound.Length() > 0 {
		out = append(out, c.outbound.Remove().(*Outbound))
	}
	var bufs = make([]*Buffer, 0, c.inbox.Length())
	for c.inbox.Length() > 0 {
		bufs = append(bufs, c.inbox.Remove().(inbound).buf)
	}
	c.writing = false
	return out, bufs
}
