package relay

import (
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"
)

type Policy int

const (
	POLICY_ALL_EXCEPT_SENDER Policy = 0
	POLICY_ECHO              Policy = 1
	POLICY_ALL               Policy = 2
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all-except-sender", "relay":
		return POLICY_ALL_EXCEPT_SENDER, nil
	case "echo":
		return POLICY_ECHO, nil
	case "all":
		return POLICY_ALL, nil
	}
	return POLICY_ALL_EXCEPT_SENDER, fmt.Errorf("%q: %w", s, ErrUnknownPolicy)
}

func (p Policy) String() string {
	switch p {
	case POLICY_ALL_EXCEPT_SENDER:
		return "all-except-sender"
	case POLICY_ECHO:
		return "echo"
	case POLICY_ALL:
		return "all"
	}
	return "unknown"
}

// Outbound is one encoded message queued for one target connection.
type Outbound struct {
	bb   *bytebufferpool.ByteBuffer
	pool *bytebufferpool.Pool
}

func (o *Outbound) Bytes() []byte {
	return o.bb.B
}

func (o *Outbound) Len() int {
	return o.bb.Len()
}

func (o *Outbound) release() {
	if o.bb != nil {
		o.pool.Put(o.bb)
		o.bb = nil
	}
}

// Coordinator selects recipients for an inbound frame and queues a private
// copy on each of them.
type Coordinator struct {
	policy   Policy
	framer   Framer
	registry *Registry
	payloads *bytebufferpool.Pool
	notify   func()
}

func NewCoordinator(registry *Registry, policy Policy, framer Framer, notify func()) *Coordinator {
	if framer == nil {
		framer = RawFramer{}
	}
	if notify == nil {
		notify = func() {}
	}
	return &Coordinator{
		policy:   policy,
		framer:   framer,
		registry: registry,
		payloads: &bytebufferpool.Pool{},
		notify:   notify,
	}
}

func (co *Coordinator) Policy() Policy {
	return co.policy
}

func (co *Coordinator) Framer() Framer {
	return co.framer
}

// Targets returns the recipients of a message from c in registry order. A
// sender that is no longer registered has no recipients.
func (co *Coordinator) Targets(from *Connection) []*Connection {
	if !co.registry.Owns(from) {
		return nil
	}
	switch co.policy {
	case POLICY_ECHO:
		return []*Connection{from}
	case POLICY_ALL:
		return co.registry.Connections()
	}
	var conns = co.registry.Connections()
	var targets = conns[:0]
	for _, c := range conns {
		if c != from {
			targets = append(targets, c)
		}
	}
	return targets
}

// Deliver fans frames out to the targets of from and returns the number of
// enqueued messages. A target that vanished meanwhile is skipped.
func (co *Coordinator) Deliver(from *Connection, frames ...[]byte) int {
	if len(frames) == 0 {
		return 0
	}
	var n int
	var wake bool
	for _, c := range co.Targets(from) {
		for _, frame := range frames {
			var msg = &Outbound{bb: co.payloads.Get(), pool: co.payloads}
			co.framer.Encode(msg.bb, frame)
			var queued, needWake = co.registry.Enqueue(c, msg)
			if !queued {
				msg.release()
				break
			}
			n++
			wake = wake || needWake
		}
	}
	if wake {
		co.notify()
	}
	return n
}
