package relay

import (
	"net"
)

// Poll completion results carry the ready event mask.
const (
	POLL_IN  = 0x1
	POLL_OUT = 0x4
	POLL_ERR = 0x8
	POLL_HUP = 0x10
)

// Entry is one submitted operation intent. User is echoed back in the
// matching Completion.
type Entry struct {
	User uint64
	Op   OpCode
	Fd   int
	Buf  []byte
}

// Completion reports the outcome of an Entry. Result follows the syscall
// convention: the new descriptor for accept, the event mask for poll, the byte
// count for read and write, or a negated errno.
type Completion struct {
	User   uint64
	Result int
	Addr   net.Addr
}

// Ring is the submission/completion channel between the reactor and the OS.
// All methods except Wake are called from the reactor goroutine only.
type Ring interface {
	// Push queues e for submission or fails with ErrRingFull.
	Push(e Entry) error
	// SubmitAndWait hands queued entries to the OS and blocks until at least
	// one completion is available, the timeout (ms, -1 infinite) elapses or
	// Wake is called.
	SubmitAndWait(timeout int) error
	// Completions appends every ready completion to dst and clears them.
	Completions(dst []Completion) []Completion
	// Setup prepares an accepted descriptor for non-blocking use.
	Setup(fd int) error
	// Release forgets every operation targeting fd, removes it from the
	// event set and closes it.
	Release(fd int) error
	Wake() error
	Close() error
}
