package relay

import (
	"net"
	"sync"
	"sync/atomic"
)

// fakeRing records submissions and returns completions injected by the test.
// Entries move from sq to armed on SubmitAndWait; take removes an armed entry
// the way a real completion would.
type fakeRing struct {
	capacity int
	sq       []Entry
	armed    []Entry
	cq       []Completion
	released []int
	waitErr  error
	closed   bool
	wakes    atomic.Int32

	mu sync.Mutex
}

func newFakeRing(capacity int) *fakeRing {
	return &fakeRing{capacity: capacity}
}

func (f *fakeRing) Push(e Entry) error {
	if f.closed {
		return ErrRingClosed
	}
	if len(f.sq) >= f.capacity {
		return ErrRingFull
	}
	f.sq = append(f.sq, e)
	return nil
}

func (f *fakeRing) SubmitAndWait(timeout int) error {
	if f.waitErr != nil {
		return f.waitErr
	}
	f.armed = append(f.armed, f.sq...)
	f.sq = f.sq[:0]
	return nil
}

func (f *fakeRing) Completions(dst []Completion) []Completion {
	dst = append(dst, f.cq...)
	f.cq = f.cq[:0]
	return dst
}

func (f *fakeRing) Setup(fd int) error {
	return nil
}

func (f *fakeRing) Release(fd int) error {
	f.mu.Lock()
	f.released = append(f.released, fd)
	f.mu.Unlock()
	var kept = f.sq[:0]
	for _, e := range f.sq {
		if e.Fd != fd {
			kept = append(kept, e)
		}
	}
	f.sq = kept
	var armed = f.armed[:0]
	for _, e := range f.armed {
		if e.Fd != fd {
			armed = append(armed, e)
		}
	}
	f.armed = armed
	return nil
}

func (f *fakeRing) Wake() error {
	f.wakes.Add(1)
	return nil
}

func (f *fakeRing) Close() error {
	f.closed = true
	return nil
}

// take removes and returns the first armed entry for fd with code op.
func (f *fakeRing) take(fd int, op OpCode) (Entry, bool) {
	for i, e := range f.armed {
		if e.Fd == fd && e.Op == op {
			f.armed = append(f.armed[:i], f.armed[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// pending counts entries for fd with code op that are queued or armed.
func (f *fakeRing) pending(fd int, op OpCode) int {
	var n int
	for _, list := range [2][]Entry{f.sq, f.armed} {
		for _, e := range list {
			if e.Fd == fd && e.Op == op {
				n++
			}
		}
	}
	return n
}

func (f *fakeRing) complete(user uint64, result int) {
	f.cq = append(f.cq, Completion{User: user, Result: result})
}

func (f *fakeRing) completeAccept(user uint64, fd int, port int) {
	f.cq = append(f.cq, Completion{
		User:   user,
		Result: fd,
		Addr:   &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
	})
}

func (f *fakeRing) wasReleased(fd int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.released {
		if v == fd {
			return true
		}
	}
	return false
}

var _ Ring = (*fakeRing)(nil)

type recordedError struct {
	fd   int
	code ErrorCode
	err  error
}

// recorder collects observer events; workers may report concurrently.
type recorder struct {
	mu       sync.Mutex
	accepted []int
	closed   []int
	errors   []recordedError
	bytesIn  int
	bytesOut int
}

func (rc *recorder) observer() Observer {
	return ObserverFuncs{
		Accept: func(fd int, addr net.Addr) {
			rc.mu.Lock()
			rc.accepted = append(rc.accepted, fd)
			rc.mu.Unlock()
		},
		Close: func(fd int) {
			rc.mu.Lock()
			rc.closed = append(rc.closed, fd)
			rc.mu.Unlock()
		},
		Error: func(fd int, code ErrorCode, err error) {
			rc.mu.Lock()
			rc.errors = append(rc.errors, recordedError{fd: fd, code: code, err: err})
			rc.mu.Unlock()
		},
		Bytes: func(fd int, dir Direction, n int) {
			rc.mu.Lock()
			if dir == DIRECTION_IN {
				rc.bytesIn += n
			} else {
				rc.bytesOut += n
			}
			rc.mu.Unlock()
		},
	}
}

func (rc *recorder) codes() []ErrorCode {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var codes = make([]ErrorCode, 0, len(rc.errors))
	for _, e := range rc.errors {
		codes = append(codes, e.code)
	}
	return codes
}
