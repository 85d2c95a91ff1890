//go:build linux

package relay

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

type fdState struct {
	accepts []uint64
	read    *Entry // OP_POLL or OP_READ
	write   *Entry
	mask    uint32
}

// EpollRing provides completion semantics on top of level-triggered epoll:
// pushed entries arm interest on their descriptor and the syscall is performed
// once epoll reports the descriptor ready. A would-block result leaves the
// entry armed.
type EpollRing struct {
	epfd      int
	wakefd    int
	entries   int
	keepAlive bool
	sq        []Entry
	cq        []Completion
	fds       map[int]*fdState
	events    []unix.EpollEvent
	closed    bool
}

func NewEpollRing(entries int, maxEvents int, keepAlive bool) (*EpollRing, error) {
	if entries <= 0 {
		entries = DEFAULT_RING_ENTRIES
	}
	if maxEvents <= 0 {
		maxEvents = DEFAULT_EPOLL_EVENTS
	}
	var epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	var wakefd int
	if wakefd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	var event = unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &event); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &EpollRing{
		epfd:      epfd,
		wakefd:    wakefd,
		entries:   entries,
		keepAlive: keepAlive,
		sq:        make([]Entry, 0, entries),
		fds:       make(map[int]*fdState),
		events:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

func (r *EpollRing) Push(e Entry) error {
	if r.closed {
		return ErrRingClosed
	}
	if len(r.sq) >= r.entries {
		return ErrRingFull
	}
	r.sq = append(r.sq, e)
	return nil
}

func (r *EpollRing) SubmitAndWait(timeout int) error {
	if r.closed {
		return ErrRingClosed
	}
	for i := range r.sq {
		r.arm(r.sq[i])
	}
	r.sq = r.sq[:0]
	if len(r.cq) > 0 {
		timeout = 0
	}

	var n, err = unix.EpollWait(r.epfd, r.events, timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll wait: %w", err)
	}
	var i int
	for i = 0; i < n; i++ {
		var fd = int(r.events[i].Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		var st, ok = r.fds[fd]
		if !ok {
			continue
		}
		r.service(fd, st, r.events[i].Events)
		if err = r.rearm(fd, st); err != nil {
			r.abort(fd, st, err)
		}
	}
	return nil
}

func (r *EpollRing) Completions(dst []Completion) []Completion {
	dst = append(dst, r.cq...)
	r.cq = r.cq[:0]
	return dst
}

func (r *EpollRing) Setup(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set nonblock: %w", err)
	}
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if r.keepAlive {
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
	return nil
}

func (r *EpollRing) Release(fd int) error {
	var err error
	if st, ok := r.fds[fd]; ok {
		if st.mask != 0 {
			err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		delete(r.fds, fd)
	}
	var kept = r.sq[:0]
	for _, e := range r.sq {
		if e.Fd != fd {
			kept = append(kept, e)
		}
	}
	r.sq = kept
	return multierr.Append(err, unix.Close(fd))
}

func (r *EpollRing) Wake() error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	var _, err = unix.Write(r.wakefd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (r *EpollRing) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return multierr.Combine(unix.Close(r.wakefd), unix.Close(r.epfd))
}

func (r *EpollRing) drainWake() {
	var b [8]byte
	for {
		if _, err := unix.Read(r.wakefd, b[:]); err != nil {
			return
		}
	}
}

func (r *EpollRing) complete(user uint64, result int) {
	r.cq = append(r.cq, Completion{User: user, Result: result})
}

func (r *EpollRing) arm(e Entry) {
	var st, ok = r.fds[e.Fd]
	if !ok {
		st = &fdState{}
		r.fds[e.Fd] = st
	}
	switch e.Op {
	case OP_ACCEPT:
		st.accepts = append(st.accepts, e.User)
	case OP_POLL, OP_READ:
		if st.read != nil {
			r.complete(e.User, -int(unix.EBUSY))
			return
		}
		st.read = &e
	case OP_WRITE:
		if st.write != nil {
			r.complete(e.User, -int(unix.EBUSY))
			return
		}
		st.write = &e
	}
	if err := r.rearm(e.Fd, st); err != nil {
		r.abort(e.Fd, st, err)
	}
}

func (r *EpollRing) service(fd int, st *fdState, events uint32) {
	var readable = events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0
	var writable = events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0

	if readable {
		for len(st.accepts) > 0 {
			var nfd, sa, err = unix.Accept(fd)
			if err != nil {
				if isTransient(err) {
					break
				}
				r.complete(st.accepts[0], -errnoOf(err))
				st.accepts = st.accepts[1:]
				break
			}
			r.cq = append(r.cq, Completion{User: st.accepts[0], Result: nfd, Addr: sockaddrToAddr(sa)})
			st.accepts = st.accepts[1:]
		}
		if e := st.read; e != nil {
			switch e.Op {
			case OP_POLL:
				st.read = nil
				r.complete(e.User, int(events&(unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP)))
			case OP_READ:
				var n, err = unix.Read(fd, e.Buf)
				if err == nil {
					st.read = nil
					r.complete(e.User, n)
				} else if !isTransient(err) {
					st.read = nil
					r.complete(e.User, -errnoOf(err))
				}
			}
		}
	}

	if writable && st.write != nil {
		var e = st.write
		var n, err = unix.SendmsgN(fd, e.Buf, nil, nil, unix.MSG_NOSIGNAL)
		if err == nil {
			st.write = nil
			r.complete(e.User, n)
		} else if !isTransient(err) {
			st.write = nil
			r.complete(e.User, -errnoOf(err))
		}
	}
}

// rearm brings the epoll registration of fd in line with its pending entries.
func (r *EpollRing) rearm(fd int, st *fdState) error {
	var mask uint32
	if len(st.accepts) > 0 || st.read != nil {
		mask |= unix.EPOLLIN
	}
	if st.write != nil {
		mask |= unix.EPOLLOUT
	}
	if mask == st.mask {
		if mask == 0 {
			delete(r.fds, fd)
		}
		return nil
	}

	var err error
	switch {
	case mask == 0:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		st.mask = 0
		delete(r.fds, fd)
		return err
	case st.mask == 0:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
	default:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
	}
	if err != nil {
		return err
	}
	st.mask = mask
	return nil
}

// abort fails every entry pending on fd with err.
func (r *EpollRing) abort(fd int, st *fdState, err error) {
	var res = -errnoOf(err)
	for _, user := range st.accepts {
		r.complete(user, res)
	}
	if st.read != nil {
		r.complete(st.read.User, res)
	}
	if st.write != nil {
		r.complete(st.write.User, res)
	}
	if st.mask != 0 {
		unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	delete(r.fds, fd)
}

var _ Ring = (*EpollRing)(nil)
