//go:build linux

package relay

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// New binds the listening socket, creates the epoll ring and the worker pool.
// Any error here is fatal for the process.
func New(opts Options) (*Reactor, error) {
	opts = opts.withDefaults()
	var fd, addr, err = listenSocket(opts.Host, opts.Port, opts.ListenBacklog)
	if err != nil {
		return nil, err
	}
	var ring *EpollRing
	if ring, err = NewEpollRing(opts.RingEntries, opts.MaxEvents, opts.KeepAlive); err != nil {
		unix.Close(fd)
		return nil, err
	}
	var r *Reactor
	if r, err = newReactor(opts, ring, fd, addr); err != nil {
		ring.Close()
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

func listenSocket(host string, port int, backlog int) (int, net.Addr, error) {
	var tcpAddr, err = net.ResolveTCPAddr("tcp4", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return -1, nil, fmt.Errorf("resolve %s: %w", host, err)
	}

	var fd int
	if fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0); err != nil {
		return -1, nil, fmt.Errorf("socket: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("setsockopt TCP_NODELAY: %w", err)
	}

	var sa = unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err = unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("bind %s: %w", tcpAddr, err)
	}
	if err = unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("listen: %w", err)
	}

	var bound unix.Sockaddr
	if bound, err = unix.Getsockname(fd); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("getsockname: %w", err)
	}
	return fd, sockaddrToAddr(bound), nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	}
	return nil
}
