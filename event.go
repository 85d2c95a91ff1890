package relay

import (
	"net"
)

type Direction int

const (
	DIRECTION_IN  Direction = 1
	DIRECTION_OUT Direction = 2
)

func (d Direction) String() string {
	if d == DIRECTION_OUT {
		return "out"
	}
	return "in"
}

// Observer receives lifecycle events. Hooks run on the reactor goroutine or on
// a worker and must not block.
type Observer interface {
	OnAccept(fd int, addr net.Addr)
	OnClose(fd int)
	OnError(fd int, code ErrorCode, err error)
	OnBytes(fd int, dir Direction, n int)
}

type OnAcceptEvent func(fd int, addr net.Addr)
type OnCloseEvent func(fd int)
type OnErrorEvent func(fd int, code ErrorCode, err error)
type OnBytesEvent func(fd int, dir Direction, n int)

// ObserverFuncs adapts plain callbacks to Observer; nil fields are skipped.
type ObserverFuncs struct {
	Accept OnAcceptEvent
	Close  OnCloseEvent
	Error  OnErrorEvent
	Bytes  OnBytesEvent
}

func (o ObserverFuncs) OnAccept(fd int, addr net.Addr) {
	if o.Accept != nil {
		o.Accept(fd, addr)
	}
}

func (o ObserverFuncs) OnClose(fd int) {
	if o.Close != nil {
		o.Close(fd)
	}
}

func (o ObserverFuncs) OnError(fd int, code ErrorCode, err error) {
	if o.Error != nil {
		o.Error(fd, code, err)
	}
}

func (o ObserverFuncs) OnBytes(fd int, dir Direction, n int) {
	if o.Bytes != nil {
		o.Bytes(fd, dir, n)
	}
}

type multiObserver []Observer

// MultiObserver fans every event out to all non-nil observers in order.
func MultiObserver(observers ...Observer) Observer {
	var list = make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

func (m multiObserver) OnAccept(fd int, addr net.Addr) {
	for _, o := range m {
		o.OnAccept(fd, addr)
	}
}

func (m multiObserver) OnClose(fd int) {
	for _, o := range m {
		o.OnClose(fd)
	}
}

func (m multiObserver) OnError(fd int, code ErrorCode, err error) {
	for _, o := range m {
		o.OnError(fd, code, err)
	}
}

func (m multiObserver) OnBytes(fd int, dir Direction, n int) {
	for _, o := range m {
		o.OnBytes(fd, dir, n)
	}
}
