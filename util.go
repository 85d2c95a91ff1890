package relay

import (
	"errors"
	"syscall"
)

// isTransient reports whether err only means "not now": the operation stays
// armed and the event mechanism signals it again.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR)
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return int(syscall.EIO)
}

// resultError converts a negative completion result back into an error.
func resultError(res int) error {
	if res >= 0 {
		return nil
	}
	return syscall.Errno(-res)
}
