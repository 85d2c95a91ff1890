package relay

import (
	"errors"
)

var (
	ErrPoolExhausted       = errors.New("buffer pool exhausted")
	ErrGetPoolBuffer       = errors.New("get pool buffer error")
	ErrPoolStopped         = errors.New("worker pool stopped")
	ErrQueueFull           = errors.New("worker pool queue full")
	ErrTooManyWorkers      = errors.New("worker pool size exceeds ceiling")
	ErrWorkerQueueTooShort = errors.New("worker queue shorter than worker count")
	ErrRingFull            = errors.New("submission ring full")
	ErrRingClosed          = errors.New("submission ring closed")
	ErrDuplicateConnection = errors.New("descriptor already registered")
	ErrUnknownPolicy       = errors.New("unknown broadcast policy")
	ErrUnknownFraming      = errors.New("unknown framing")
	ErrFrameTooLong        = errors.New("frame exceeds maximum length")
	ErrIdleTimeout         = errors.New("connection idle timeout")
	ErrHangup              = errors.New("connection hang up")
	ErrUnsupportedPlatform = errors.New("event ring is not supported on this platform")
)
