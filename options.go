package relay

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DEFAULT_HOST               = "127.0.0.1"
	DEFAULT_PORT               = 8080
	DEFAULT_LISTEN_BACKLOG     = 1024
	DEFAULT_ACCEPT_CONCURRENCY = 10
	DEFAULT_ACCEPT_BACKOFF     = 100 * time.Millisecond
	DEFAULT_RING_ENTRIES       = 256
	DEFAULT_EPOLL_EVENTS       = 128
	DEFAULT_READ_BUFFER        = 2048
	DEFAULT_BUFFER_CAPACITY    = 4096
	DEFAULT_WORKERS            = 4
	DEFAULT_WORKER_QUEUE       = 4096
	DEFAULT_WAIT_TIMEOUT       = -1
)

type Options struct {
	Host              string
	Port              int // 0 binds an ephemeral port
	ListenBacklog     int
	AcceptConcurrency int
	AcceptBackoff     time.Duration // accept re-arming pause after a hard accept error
	RingEntries       int
	MaxEvents         int
	ReadBuffer        int
	BufferCapacity    int
	Workers           int // 0 decodes on the reactor goroutine
	WorkerQueue       int
	WaitTimeout       int // milliseconds, -1 blocks until an event arrives
	IdleTimeout       time.Duration
	KeepAlive         bool
	Policy            Policy
	Framing           Framing
	FrameSize         int
	Delimiter         byte
	Observer          Observer
	Clock             clockwork.Clock
}

func DefaultOptions() Options {
	return Options{
		Host:              DEFAULT_HOST,
		Port:              DEFAULT_PORT,
		ListenBacklog:     DEFAULT_LISTEN_BACKLOG,
		AcceptConcurrency: DEFAULT_ACCEPT_CONCURRENCY,
		AcceptBackoff:     DEFAULT_ACCEPT_BACKOFF,
		RingEntries:       DEFAULT_RING_ENTRIES,
		MaxEvents:         DEFAULT_EPOLL_EVENTS,
		ReadBuffer:        DEFAULT_READ_BUFFER,
		BufferCapacity:    DEFAULT_BUFFER_CAPACITY,
		Workers:           DEFAULT_WORKERS,
		WorkerQueue:       DEFAULT_WORKER_QUEUE,
		WaitTimeout:       DEFAULT_WAIT_TIMEOUT,
		KeepAlive:         true,
		Policy:            POLICY_ALL_EXCEPT_SENDER,
		Framing:           FRAMING_RAW,
		FrameSize:         DEFAULT_FRAME_SIZE,
		Delimiter:         DEFAULT_LINE_DELIMITER,
	}
}

// withDefaults fills unset sizes. Workers and WaitTimeout keep their zero
// meaning.
func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DEFAULT_HOST
	}
	if o.ListenBacklog <= 0 {
		o.ListenBacklog = DEFAULT_LISTEN_BACKLOG
	}
	if o.AcceptConcurrency <= 0 {
		o.AcceptConcurrency = DEFAULT_ACCEPT_CONCURRENCY
	}
	if o.AcceptBackoff <= 0 {
		o.AcceptBackoff = DEFAULT_ACCEPT_BACKOFF
	}
	if o.RingEntries <= 0 {
		o.RingEntries = DEFAULT_RING_ENTRIES
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = DEFAULT_EPOLL_EVENTS
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = DEFAULT_READ_BUFFER
	}
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = DEFAULT_BUFFER_CAPACITY
	}
	if o.WorkerQueue <= 0 {
		o.WorkerQueue = DEFAULT_WORKER_QUEUE
	}
	if o.Observer == nil {
		o.Observer = ObserverFuncs{}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}
