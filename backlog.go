package relay

import (
	"errors"

	"github.com/eapache/queue"
)

// Backlog holds operation handles that could not be pushed because the
// submission ring was full. It is unbounded and strictly FIFO.
type Backlog struct {
	q *queue.Queue
}

func NewBacklog() *Backlog {
	return &Backlog{q: queue.New()}
}

func (b *Backlog) Push(h Handle) {
	b.q.Add(h)
}

func (b *Backlog) Len() int {
	return b.q.Length()
}

// DrainInto submits entries from the front until the backlog is empty or
// submit reports ErrRingFull, in which case that entry stays at the front.
// Any other error drops the entry and is returned after draining continues.
func (b *Backlog) DrainInto(submit func(Handle) error) (int, error) {
	var n int
	var firstErr error
	for b.q.Length() > 0 {
		var h = b.q.Peek().(Handle)
		var err = submit(h)
		if errors.Is(err, ErrRingFull) {
			return n, nil
		}
		b.q.Remove()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}
