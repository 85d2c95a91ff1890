package relay

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wuyongjia/pool"
)

type BufferID uint64

// Buffer is a fixed-size inbound scratch region handed out by a BufferPool.
// Exactly one component holds it between Acquire and Release.
type Buffer struct {
	id   BufferID
	B    []byte
	held atomic.Bool
}

func (b *Buffer) ID() BufferID {
	return b.id
}

type BufferPoolStats struct {
	Capacity  int
	Allocated int64
	InUse     int
}

// BufferPool bounds the number of outstanding inbound buffers. Acquiring past
// the capacity fails with ErrPoolExhausted instead of blocking, so the reactor
// never waits on a worker to give a buffer back.
type BufferPool struct {
	size      int
	capacity  int
	allocated atomic.Int64
	nextId    atomic.Uint64
	mu        sync.Mutex
	inUse     int
	items     *pool.Pool // *Buffer pool, return *Buffer
}

func NewBufferPool(size int, capacity int) *BufferPool {
	if size <= 0 {
		size = DEFAULT_READ_BUFFER
	}
	if capacity <= 0 {
		capacity = DEFAULT_BUFFER_CAPACITY
	}
	var bp = &BufferPool{
		size:     size,
		capacity: capacity,
	}
	bp.items = pool.New(capacity, func() interface{} {
		bp.allocated.Add(1)
		return &Buffer{
			id: BufferID(bp.nextId.Add(1)),
			B:  make([]byte, size),
		}
	})
	return bp
}

func (bp *BufferPool) Acquire() (*Buffer, error) {
	bp.mu.Lock()
	if bp.inUse >= bp.capacity {
		bp.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	bp.inUse++
	bp.mu.Unlock()

	var iface, err = bp.items.Get()
	if err != nil {
		bp.giveBack()
		return nil, err
	}
	var buf, ok = iface.(*Buffer)
	if !ok {
		bp.giveBack()
		return nil, ErrGetPoolBuffer
	}
	buf.held.Store(true)
	return buf, nil
}

// Release returns buf to the idle set. Its contents are undefined afterwards.
// Releasing a buffer that is not held is a no-op. The capacity slot is freed
// only after the buffer is back in the idle set, even when Put fails.
func (bp *BufferPool) Release(buf *Buffer) error {
	if buf == nil || !buf.held.CompareAndSwap(true, false) {
		return nil
	}
	var err = bp.items.Put(buf)
	bp.giveBack()
	if err != nil {
		return fmt.Errorf("release buffer %d: %w", buf.id, err)
	}
	return nil
}

func (bp *BufferPool) giveBack() {
	bp.mu.Lock()
	bp.inUse--
	bp.mu.Unlock()
}

func (bp *BufferPool) Size() int {
	return bp.size
}

func (bp *BufferPool) Stats() BufferPoolStats {
	bp.mu.Lock()
	var inUse = bp.inUse
	bp.mu.Unlock()
	return BufferPoolStats{
		Capacity:  bp.capacity,
		Allocated: bp.allocated.Load(),
		InUse:     inUse,
	}
}
