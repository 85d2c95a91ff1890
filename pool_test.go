package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_ExhaustionFailsFast(t *testing.T) {
	var bp = NewBufferPool(2048, 2)

	var a, err = bp.Acquire()
	require.NoError(t, err)
	var b *Buffer
	b, err = bp.Acquire()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.B, 2048)

	_, err = bp.Acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)
	var stats = bp.Stats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, 2, stats.InUse)

	require.NoError(t, bp.Release(a))
	var c *Buffer
	c, err = bp.Acquire()
	require.NoError(t, err)
	assert.NotEqual(t, b.ID(), c.ID())
	assert.LessOrEqual(t, bp.Stats().Allocated, int64(2))
}

func TestBufferPool_DoubleReleaseIsNoop(t *testing.T) {
	var bp = NewBufferPool(64, 1)
	var buf, err = bp.Acquire()
	require.NoError(t, err)

	assert.NoError(t, bp.Release(buf))
	assert.NoError(t, bp.Release(buf))
	assert.NoError(t, bp.Release(nil))

	assert.Equal(t, 0, bp.Stats().InUse)
	_, err = bp.Acquire()
	require.NoError(t, err)
	_, err = bp.Acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestBufferPool_Defaults(t *testing.T) {
	var bp = NewBufferPool(0, 0)

	assert.Equal(t, DEFAULT_READ_BUFFER, bp.Size())
	assert.Equal(t, DEFAULT_BUFFER_CAPACITY, bp.Stats().Capacity)
}

func TestBufferPool_ConcurrentAcquireRelease(t *testing.T) {
	var bp = NewBufferPool(32, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				var buf, err = bp.Acquire()
				if err != nil {
					assert.ErrorIs(t, err, ErrPoolExhausted)
					continue
				}
				buf.B[0] = byte(j)
				assert.NoError(t, bp.Release(buf))
			}
		}()
	}
	wg.Wait()

	var stats = bp.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.LessOrEqual(t, stats.Allocated, int64(8))
}

func TestBufferPool_ContendedSingleSlotOnlyReportsExhaustion(t *testing.T) {
	var bp = NewBufferPool(16, 1)
	var wg sync.WaitGroup
	var start = make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 500; j++ {
				var buf, err = bp.Acquire()
				if err != nil {
					assert.ErrorIs(t, err, ErrPoolExhausted)
					continue
				}
				assert.NoError(t, bp.Release(buf))
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 0, bp.Stats().InUse)
	var buf, err = bp.Acquire()
	require.NoError(t, err)
	assert.NoError(t, bp.Release(buf))
}
