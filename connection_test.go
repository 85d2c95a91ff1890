package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_InsertRemoveOrder(t *testing.T) {
	var rg = newTestRegistry(10, 11, 12)

	assert.ErrorIs(t, rg.Insert(newConnection(11, nil, time.Now())), ErrDuplicateConnection)

	var c, ok = rg.Remove(11)
	require.True(t, ok)
	assert.Equal(t, 11, c.Fd)
	_, ok = rg.Remove(11)
	assert.False(t, ok)

	require.NoError(t, rg.Insert(newConnection(11, nil, time.Now())))
	assert.Equal(t, []int{10, 12, 11}, rg.Fds())
	assert.Equal(t, 3, rg.Len())

	var seen []int
	rg.Range(func(c *Connection) bool {
		seen = append(seen, c.Fd)
		return len(seen) < 2
	})
	assert.Equal(t, []int{10, 12}, seen)
}

func TestRegistry_ConnectionIdsAreUnique(t *testing.T) {
	var a = newConnection(10, nil, time.Now())
	var b = newConnection(10, nil, time.Now())

	assert.NotEqual(t, a.Id, b.Id)
}

func TestRegistry_EnqueueMarksDirtyOnce(t *testing.T) {
	var rg = newTestRegistry(10)
	var c = mustGet(t, rg, 10)
	var payloads = newTestPayloads()
	var msg = func() *Outbound { return &Outbound{bb: payloads.Get(), pool: payloads} }

	var queued, wake = rg.Enqueue(c, msg())
	assert.True(t, queued)
	assert.True(t, wake)

	queued, wake = rg.Enqueue(c, msg())
	assert.True(t, queued)
	assert.False(t, wake, "already dirty")
	assert.Equal(t, 2, rg.OutboundLen(10))

	assert.Equal(t, []int{10}, rg.TakeDirty())
	assert.Nil(t, rg.TakeDirty())

	var _, ok = rg.PopOutbound(10)
	require.True(t, ok)
	queued, wake = rg.Enqueue(c, msg())
	assert.True(t, queued)
	assert.False(t, wake, "a write is in flight")
	assert.Nil(t, rg.TakeDirty())

	queued, _ = rg.Enqueue(newConnection(99, nil, time.Now()), msg())
	assert.False(t, queued)
}

func TestRegistry_InboundSingleDrainer(t *testing.T) {
	var rg = newTestRegistry(10)
	var c, _ = rg.Get(10)

	var ok, start = rg.PushInbound(10, &Buffer{id: 1}, 3)
	assert.True(t, ok)
	assert.True(t, start)
	ok, start = rg.PushInbound(10, &Buffer{id: 2}, 4)
	assert.True(t, ok)
	assert.False(t, start, "a drain is already running")

	var in, popped = rg.PopInbound(c)
	require.True(t, popped)
	assert.Equal(t, BufferID(1), in.buf.ID())
	in, popped = rg.PopInbound(c)
	require.True(t, popped)
	assert.Equal(t, 4, in.n)
	_, popped = rg.PopInbound(c)
	assert.False(t, popped)

	_, start = rg.PushInbound(10, &Buffer{id: 3}, 1)
	assert.True(t, start, "processing flag was cleared")

	ok, _ = rg.PushInbound(99, &Buffer{id: 4}, 1)
	assert.False(t, ok)
}

func TestRegistry_ReusedDescriptorIsNotConfused(t *testing.T) {
	var rg = newTestRegistry(10)
	var old, _ = rg.Get(10)
	rg.PushInbound(10, &Buffer{id: 1}, 1)
	rg.Remove(10)
	require.NoError(t, rg.Insert(newConnection(10, nil, time.Now())))

	var _, ok = rg.PopInbound(old)
	assert.False(t, ok)
	assert.False(t, rg.Owns(old))
	queued, _ := rg.Enqueue(old, &Outbound{})
	assert.False(t, queued, "a stale connection never gains output")
	assert.Zero(t, rg.OutboundLen(10))
	assert.False(t, rg.RequestClose(old, ERROR_FRAME, ErrFrameTooLong))
	assert.Empty(t, rg.takeClosing())
}

func TestRegistry_RequestClose(t *testing.T) {
	var rg = newTestRegistry(10, 11)
	var a, _ = rg.Get(10)
	var b, _ = rg.Get(11)

	assert.True(t, rg.RequestClose(a, ERROR_FRAME, ErrFrameTooLong))
	assert.False(t, rg.RequestClose(b, ERROR_FRAME, ErrFrameTooLong))

	var reqs = rg.takeClosing()
	require.Len(t, reqs, 2)
	assert.Same(t, a, reqs[0].conn)
	assert.Equal(t, ERROR_FRAME, reqs[1].code)
	assert.Empty(t, rg.takeClosing())
}

func TestRegistry_IdleAndTouch(t *testing.T) {
	var start = time.Unix(1000, 0)
	var rg = NewRegistry()
	require.NoError(t, rg.Insert(newConnection(10, nil, start)))
	require.NoError(t, rg.Insert(newConnection(11, nil, start)))

	rg.Touch(11, start.Add(8*time.Second))

	assert.Equal(t, []int{10}, rg.Idle(start.Add(10*time.Second), 10*time.Second))
	assert.Empty(t, rg.Idle(start.Add(9*time.Second), 10*time.Second))
}

func TestRegistry_DetachEmptiesQueues(t *testing.T) {
	var rg = newTestRegistry(10)
	var c, _ = rg.Get(10)
	var payloads = newTestPayloads()
	rg.Enqueue(c, &Outbound{bb: payloads.Get(), pool: payloads})
	rg.PushInbound(10, &Buffer{id: 1}, 1)
	rg.Remove(10)

	var out, bufs = rg.detach(c)
	assert.Len(t, out, 1)
	assert.Len(t, bufs, 1)
	assert.Zero(t, c.outbound.Length())
	assert.Zero(t, c.inbox.Length())
}
