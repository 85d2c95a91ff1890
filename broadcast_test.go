package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/bytebufferpool"
)

func newTestPayloads() *bytebufferpool.Pool {
	return &bytebufferpool.Pool{}
}

func newTestRegistry(fds ...int) *Registry {
	var rg = NewRegistry()
	var now = time.Now()
	for _, fd := range fds {
		if err := rg.Insert(newConnection(fd, nil, now)); err != nil {
			panic(err)
		}
	}
	return rg
}

func mustGet(t *testing.T, rg *Registry, fd int) *Connection {
	t.Helper()
	var c, ok = rg.Get(fd)
	require.True(t, ok, "fd %d not registered", fd)
	return c
}

func fdsOf(conns []*Connection) []int {
	var fds = make([]int, 0, len(conns))
	for _, c := range conns {
		fds = append(fds, c.Fd)
	}
	return fds
}

func drainOutbound(t *testing.T, rg *Registry, fd int) []string {
	t.Helper()
	var out []string
	for {
		var msg, ok = rg.PopOutbound(fd)
		if !ok {
			return out
		}
		out = append(out, string(msg.Bytes()))
		msg.release()
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"", POLICY_ALL_EXCEPT_SENDER},
		{"relay", POLICY_ALL_EXCEPT_SENDER},
		{"all-except-sender", POLICY_ALL_EXCEPT_SENDER},
		{"Echo", POLICY_ECHO},
		{"all", POLICY_ALL},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParsePolicy("multicast")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestCoordinator_Targets(t *testing.T) {
	var rg = newTestRegistry(10, 11, 12)

	var from = mustGet(t, rg, 10)

	assert.Equal(t, []int{11, 12}, fdsOf(NewCoordinator(rg, POLICY_ALL_EXCEPT_SENDER, nil, nil).Targets(from)))
	assert.Equal(t, []int{10}, fdsOf(NewCoordinator(rg, POLICY_ECHO, nil, nil).Targets(from)))
	assert.Equal(t, []int{10, 11, 12}, fdsOf(NewCoordinator(rg, POLICY_ALL, nil, nil).Targets(from)))
	assert.Empty(t, NewCoordinator(rg, POLICY_ECHO, nil, nil).Targets(newConnection(99, nil, time.Now())))
}

func TestCoordinator_ReusedDescriptor(t *testing.T) {
	var rg = newTestRegistry(10, 11)
	var stale = mustGet(t, rg, 10)
	rg.Remove(10)
	require.NoError(t, rg.Insert(newConnection(10, nil, time.Now())))
	var fresh = mustGet(t, rg, 10)

	for _, policy := range []Policy{POLICY_ALL_EXCEPT_SENDER, POLICY_ECHO, POLICY_ALL} {
		var co = NewCoordinator(rg, policy, RawFramer{}, nil)
		assert.Empty(t, co.Targets(stale), policy.String())
		assert.Zero(t, co.Deliver(stale, []byte("secret")), policy.String())
	}
	assert.Empty(t, drainOutbound(t, rg, 10))
	assert.Empty(t, drainOutbound(t, rg, 11))

	var co = NewCoordinator(rg, POLICY_ALL_EXCEPT_SENDER, RawFramer{}, nil)
	assert.Equal(t, 1, co.Deliver(mustGet(t, rg, 11), []byte("hi")))
	assert.Equal(t, []string{"hi"}, drainOutbound(t, rg, fresh.Fd), "the new owner of the descriptor is a recipient")
}

func TestCoordinator_DeliverCopiesPerTarget(t *testing.T) {
	var rg = newTestRegistry(10, 11, 12)
	var wakes int
	var co = NewCoordinator(rg, POLICY_ALL_EXCEPT_SENDER, RawFramer{}, func() { wakes++ })

	var payload = []byte("hello")
	var n = co.Deliver(mustGet(t, rg, 10), payload)
	payload[0] = 'j'

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, wakes)
	assert.Empty(t, drainOutbound(t, rg, 10))
	assert.Equal(t, []string{"hello"}, drainOutbound(t, rg, 11))
	assert.Equal(t, []string{"hello"}, drainOutbound(t, rg, 12))
	assert.ElementsMatch(t, []int{11, 12}, rg.TakeDirty())
}

func TestCoordinator_DeliverKeepsFrameOrder(t *testing.T) {
	var rg = newTestRegistry(10, 11)
	var co = NewCoordinator(rg, POLICY_ALL_EXCEPT_SENDER, DelimiterFramer{Delim: '\n'}, nil)

	assert.Equal(t, 3, co.Deliver(mustGet(t, rg, 10), []byte("a\n"), []byte("b"), []byte("c\n")))
	assert.Equal(t, []string{"a\n", "b\n", "c\n"}, drainOutbound(t, rg, 11))
}

func TestCoordinator_DeliverWithoutTargets(t *testing.T) {
	var rg = newTestRegistry(10)
	var wakes int
	var co = NewCoordinator(rg, POLICY_ALL_EXCEPT_SENDER, nil, func() { wakes++ })

	var from = mustGet(t, rg, 10)

	assert.Zero(t, co.Deliver(from, []byte("hello")))
	assert.Zero(t, co.Deliver(from))
	assert.Zero(t, wakes)
}

func TestCoordinator_ConcurrentDeliver(t *testing.T) {
	var rg = newTestRegistry(10, 11, 12, 13)
	var co = NewCoordinator(rg, POLICY_ALL, RawFramer{}, nil)

	var wg sync.WaitGroup
	for _, from := range rg.Connections() {
		wg.Add(1)
		go func(from *Connection) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				co.Deliver(from, []byte("x"))
			}
		}(from)
	}
	wg.Wait()

	for _, fd := range []int{10, 11, 12, 13} {
		assert.Len(t, drainOutbound(t, rg, fd), 200, "fd %d", fd)
	}
}
