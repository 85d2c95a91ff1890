package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacklog_DrainStopsOnRingFull(t *testing.T) {
	var b = NewBacklog()
	for h := Handle(1); h <= 5; h++ {
		b.Push(h)
	}

	var pushed []Handle
	var room = 2
	var submit = func(h Handle) error {
		if room == 0 {
			return ErrRingFull
		}
		room--
		pushed = append(pushed, h)
		return nil
	}

	var n, err = b.DrainInto(submit)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, b.Len())

	room = 10
	n, err = b.DrainInto(submit)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []Handle{1, 2, 3, 4, 5}, pushed, "FIFO order is kept across drains")
}

func TestBacklog_OtherErrorsDropEntry(t *testing.T) {
	var b = NewBacklog()
	b.Push(1)
	b.Push(2)
	b.Push(3)

	var boom = errors.New("boom")
	var pushed []Handle
	var n, err = b.DrainInto(func(h Handle) error {
		if h == 2 {
			return boom
		}
		pushed = append(pushed, h)
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
	assert.Equal(t, []Handle{1, 3}, pushed)
	assert.Equal(t, 0, b.Len())
}

func TestBacklog_DrainEmpty(t *testing.T) {
	var n, err = NewBacklog().DrainInto(func(Handle) error {
		t.Fatal("submit called on empty backlog")
		return nil
	})
	assert.NoError(t, err)
	assert.Zero(t, n)
}
