package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasksAndDrainsOnShutdown(t *testing.T) {
	p := New("test", 3, 16)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(func() { n.Add(1) }))
	}
	p.Shutdown()
	require.EqualValues(t, 10, n.Load())
	require.False(t, p.Submit(func() {}))
	require.False(t, p.TrySubmit(func() {}))
	p.Shutdown()
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New("panic", 1, 4)
	var n atomic.Int32
	require.True(t, p.Submit(func() { panic("boom") }))
	require.True(t, p.Submit(func() { n.Add(1) }))
	p.Shutdown()
	require.EqualValues(t, 1, n.Load())
}
