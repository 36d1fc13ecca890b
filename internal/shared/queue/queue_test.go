package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestQueue_FIFO verifies pop order matches push order.
func TestQueue_FIFO(t *testing.T) {
	q := New[int](8)
	for i := 1; i <= 5; i++ {
		require.True(t, q.TryPush(i))
	}

	require.Equal(t, 5, q.Len())
	for i := 1; i <= 5; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.True(t, q.Empty())
}

// TestQueue_Capacity verifies a full queue refuses pushes until drained.
func TestQueue_Capacity(t *testing.T) {
	q := New[string](2)
	require.True(t, q.TryPush("a"))
	require.True(t, q.TryPush("b"))
	require.False(t, q.TryPush("c"))

	v, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, "a", v)
	require.True(t, q.TryPush("c"))
}

// TestQueue_Peek verifies peeking does not consume the head.
func TestQueue_Peek(t *testing.T) {
	q := New[int](4)
	_, ok := q.TryPeek()
	require.False(t, ok)

	q.TryPush(42)
	v, ok := q.TryPeek()
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Equal(t, 1, q.Len())

	v, ok = q.TryPop()
	require.True(t, ok)
	require.Equal(t, 42, v)
}

// TestQueue_WrapAround verifies the ring indices survive many cycles.
func TestQueue_WrapAround(t *testing.T) {
	q := New[int](3)
	for i := 0; i < 100; i++ {
		require.True(t, q.TryPush(i))
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.True(t, q.Empty())
}
