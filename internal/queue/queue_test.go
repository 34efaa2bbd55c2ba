package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](10)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	for i := 1; i <= 5; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	q := New[int](3)
	for i := 0; i < 100; i++ {
		q.Push(i)
		assert.LessOrEqual(t, q.Len(), 3)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	// Pushing N+1 items into a queue of capacity N leaves [a2..aN+1].
	q := New[string](3)
	for _, s := range []string{"a1", "a2", "a3", "a4"} {
		q.Push(s)
	}

	require.Equal(t, 3, q.Len())
	assert.Equal(t, int64(1), q.Dropped())

	want := []string{"a2", "a3", "a4"}
	for _, w := range want {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, w, v)
	}
}

func TestCapacityTwoScenario(t *testing.T) {
	// Enqueue A,B,C with no consumption: queue holds [B,C], consumer then
	// pops B followed by C.
	q := New[string](2)
	q.Push("A")
	q.Push("B")
	q.Push("C")

	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "B", v)

	v, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "C", v)

	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestResizeKeepsNewest(t *testing.T) {
	q := New[int](5)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	q.Resize(2)
	require.Equal(t, 2, q.Len())

	v, _ := q.TryPop()
	assert.Equal(t, 4, v)
	v, _ = q.TryPop()
	assert.Equal(t, 5, v)

	// Growing never loses items.
	q.Push(1)
	q.Resize(10)
	assert.Equal(t, 1, q.Len())
}

func TestMinimumCapacity(t *testing.T) {
	q := New[int](0)
	q.Push(1)
	q.Push(2)
	assert.Equal(t, 1, q.Len())

	v, _ := q.TryPop()
	assert.Equal(t, 2, v)
}

func TestConcurrentPushPop(t *testing.T) {
	q := New[int](64)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Push(i)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	popped := 0
	for {
		select {
		case <-done:
			for {
				if _, ok := q.TryPop(); !ok {
					assert.LessOrEqual(t, q.Len(), 64)
					assert.Positive(t, popped)
					return
				}
				popped++
			}
		default:
			if _, ok := q.TryPop(); ok {
				popped++
			}
		}
	}
}
