package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushBelowCapacity(t *testing.T) {
	rb := New[int](4)

	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	require.Equal(t, 3, rb.Len())
	require.Equal(t, []int{1, 2, 3}, rb.Snapshot())
}

func TestPushEvictsOldest(t *testing.T) {
	rb := New[int](3)

	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	require.Equal(t, 3, rb.Len())
	require.Equal(t, []int{3, 4, 5}, rb.Snapshot())
}

func TestSnapshotEmpty(t *testing.T) {
	rb := New[string](3)

	require.Nil(t, rb.Snapshot())
	require.Equal(t, 0, rb.Len())
}

func TestCapacityClamped(t *testing.T) {
	rb := New[int](0)

	require.Equal(t, 1, rb.Capacity())

	rb.Push(1)
	rb.Push(2)

	require.Equal(t, []int{2}, rb.Snapshot())
}

func TestConcurrentPush(t *testing.T) {
	rb := New[int](64)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			for j := range 100 {
				rb.Push(n*100 + j)
			}
		}(i)
	}

	wg.Wait()

	require.Equal(t, 64, rb.Len())
	require.Len(t, rb.Snapshot(), 64)
}
