package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestPushAfterCloseDropped(t *testing.T) {
	q := New[string]()
	q.Close()
	assert.False(t, q.Push("late"))
	assert.Equal(t, 0, q.Len())
}

func TestPopDrainsAfterClose(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Close()

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[int]()
	done := make(chan int)
	go func() {
		v, _ := q.Pop()
		done <- v
	}()

	q.Push(7)
	assert.Equal(t, 7, <-done)
}

func TestPushAndClose(t *testing.T) {
	q := New[string]()
	require.True(t, q.Push("first"))
	require.True(t, q.PushAndClose("last"))
	assert.False(t, q.Push("after"))
	assert.False(t, q.PushAndClose("after"))

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "first", v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "last", v)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestCloseIdempotent(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const producers = 8
	const perProducer = 250

	q := New[int]()
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(j)
			}
		}()
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
