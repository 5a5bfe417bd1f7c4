package announcer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueue_FIFO(t *testing.T) {
	var depth []int
	var mu sync.Mutex
	q := newWorkQueue(func(n int) {
		mu.Lock()
		depth = append(depth, n)
		mu.Unlock()
	})

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.push(func(context.Context) { got = append(got, i) }))
	}
	assert.Equal(t, 100, q.len())

	done := make(chan struct{})
	q.push(func(context.Context) { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.run(ctx)

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("queue did not drain")
	}
	for i, v := range got {
		require.Equal(t, i, v)
	}
	assert.Len(t, got, 100)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, depth[len(depth)-1])
}

func TestWorkQueue_Close(t *testing.T) {
	q := newWorkQueue(nil)
	ran := false
	q.push(func(context.Context) { ran = true })

	q.close()
	assert.False(t, q.push(func(context.Context) {}))
	assert.Zero(t, q.len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.run(ctx)
	assert.False(t, ran)
}

func TestWorkQueue_RunStopsOnCancel(t *testing.T) {
	q := newWorkQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		q.run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("run did not return after cancel")
	}
}
