package announcer

import (
	"context"
	"sync"
)

type task func(ctx context.Context)

// workQueue is an unbounded FIFO drained by a single worker, which gives every send
// and notification of one announcer a total order.
type workQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	wake   chan struct{}

	onDepth func(int)
}

func newWorkQueue(onDepth func(int)) *workQueue {
	if onDepth == nil {
		onDepth = func(int) {}
	}
	return &workQueue{
		wake:    make(chan struct{}, 1),
		onDepth: onDepth,
	}
}

// push appends t. It returns false once the queue is closed.
func (q *workQueue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	depth := len(q.tasks)
	q.mu.Unlock()

	q.onDepth(depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *workQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.onDepth(len(q.tasks))
	return t, true
}

// close rejects further pushes and drops what is still queued
func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.tasks = nil
	q.onDepth(0)
}

func (q *workQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// run executes tasks in order until ctx is done
func (q *workQueue) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		t, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		t(ctx)
	}
}
