package flow

import (
	"errors"
)

var errQueueFull = errors.New("flow: execution queue is full")

const msgQueueFull = "Execution queue is full"

type task struct {
	fs         *FlowState
	component  int
	continuous bool
}

type taskKey struct {
	fs        *FlowState
	component int
}

// queue is a fixed-capacity ring of tasks. A (state, component) pair is
// held at most once, continuous or not.
type queue struct {
	buf    []task
	head   int
	n      int
	queued map[taskKey]struct{}
}

func newQueue(size int) *queue {
	return &queue{buf: make([]task, size), queued: make(map[taskKey]struct{})}
}

func (q *queue) len() int { return q.n }

func (q *queue) contains(fs *FlowState, ci int) bool {
	_, ok := q.queued[taskKey{fs, ci}]
	return ok
}

// push appends t. It reports false for a duplicate and errQueueFull when
// there is no room.
func (q *queue) push(t task) (bool, error) {
	k := taskKey{t.fs, t.component}
	if _, dup := q.queued[k]; dup {
		return false, nil
	}
	if q.n == len(q.buf) {
		return false, errQueueFull
	}
	q.buf[(q.head+q.n)%len(q.buf)] = t
	q.n++
	q.queued[k] = struct{}{}
	return true, nil
}

func (q *queue) pop() (task, bool) {
	if q.n == 0 {
		return task{}, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = task{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	delete(q.queued, taskKey{t.fs, t.component})
	return t, true
}

// removeIf drops the tasks matching pred, keeping the order of the rest,
// and returns the removed tasks.
func (q *queue) removeIf(pred func(task) bool) []task {
	var removed []task
	kept := 0
	for i := 0; i < q.n; i++ {
		t := q.buf[(q.head+i)%len(q.buf)]
		if pred(t) {
			removed = append(removed, t)
			delete(q.queued, taskKey{t.fs, t.component})
			continue
		}
		q.buf[(q.head+kept)%len(q.buf)] = t
		kept++
	}
	for i := kept; i < q.n; i++ {
		q.buf[(q.head+i)%len(q.buf)] = task{}
	}
	q.n = kept
	return removed
}

// ---------------------------------------------------------------------------
// Engine queue operations
// ---------------------------------------------------------------------------

// enqueue adds a task holding a reference on fs.
func (e *Engine) enqueue(fs *FlowState, ci int, continuous bool) error {
	added, err := e.queue.push(task{fs: fs, component: ci, continuous: continuous})
	if err != nil {
		return err
	}
	if added {
		fs.RefCounter++
		e.stats.queueDepth(e.queue.len())
	}
	return nil
}

// AddToQueue schedules component ci of fs. A full queue is thrown as a
// flow error.
func (e *Engine) AddToQueue(fs *FlowState, ci int, continuous bool) bool {
	if err := e.enqueue(fs, ci, continuous); err != nil {
		e.ThrowError(fs, ci, msgQueueFull)
		return false
	}
	return true
}

// IsQueued reports whether component ci of fs has a pending task.
func (e *Engine) IsQueued(fs *FlowState, ci int) bool {
	return e.queue.contains(fs, ci)
}

// QueueLen returns the number of pending tasks.
func (e *Engine) QueueLen() int { return e.queue.len() }

// removeTasks drops the tasks of fs and its descendants.
func (e *Engine) removeTasks(fs *FlowState) {
	for _, t := range e.queue.removeIf(func(t task) bool { return isDescendant(t.fs, fs) }) {
		t.fs.RefCounter--
	}
}

func isDescendant(fs, ancestor *FlowState) bool {
	for ; fs != nil; fs = fs.Parent {
		if fs == ancestor {
			return true
		}
	}
	return false
}
