// Package queue provides the bounded priority queue between the utterance
// producer path and the dispatch loop.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/voicerover-io/voicerover/internal/rover/command"
)

// entry pairs a command with its ordering keys. The sequence number exists
// solely to make equal-priority ordering FIFO and deterministic; it is
// strictly increasing for the queue's lifetime.
type entry struct {
	priority int
	seq      uint64
	cmd      command.Command
}

// entryHeap is a max-heap on priority with FIFO tie-break on seq.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is a bounded, thread-safe priority queue. Enqueue never blocks;
// Dequeue blocks up to a caller-supplied timeout. It tolerates multiple
// producers; the dispatch loop is the single consumer.
//
// Clear removes all pending entries atomically. It exists for STOP
// preemption: the producer calls Clear and then sends STOP directly over
// the transport. A normal command enqueued concurrently with Clear may be
// cleared or may survive depending on interleaving; STOP itself never
// passes through the queue, so it cannot lose its preemption either way.
type Queue struct {
	mu      sync.Mutex
	entries entryHeap
	cap     int
	seq     uint64

	// notify carries at most one wakeup token for the consumer.
	notify chan struct{}
}

// New creates a queue with the given fixed capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		entries: make(entryHeap, 0, capacity),
		cap:     capacity,
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue inserts a command, returning false without blocking when the
// queue is at capacity. Callers own the drop policy; log-and-discard is the
// documented default.
func (q *Queue) Enqueue(cmd command.Command) bool {
	q.mu.Lock()
	if len(q.entries) >= q.cap {
		q.mu.Unlock()
		return false
	}
	q.seq++
	heap.Push(&q.entries, entry{priority: cmd.Priority, seq: q.seq, cmd: cmd})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Dequeue removes the highest-priority entry, blocking up to timeout for
// one to arrive. Equal priorities dequeue in arrival order. The second
// return value is false on timeout; an empty queue is not an error.
func (q *Queue) Dequeue(timeout time.Duration) (command.Command, bool) {
	if cmd, ok := q.tryPop(); ok {
		return cmd, true
	}
	if timeout <= 0 {
		return command.Command{}, false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-q.notify:
			if cmd, ok := q.tryPop(); ok {
				return cmd, true
			}
			// Stale token (entry cleared or already taken); keep waiting.
		case <-deadline.C:
			return command.Command{}, false
		}
	}
}

func (q *Queue) tryPop() (command.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return command.Command{}, false
	}
	e := heap.Pop(&q.entries).(entry)
	return e.cmd, true
}

// Clear atomically removes all pending entries.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.entries = q.entries[:0]
	q.mu.Unlock()
}

// Size is a point-in-time snapshot for diagnostics; it is not linearizable
// with concurrent mutators.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// IsEmpty is a point-in-time snapshot for diagnostics.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Capacity returns the fixed capacity set at construction.
func (q *Queue) Capacity() int { return q.cap }
