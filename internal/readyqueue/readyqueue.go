// Package readyqueue implements the scheduler's ready list: a
// priority-ordered, FIFO-within-priority structure of ready task handles.
//
// The ordering is realized the way the teacher orders its run queue — a
// red-black tree keyed by a sortable pair — except the teacher sorts
// ascending by virtual runtime (a CFS-style fairness metric) while this
// queue sorts by (priority descending, sequence ascending), since §4.3
// calls for strict priority order with FIFO tie-breaking rather than
// fairness-weighted rotation.
package readyqueue

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"rtoskernel/internal/tcb"
)

// key orders ready-queue entries: higher priority sorts first, and among
// equal priorities, lower sequence (older insertion) sorts first.
type key struct {
	priority int
	seq      uint64
}

func compare(a, b any) int {
	ka, kb := a.(key), b.(key)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// ReadyQueue is an ordered set of ready task handles.
type ReadyQueue struct {
	tree    *redblacktree.Tree
	nextSeq uint64
	keys    map[tcb.Handle]key // handle -> current key, for O(log n) removal
}

// New returns an empty ReadyQueue.
func New() *ReadyQueue {
	return &ReadyQueue{
		tree: redblacktree.NewWith(compare),
		keys: make(map[tcb.Handle]key),
	}
}

// Insert adds h to the queue at priority, at the tail of that priority's
// band. Re-inserting a handle already present replaces its position (used
// by yield, which requires the same handle to land at the tail).
func (q *ReadyQueue) Insert(h tcb.Handle, priority int) {
	q.removeKey(h)
	q.nextSeq++
	k := key{priority: priority, seq: q.nextSeq}
	q.tree.Put(k, h)
	q.keys[h] = k
}

// Remove drops h from the queue if present. Returns true iff it was present.
func (q *ReadyQueue) Remove(h tcb.Handle) bool {
	if _, ok := q.keys[h]; !ok {
		return false
	}
	q.removeKey(h)
	return true
}

func (q *ReadyQueue) removeKey(h tcb.Handle) {
	if k, ok := q.keys[h]; ok {
		q.tree.Remove(k)
		delete(q.keys, h)
	}
}

// Contains reports whether h is currently in the queue.
func (q *ReadyQueue) Contains(h tcb.Handle) bool {
	_, ok := q.keys[h]
	return ok
}

// Head returns the handle at the front of the queue (highest priority,
// oldest within its band) without removing it, and true; or the zero
// handle and false if the queue is empty.
func (q *ReadyQueue) Head() (tcb.Handle, bool) {
	node := q.tree.Left()
	if node == nil {
		return 0, false
	}
	return node.Value.(tcb.Handle), true
}

// PopHead removes and returns the front of the queue, and true; or the zero
// handle and false if the queue is empty.
func (q *ReadyQueue) PopHead() (tcb.Handle, bool) {
	h, ok := q.Head()
	if !ok {
		return 0, false
	}
	q.removeKey(h)
	return h, true
}

// Len returns the number of handles currently queued.
func (q *ReadyQueue) Len() int {
	return len(q.keys)
}

// Handles returns every queued handle in queue order (head first). Intended
// for introspection (getAllTasks); not on the scheduler's hot path.
func (q *ReadyQueue) Handles() []tcb.Handle {
	out := make([]tcb.Handle, 0, q.tree.Size())
	it := q.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(tcb.Handle))
	}
	return out
}
