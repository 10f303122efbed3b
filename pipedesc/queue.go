// File: pipedesc/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipedesc

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/aio"
)

// opQueue is a FIFO of pending operations for one direction.
type opQueue struct {
	q   *queue.Queue
	dir string
}

func newOpQueue(dir string) *opQueue {
	return &opQueue{q: queue.New(), dir: dir}
}

func (q *opQueue) len() int {
	return q.q.Length()
}

func (q *opQueue) head() *aio.Op {
	return q.q.Peek().(*aio.Op)
}

func (q *opQueue) push(op *aio.Op) {
	q.q.Add(op)
}

func (q *opQueue) pop() *aio.Op {
	return q.q.Remove().(*aio.Op)
}

// remove deletes op wherever it is, keeping the order of the others.
func (q *opQueue) remove(op *aio.Op) bool {
	found := false
	for i, n := 0, q.q.Length(); i < n; i++ {
		v := q.q.Remove().(*aio.Op)
		if v == op && !found {
			found = true
			continue
		}
		q.q.Add(v)
	}
	return found
}
