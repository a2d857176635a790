// Package dme implements a decentralized, first-come-first-served mutual
// exclusion protocol. One ResourceManager runs per site; every manager holds
// a replica of the same request queue and applies the same deterministic
// reconciliation each logical instant, so all replicas agree on the holder
// without a central arbiter.
package dme

// RequestQueue is a bounded FIFO of peer IDs. Capacity equals the peer count:
// each peer may have at most one outstanding request at a time, so one slot
// per possible requester suffices. The queue is exclusively owned by one
// ResourceManager and is only mutated during that manager's reconciliation
// pass; it needs no locking of its own.
type RequestQueue struct {
	ids      []int
	capacity int
}

// NewRequestQueue returns a RequestQueue with the provided capacity.
func NewRequestQueue(capacity int) *RequestQueue {
	return &RequestQueue{
		ids:      make([]int, 0, capacity),
		capacity: capacity,
	}
}

// Push appends id to the tail. A push that would exceed capacity returns
// ErrQueueFull; a push for an ID already present returns ErrRedundantRequest.
// Both leave the queue unchanged.
func (q *RequestQueue) Push(id int) error {
	if q.Contains(id) {
		return ErrRedundantRequest{ID: id}
	}

	if len(q.ids) >= q.capacity {
		return ErrQueueFull{ID: id, Capacity: q.capacity}
	}

	q.ids = append(q.ids, id)

	return nil
}

// Pop removes and returns the head. The second return is false on an empty
// queue.
func (q *RequestQueue) Pop() (int, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}

	head := q.ids[0]
	q.ids = q.ids[1:]

	return head, true
}

// PeekHead returns the head without removing it. The second return is false
// on an empty queue.
func (q *RequestQueue) PeekHead() (int, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}

	return q.ids[0], true
}

// Contains returns whether id is queued.
func (q *RequestQueue) Contains(id int) bool {
	for _, e := range q.ids {
		if e == id {
			return true
		}
	}

	return false
}

// Len returns the number of queued IDs.
func (q *RequestQueue) Len() int {
	return len(q.ids)
}

// IDs returns a copy of the queued IDs, head first.
func (q *RequestQueue) IDs() []int {
	ids := make([]int, len(q.ids))
	copy(ids, q.ids)

	return ids
}
