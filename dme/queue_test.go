package dme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushPopOrder(t *testing.T) {
	q := NewRequestQueue(4)

	for _, id := range []int{2, 0, 3} {
		assert.Nil(t, q.Push(id))
	}

	// FIFO, not ID order.
	assert.Equal(t, []int{2, 0, 3}, q.IDs())

	head, ok := q.PeekHead()
	assert.True(t, ok)
	assert.Equal(t, 2, head)

	var popped []int
	for {
		id, ok := q.Pop()
		if !ok {
			break
		}
		popped = append(popped, id)
	}

	assert.Equal(t, []int{2, 0, 3}, popped)
	assert.Equal(t, 0, q.Len())
}

func TestPushDuplicate(t *testing.T) {
	q := NewRequestQueue(4)

	assert.Nil(t, q.Push(1))

	err := q.Push(1)
	assert.Equal(t, ErrRedundantRequest{ID: 1}, err)

	// The queue is unchanged.
	assert.Equal(t, []int{1}, q.IDs())
}

func TestPushFull(t *testing.T) {
	q := NewRequestQueue(2)

	assert.Nil(t, q.Push(0))
	assert.Nil(t, q.Push(1))

	err := q.Push(2)
	assert.Equal(t, ErrQueueFull{ID: 2, Capacity: 2}, err)

	// The queue is unchanged.
	assert.Equal(t, []int{0, 1}, q.IDs())
}

func TestContains(t *testing.T) {
	q := NewRequestQueue(3)

	q.Push(1)
	q.Push(2)

	if !q.Contains(1) || !q.Contains(2) {
		t.Errorf("Expected queued IDs to be reported as present")
	}

	if q.Contains(0) {
		t.Errorf("Expected unqueued ID to be reported as absent")
	}
}

func TestEmptyQueue(t *testing.T) {
	q := NewRequestQueue(2)

	_, ok := q.Pop()
	assert.False(t, ok)

	_, ok = q.PeekHead()
	assert.False(t, ok)

	assert.Equal(t, []int{}, q.IDs())
}
