package fabric

import (
	"context"
	"errors"
	"sync"

	"github.com/distworks/mutexkit/cluster"
)

// Handle satisfies the kit's common locking contract.
var _ cluster.Lock = (*Handle)(nil)

var (
	// ErrLockTimedOut is returned when a lock couldn't be acquired by the
	// context deadline.
	ErrLockTimedOut = errors.New("attempt to acquire lock timed out")
	// ErrAlreadyHeld is returned when Lock is called while the handle
	// already holds the resource.
	ErrAlreadyHeld = errors.New("lock is already held")
	// ErrNotHeld is returned when Unlock is called without holding the
	// resource.
	ErrNotHeld = errors.New("lock is not held")
)

// Handle adapts one agent to the cluster.Lock interface. Lock stages a
// request for the agent's next instant and blocks until the fabric delivers
// the grant; Unlock stages a release. The owning Cluster must be ticked by
// another goroutine for either to make progress.
//
// The protocol has no request cancellation: a Lock that returns
// ErrLockTimedOut leaves the request queued. The eventual grant is latched,
// so a later Lock on the same handle acquires immediately and the resource
// is then released normally through Unlock.
type Handle struct {
	c  *Cluster
	id int

	grantC chan struct{}

	mu   sync.Mutex
	held bool
}

func newHandle(c *Cluster, id int) *Handle {
	return &Handle{
		c:      c,
		id:     id,
		grantC: make(chan struct{}, 1),
	}
}

// notify latches a grant. Called by Tick while it reconciles; it must never
// block.
func (h *Handle) notify() {
	select {
	case h.grantC <- struct{}{}:
	default:
	}
}

// Lock claims the resource, blocking until the grant or the context deadline.
func (h *Handle) Lock(ctx context.Context) error {
	h.mu.Lock()
	if h.held {
		h.mu.Unlock()
		return ErrAlreadyHeld
	}
	h.mu.Unlock()

	if err := h.c.Signal(h.id, true, false); err != nil {
		return err
	}

	select {
	case <-h.grantC:
		h.mu.Lock()
		h.held = true
		h.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ErrLockTimedOut
	}
}

// Unlock releases the resource. The release is applied at the agent's next
// instant; Unlock doesn't wait for it.
func (h *Handle) Unlock(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.held {
		return ErrNotHeld
	}

	h.held = false

	return h.c.Signal(h.id, false, true)
}
