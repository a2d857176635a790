package dme

import (
	"fmt"
)

// ErrRedundantRequest is returned when a peer requests the resource while it
// already has an outstanding request in the queue. The request is dropped.
type ErrRedundantRequest struct {
	ID int
}

func (e ErrRedundantRequest) Error() string {
	return fmt.Sprintf("request from peer %d dropped; peer is already queued", e.ID)
}

// ErrQueueFull is returned when a push would exceed the queue capacity. Since
// capacity is sized to the peer count and each peer holds at most one
// outstanding request, this indicates a configuration mismatch.
type ErrQueueFull struct {
	ID       int
	Capacity int
}

func (e ErrQueueFull) Error() string {
	return fmt.Sprintf("request from peer %d dropped; queue is at capacity %d", e.ID, e.Capacity)
}

// ErrReleaseWithoutHold is returned when a release is observed from a peer
// that is not the current queue head. The release is ignored.
type ErrReleaseWithoutHold struct {
	ID int
}

func (e ErrReleaseWithoutHold) Error() string {
	return fmt.Sprintf("release from peer %d ignored; peer does not hold the resource", e.ID)
}

// ErrMultipleReleases is returned for every remote release observed after a
// release has already been applied in the same instant. The holder acts
// alone; more than one release per instant violates that assumption.
type ErrMultipleReleases struct {
	ID int
}

func (e ErrMultipleReleases) Error() string {
	return fmt.Sprintf("release from peer %d ignored; a release was already applied this instant", e.ID)
}
