package dme

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testManager(t *testing.T, id, peers int) *ResourceManager {
	t.Helper()

	rm, err := NewResourceManager(Config{
		ID:     id,
		Peers:  peers,
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	return rm
}

func TestConfigValidation(t *testing.T) {
	_, err := NewResourceManager(Config{ID: 0, Peers: 0})
	assert.NotNil(t, err)

	_, err = NewResourceManager(Config{ID: 2, Peers: 2})
	assert.NotNil(t, err)

	_, err = NewResourceManager(Config{ID: -1, Peers: 2})
	assert.NotNil(t, err)

	rm, err := NewResourceManager(Config{ID: 1, Peers: 2})
	assert.Nil(t, err)
	assert.Equal(t, "agent-1", rm.Name())
}

// Both agents request at the same instant: the lower ID is ordered first and
// granted; after it releases, the other agent is granted.
func TestSimultaneousRequests(t *testing.T) {
	rm0 := testManager(t, 0, 2)
	rm1 := testManager(t, 1, 2)

	out0 := rm0.Announce(true, false)
	out1 := rm1.Announce(true, false)
	assert.True(t, out0.Request)
	assert.True(t, out1.Request)

	out0 = rm0.Reconcile([]int{1}, nil)
	out1 = rm1.Reconcile([]int{0}, nil)

	assert.Equal(t, []int{0, 1}, rm0.Queue())
	assert.Equal(t, []int{0, 1}, rm1.Queue())
	assert.True(t, out0.Grant, "Expected agent 0 to be granted")
	assert.False(t, out1.Grant, "Expected agent 1 to wait")

	// Agent 0 releases at a later instant.
	out0 = rm0.Announce(false, true)
	assert.True(t, out0.Release)
	out1 = rm1.Announce(false, false)
	assert.False(t, out1.Release)

	out0 = rm0.Reconcile(nil, nil)
	out1 = rm1.Reconcile(nil, []int{0})

	assert.Equal(t, []int{1}, rm0.Queue())
	assert.Equal(t, []int{1}, rm1.Queue())
	assert.False(t, out0.Grant)
	assert.True(t, out1.Grant, "Expected agent 1 to be granted after the release")
}

// Requests issued at different instants keep arrival order, not ID order.
func TestArrivalOrderAcrossInstants(t *testing.T) {
	rm0 := testManager(t, 0, 2)
	rm1 := testManager(t, 1, 2)

	// Agent 1 requests first.
	rm1.Announce(true, false)
	rm1.Reconcile(nil, nil)
	rm0.Announce(false, false)
	rm0.Reconcile([]int{1}, nil)

	// Agent 0 requests at a later instant.
	rm0.Announce(true, false)
	rm0.Reconcile(nil, nil)
	rm1.Announce(false, false)
	rm1.Reconcile([]int{0}, nil)

	assert.Equal(t, []int{1, 0}, rm0.Queue())
	assert.Equal(t, []int{1, 0}, rm1.Queue())
}

// The merge sorts the batch itself, so the resulting queue is identical no
// matter the order remote requests are presented in.
func TestTieBreakPresentationOrder(t *testing.T) {
	rm := testManager(t, 0, 4)
	rm.Step(Inputs{RemoteRequests: []int{3, 1, 2}})

	assert.Equal(t, []int{1, 2, 3}, rm.Queue())
}

func TestLocalReleaseWithoutHold(t *testing.T) {
	rm0 := testManager(t, 0, 2)

	// Queue holds only agent 1; agent 0 does not hold the resource.
	rm0.Step(Inputs{RemoteRequests: []int{1}})
	assert.Equal(t, []int{1}, rm0.Queue())

	out := rm0.Step(Inputs{LocalRelease: true})
	assert.False(t, out.Release, "Expected no release broadcast")
	assert.Equal(t, []int{1}, rm0.Queue(), "Expected queue to be unchanged")
	assert.Equal(t, 1, rm0.Stats().ReleasesIgnored)
}

func TestRemoteReleaseWithoutHold(t *testing.T) {
	rm := testManager(t, 0, 3)
	rm.Step(Inputs{RemoteRequests: []int{1, 2}})

	// Agent 2 releases while agent 1 holds.
	out := rm.Step(Inputs{RemoteReleases: []int{2}})
	assert.False(t, out.Grant)
	assert.Equal(t, []int{1, 2}, rm.Queue())
	assert.Equal(t, 1, rm.Stats().ReleasesIgnored)
}

// Only the first valid release in an instant is applied; the rest are
// reported as violations of the holder-acts-alone assumption.
func TestMultipleRemoteReleases(t *testing.T) {
	rm := testManager(t, 2, 3)
	rm.Step(Inputs{RemoteRequests: []int{0, 1}})

	out := rm.Step(Inputs{RemoteReleases: []int{0, 1}})
	assert.Equal(t, []int{1}, rm.Queue())
	assert.False(t, out.Grant)
	assert.Equal(t, 1, rm.Stats().MultipleReleases)
}

// A slot vacated by a release must be visible to requests arriving in the
// same instant: releases are applied before the merge.
func TestVacatedSlotVisibleSameInstant(t *testing.T) {
	rm := testManager(t, 1, 2)

	rm.Step(Inputs{LocalRequest: true, RemoteRequests: []int{0}})
	assert.Equal(t, []int{0, 1}, rm.Queue())

	// Agent 0 releases and immediately re-requests in one instant. The
	// release frees its slot first, so the re-request is admitted at the
	// tail and this agent is promoted to the head.
	out := rm.Step(Inputs{RemoteRequests: []int{0}, RemoteReleases: []int{0}})
	assert.Equal(t, []int{1, 0}, rm.Queue())
	assert.True(t, out.Grant, "Expected promotion to head to grant")
}

func TestRedundantLocalRequest(t *testing.T) {
	rm := testManager(t, 0, 2)

	out := rm.Step(Inputs{LocalRequest: true})
	assert.True(t, out.Grant)
	assert.Equal(t, []int{0}, rm.Queue())

	// Requesting again while still queued is dropped and must not re-grant.
	out = rm.Step(Inputs{LocalRequest: true})
	assert.False(t, out.Grant, "Expected no grant for a dropped request")
	assert.Equal(t, []int{0}, rm.Queue())
	assert.Equal(t, 1, rm.Stats().DroppedRedundant)
}

func TestQueueFullDropsRequest(t *testing.T) {
	rm := testManager(t, 0, 2)
	rm.Step(Inputs{LocalRequest: true, RemoteRequests: []int{1}})
	assert.Equal(t, []int{0, 1}, rm.Queue())

	// A third requester exceeds the configured peer count.
	rm.Step(Inputs{RemoteRequests: []int{2}})
	assert.Equal(t, []int{0, 1}, rm.Queue(), "Expected queue to be unchanged")
	assert.Equal(t, 1, rm.Stats().DroppedFull)
}

// A grant is only ever raised when the queue head equals the agent's own ID
// immediately after reconciliation.
func TestGrantOnlyAtHead(t *testing.T) {
	rm := testManager(t, 1, 3)

	out := rm.Step(Inputs{LocalRequest: true, RemoteRequests: []int{0}})
	assert.False(t, out.Grant)
	assert.Equal(t, []int{0, 1}, rm.Queue())

	head, _ := rm.Head()
	assert.NotEqual(t, 1, head)
}

// Step is the composition of Announce and Reconcile.
func TestStepMatchesSplit(t *testing.T) {
	whole := testManager(t, 0, 3)
	split := testManager(t, 0, 3)

	in := Inputs{LocalRequest: true, RemoteRequests: []int{2}}

	outW := whole.Step(in)

	outA := split.Announce(in.LocalRequest, in.LocalRelease)
	outR := split.Reconcile(in.RemoteRequests, in.RemoteReleases)

	assert.Equal(t, outW.Request, outA.Request)
	assert.Equal(t, outW.Release, outA.Release)
	assert.Equal(t, outW.Grant, outR.Grant)
	assert.Equal(t, whole.Queue(), split.Queue())
}

func TestPhaseCount(t *testing.T) {
	if len(reconcilePhases) != 4 {
		t.Errorf("Expected 4 reconciliation phases, got %d", len(reconcilePhases))
	}

	if broadcastPhases != 2 {
		t.Errorf("Expected 2 broadcast-producing phases, got %d", broadcastPhases)
	}
}

func TestCloseReportsOutstanding(t *testing.T) {
	rm := testManager(t, 1, 2)

	// Request while agent 0 holds; never granted.
	rm.Step(Inputs{RemoteRequests: []int{0}})
	rm.Step(Inputs{LocalRequest: true})

	assert.Equal(t, 1, rm.Close())

	granted := testManager(t, 0, 2)
	granted.Step(Inputs{LocalRequest: true})
	assert.Equal(t, 0, granted.Close())
}
