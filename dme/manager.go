package dme

import (
	"fmt"
	"log"
	"sort"
)

// Config holds ResourceManager configuration parameters.
type Config struct {
	// ID is this agent's peer identifier, unique across the cluster, in the
	// range [0, Peers).
	ID int
	// Peers is the total number of agents. It also sizes the request queue.
	Peers int
	// Name is used in diagnostics only. Defaults to "agent-<ID>".
	Name string
	// Logger is the destination for protocol warnings. The global logger is
	// used if nil.
	Logger *log.Logger
}

// Inputs carries the events a ResourceManager observes in one logical
// instant. RemoteRequests and RemoteReleases must be presented in ascending
// peer-ID order, and every replica must observe the same sets for the same
// instant; both are delivery guarantees owed by the broadcast fabric, not
// defended here.
type Inputs struct {
	LocalRequest   bool
	LocalRelease   bool
	RemoteRequests []int
	RemoteReleases []int
}

// Outputs carries the signals a ResourceManager raises in one logical
// instant. Request and Release are broadcast to all peers and carry this
// agent's own ID; Grant goes to the co-located client.
type Outputs struct {
	Grant   bool
	Request bool
	Release bool
}

// Stats is a snapshot of a ResourceManager's event counters.
type Stats struct {
	RequestsIssued   int
	ReleasesIssued   int
	Grants           int
	DroppedRedundant int
	DroppedFull      int
	ReleasesIgnored  int
	MultipleReleases int
}

// ResourceManager is one site's agent in the mutual-exclusion protocol. It
// consumes local and remote request/release events one logical instant at a
// time and keeps a replica of the cluster-wide request queue. Replicas agree
// because every agent applies the same phases in the same order to the same
// per-instant event sets; no agent ever reads another agent's state.
//
// A ResourceManager is not safe for concurrent use. It processes one instant
// at a time and its queue is owned exclusively by it.
type ResourceManager struct {
	id    int
	peers int
	name  string
	log   *log.Logger

	queue *RequestQueue

	// pending tracks whether a local request was forwarded this instant and
	// awaits the merge phase. It never persists across instants.
	pending bool

	// Count of locally issued requests not yet granted.
	outstanding int

	stats Stats
}

// NewResourceManager returns a ResourceManager for the provided Config.
func NewResourceManager(cfg Config) (*ResourceManager, error) {
	if cfg.Peers < 1 {
		return nil, fmt.Errorf("peer count must be at least 1, got %d", cfg.Peers)
	}

	if cfg.ID < 0 || cfg.ID >= cfg.Peers {
		return nil, fmt.Errorf("agent ID %d outside range [0,%d)", cfg.ID, cfg.Peers)
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("agent-%d", cfg.ID)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ResourceManager{
		id:    cfg.ID,
		peers: cfg.Peers,
		name:  name,
		log:   logger,
		queue: NewRequestQueue(cfg.Peers),
	}, nil
}

// phaseFn is one step of the per-instant reconciliation pipeline.
type phaseFn func(rm *ResourceManager, in Inputs, out *Outputs)

// reconcilePhases is the fixed phase order every replica executes each
// instant. Releases are applied before the request merge so that a slot
// vacated this instant is visible to requests arriving in the same instant.
var reconcilePhases = []phaseFn{
	(*ResourceManager).forwardLocalRequest,
	(*ResourceManager).applyLocalRelease,
	(*ResourceManager).applyRemoteReleases,
	(*ResourceManager).mergeRequests,
}

// broadcastPhases counts the leading phases that read only local signals.
// They produce the instant's broadcasts and must complete before remote
// events for the same instant are gathered; the remaining phases consume
// those events.
const broadcastPhases = 2

// Step runs one full logical instant against the provided inputs and returns
// the raised outputs. It is equivalent to Announce followed by Reconcile;
// use the split pair when this agent's broadcasts must be fanned out to
// peers within the same instant.
func (rm *ResourceManager) Step(in Inputs) Outputs {
	var out Outputs
	for _, phase := range reconcilePhases {
		phase(rm, in, &out)
	}

	return out
}

// Announce opens a logical instant by running the broadcast-producing phases
// against the local client's signals. The returned Request/Release outputs
// are what the fabric must deliver to every peer at this same instant.
func (rm *ResourceManager) Announce(localRequest, localRelease bool) Outputs {
	in := Inputs{LocalRequest: localRequest, LocalRelease: localRelease}

	var out Outputs
	for _, phase := range reconcilePhases[:broadcastPhases] {
		phase(rm, in, &out)
	}

	return out
}

// Reconcile completes the instant opened by Announce, consuming the remote
// events gathered for it. Both slices must be in ascending peer-ID order.
func (rm *ResourceManager) Reconcile(remoteRequests, remoteReleases []int) Outputs {
	in := Inputs{RemoteRequests: remoteRequests, RemoteReleases: remoteReleases}

	var out Outputs
	for _, phase := range reconcilePhases[broadcastPhases:] {
		phase(rm, in, &out)
	}

	return out
}

// forwardLocalRequest broadcasts a local request. The queue is untouched;
// admission waits until every peer's simultaneous requests are visible in
// the merge phase.
func (rm *ResourceManager) forwardLocalRequest(in Inputs, out *Outputs) {
	if !in.LocalRequest {
		return
	}

	rm.pending = true
	rm.outstanding++
	rm.stats.RequestsIssued++
	out.Request = true
}

// applyLocalRelease pops the queue head and broadcasts a release if this
// agent holds the resource. A client releasing while not at the head is a
// protocol violation; it is reported and skipped.
func (rm *ResourceManager) applyLocalRelease(in Inputs, out *Outputs) {
	if !in.LocalRelease {
		return
	}

	if head, ok := rm.queue.PeekHead(); !ok || head != rm.id {
		rm.warn(ErrReleaseWithoutHold{ID: rm.id})
		rm.stats.ReleasesIgnored++
		return
	}

	rm.queue.Pop()
	rm.stats.ReleasesIssued++
	out.Release = true
}

// applyRemoteReleases applies this instant's remote releases. At most one
// release network-wide is legitimate per instant; the first one matching the
// queue head is applied and every further release is reported and ignored.
func (rm *ResourceManager) applyRemoteReleases(in Inputs, out *Outputs) {
	var applied bool

	for _, id := range in.RemoteReleases {
		if applied {
			rm.warn(ErrMultipleReleases{ID: id})
			rm.stats.MultipleReleases++
			continue
		}

		if head, ok := rm.queue.PeekHead(); !ok || head != id {
			rm.warn(ErrReleaseWithoutHold{ID: id})
			rm.stats.ReleasesIgnored++
			continue
		}

		rm.queue.Pop()
		applied = true

		// The vacated head may promote this agent.
		if next, ok := rm.queue.PeekHead(); ok && next == rm.id {
			rm.grant(out)
		}
	}
}

// mergeRequests admits this instant's requests, local and remote, as one
// batch sorted ascending by peer ID. The sort is the deterministic tie-break
// for simultaneous requests and must be identical on every replica.
func (rm *ResourceManager) mergeRequests(in Inputs, out *Outputs) {
	batch := make([]int, 0, len(in.RemoteRequests)+1)
	batch = append(batch, in.RemoteRequests...)
	if rm.pending {
		batch = append(batch, rm.id)
	}

	sort.Ints(batch)

	var admitted bool
	for _, id := range batch {
		err := rm.queue.Push(id)
		if err == nil {
			if id == rm.id {
				admitted = true
			}
			continue
		}

		rm.warn(err)

		switch err.(type) {
		case ErrRedundantRequest:
			rm.stats.DroppedRedundant++
		case ErrQueueFull:
			rm.stats.DroppedFull++
		}

		// A dropped local request will never be granted under this issue.
		if id == rm.id && rm.outstanding > 0 {
			rm.outstanding--
		}
	}

	// Grant only a request admitted this instant; a dropped redundant
	// request must not re-grant a holder.
	if head, ok := rm.queue.PeekHead(); ok && head == rm.id && admitted {
		rm.grant(out)
	}

	rm.pending = false
}

func (rm *ResourceManager) grant(out *Outputs) {
	out.Grant = true
	rm.stats.Grants++
	if rm.outstanding > 0 {
		rm.outstanding--
	}
}

func (rm *ResourceManager) warn(err error) {
	rm.log.Printf("[%s] %s", rm.name, err)
}

// ID returns this agent's peer identifier.
func (rm *ResourceManager) ID() int {
	return rm.id
}

// Name returns this agent's diagnostic name.
func (rm *ResourceManager) Name() string {
	return rm.name
}

// Queue returns a snapshot of the replica queue, head first.
func (rm *ResourceManager) Queue() []int {
	return rm.queue.IDs()
}

// Head returns the current queue head. The second return is false when the
// queue is empty.
func (rm *ResourceManager) Head() (int, bool) {
	return rm.queue.PeekHead()
}

// Stats returns a snapshot of this agent's event counters.
func (rm *ResourceManager) Stats() Stats {
	return rm.stats
}

// Close reports how many locally issued requests were never granted. This is
// a shutdown diagnostic, not a correctness requirement.
func (rm *ResourceManager) Close() int {
	if rm.outstanding > 0 {
		rm.log.Printf("[%s] shutting down with %d ungranted local requests", rm.name, rm.outstanding)
	}

	return rm.outstanding
}
