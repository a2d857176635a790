// Package fabric provides a deterministic in-memory broadcast fabric for
// dme agents. It drives a set of ResourceManagers in lock step, one logical
// instant at a time, delivering every request/release broadcast from instant
// t to every other agent at instant t in ascending peer-ID order. That is
// exactly the delivery guarantee the protocol requires of its substrate; the
// networked version of that substrate (clock synchronization, retransmission,
// federation wiring) is out of scope for this kit.
package fabric

import (
	"fmt"
	"log"
	"sync"

	"github.com/distworks/mutexkit/dme"
)

// Config holds Cluster configuration parameters.
type Config struct {
	// Peers is the number of agents in the cluster.
	Peers int
	// Logger is handed to every agent and used for fabric diagnostics. The
	// global logger is used if nil.
	Logger *log.Logger
}

// signals are the local client events staged for an agent's next instant.
type signals struct {
	request bool
	release bool
}

// Instant is the trace record of one logical instant.
type Instant struct {
	// Instant is the logical time this record describes.
	Instant int
	// Requests and Releases hold the peer IDs that broadcast this instant,
	// ascending.
	Requests []int
	Releases []int
	// Grants holds the peer IDs granted this instant, ascending.
	Grants []int
	// Queue is agent 0's replica queue after reconciliation.
	Queue []int
	// Agreed reports whether all replica queues were equal after
	// reconciliation. False means the fabric's delivery guarantee was
	// violated somewhere; it should never happen here.
	Agreed bool
}

// Cluster owns a set of dme agents and steps them through logical instants.
// Local signals come from attached Clients, Handles, or direct Signal calls;
// Tick consumes them all. Tick, Signal and the Handle methods are safe for
// concurrent use; each agent's reconciliation itself stays single-threaded
// inside Tick.
type Cluster struct {
	managers []*dme.ResourceManager
	clients  []*Client
	handles  []*Handle
	staged   []signals
	instant  int
	log      *log.Logger

	mu sync.Mutex
}

// NewCluster returns a Cluster of cfg.Peers agents with empty queues.
func NewCluster(cfg Config) (*Cluster, error) {
	if cfg.Peers < 1 {
		return nil, fmt.Errorf("peer count must be at least 1, got %d", cfg.Peers)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Cluster{
		managers: make([]*dme.ResourceManager, cfg.Peers),
		clients:  make([]*Client, cfg.Peers),
		handles:  make([]*Handle, cfg.Peers),
		staged:   make([]signals, cfg.Peers),
		log:      logger,
	}

	for i := 0; i < cfg.Peers; i++ {
		rm, err := dme.NewResourceManager(dme.Config{
			ID:     i,
			Peers:  cfg.Peers,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		c.managers[i] = rm
	}

	return c, nil
}

// AttachClient binds a periodic client generator to the agent with the given
// ID. An agent is driven by a Client or a Handle, never both.
func (c *Cluster) AttachClient(id int, cfg ClientConfig) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id < 0 || id >= len(c.managers) {
		return nil, fmt.Errorf("no agent with ID %d", id)
	}

	if c.handles[id] != nil {
		return nil, fmt.Errorf("agent %d is already driven by a lock handle", id)
	}

	cl := newClient(cfg)
	c.clients[id] = cl

	return cl, nil
}

// Handle returns a cluster.Lock adapter for the agent with the given ID.
func (c *Cluster) Handle(id int) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id < 0 || id >= len(c.managers) {
		return nil, fmt.Errorf("no agent with ID %d", id)
	}

	if c.clients[id] != nil {
		return nil, fmt.Errorf("agent %d is already driven by a client", id)
	}

	if c.handles[id] == nil {
		c.handles[id] = newHandle(c, id)
	}

	return c.handles[id], nil
}

// Signal stages local request/release signals for the agent's next instant.
func (c *Cluster) Signal(id int, request, release bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.signalLocked(id, request, release)
}

func (c *Cluster) signalLocked(id int, request, release bool) error {
	if id < 0 || id >= len(c.managers) {
		return fmt.Errorf("no agent with ID %d", id)
	}

	c.staged[id].request = c.staged[id].request || request
	c.staged[id].release = c.staged[id].release || release

	return nil
}

// Tick runs one logical instant across all agents and returns its trace
// record. Broadcasts produced in this instant are delivered to every other
// agent within the same instant, ascending by peer ID.
func (c *Cluster) Tick() Instant {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := Instant{Instant: c.instant}

	// Gather this instant's local signals.
	sigs := make([]signals, len(c.managers))
	for i := range c.managers {
		sigs[i] = c.staged[i]
		c.staged[i] = signals{}

		if cl := c.clients[i]; cl != nil {
			req, rel := cl.tick()
			sigs[i].request = sigs[i].request || req
			sigs[i].release = sigs[i].release || rel
		}
	}

	// First pass: every agent forwards its broadcasts for this instant.
	// Ascending loop order doubles as the canonical peer-index order.
	var requests, releases []int
	for i, rm := range c.managers {
		out := rm.Announce(sigs[i].request, sigs[i].release)
		if out.Request {
			requests = append(requests, i)
		}
		if out.Release {
			releases = append(releases, i)
		}
	}
	rec.Requests = requests
	rec.Releases = releases

	// Second pass: deliver and reconcile. Each agent sees every broadcast
	// but its own.
	for i, rm := range c.managers {
		out := rm.Reconcile(exclude(requests, i), exclude(releases, i))
		if out.Grant {
			rec.Grants = append(rec.Grants, i)

			if cl := c.clients[i]; cl != nil {
				cl.granted()
			}
			if h := c.handles[i]; h != nil {
				h.notify()
			}
		}
	}

	rec.Queue = c.managers[0].Queue()
	rec.Agreed = c.agreedLocked()
	if !rec.Agreed {
		c.log.Printf("replica queues diverged at instant %d: %v", c.instant, c.queuesLocked())
	}

	c.instant++

	return rec
}

// Run ticks the cluster for the given number of instants and returns the
// collected trace.
func (c *Cluster) Run(instants int) []Instant {
	trace := make([]Instant, 0, instants)
	for i := 0; i < instants; i++ {
		trace = append(trace, c.Tick())
	}

	return trace
}

// Queues returns every replica queue, indexed by peer ID.
func (c *Cluster) Queues() [][]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queuesLocked()
}

func (c *Cluster) queuesLocked() [][]int {
	queues := make([][]int, len(c.managers))
	for i, rm := range c.managers {
		queues[i] = rm.Queue()
	}

	return queues
}

// Agreed reports whether all replica queues are currently equal.
func (c *Cluster) Agreed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.agreedLocked()
}

func (c *Cluster) agreedLocked() bool {
	reference := c.managers[0].Queue()
	for _, rm := range c.managers[1:] {
		if !intsEqual(reference, rm.Queue()) {
			return false
		}
	}

	return true
}

// Stats returns every agent's counter snapshot, indexed by peer ID.
func (c *Cluster) Stats() []dme.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make([]dme.Stats, len(c.managers))
	for i, rm := range c.managers {
		stats[i] = rm.Stats()
	}

	return stats
}

// Close shuts down every agent and returns the per-agent counts of local
// requests that were never granted.
func (c *Cluster) Close() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	outstanding := make([]int, len(c.managers))
	for i, rm := range c.managers {
		outstanding[i] = rm.Close()
	}

	return outstanding
}

// exclude returns ids without self, preserving order.
func exclude(ids []int, self int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}

	return out
}

func intsEqual(i1, i2 []int) bool {
	if len(i1) != len(i2) {
		return false
	}

	for i := range i1 {
		if i1[i] != i2[i] {
			return false
		}
	}

	return true
}
