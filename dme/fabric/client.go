package fabric

// clientState tracks where a client is in its request cycle.
type clientState int

const (
	// stateIdle: not interested in the resource.
	stateIdle clientState = iota
	// stateWaiting: requested, awaiting the grant.
	stateWaiting
	// stateHolding: granted, using the resource.
	stateHolding
)

func (s clientState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateWaiting:
		return "waiting"
	case stateHolding:
		return "holding"
	default:
		return "invalid"
	}
}

// ClientConfig holds Client configuration parameters.
type ClientConfig struct {
	// IdleInstants is how many instants the client stays idle before
	// requesting the resource again. Zero requests immediately.
	IdleInstants int
	// HoldInstants is how many instants the client holds the resource
	// before releasing it. Zero releases at the first instant after the
	// grant.
	HoldInstants int
}

// Client is a deterministic periodic generator standing in for the
// co-located client process: it requests after an idle delay and releases
// after a hold delay. It is driven exclusively by the owning Cluster's Tick.
type Client struct {
	idle  int
	hold  int
	state clientState
	count int

	grants int
}

func newClient(cfg ClientConfig) *Client {
	return &Client{
		idle: cfg.IdleInstants,
		hold: cfg.HoldInstants,
	}
}

// tick advances the client by one instant and returns the signals it raises.
func (cl *Client) tick() (request, release bool) {
	switch cl.state {
	case stateIdle:
		if cl.count >= cl.idle {
			cl.state = stateWaiting
			cl.count = 0
			return true, false
		}
		cl.count++

	case stateHolding:
		if cl.count >= cl.hold {
			cl.state = stateIdle
			cl.count = 0
			return false, true
		}
		cl.count++
	}

	return false, false
}

// granted moves the client into the holding state.
func (cl *Client) granted() {
	cl.state = stateHolding
	cl.count = 0
	cl.grants++
}

// Grants returns how many times this client has been granted the resource.
func (cl *Client) Grants() int {
	return cl.grants
}

// State returns the client's current state name, for diagnostics.
func (cl *Client) State() string {
	return cl.state.String()
}
