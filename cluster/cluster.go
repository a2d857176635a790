// package cluster specifies clustering primitives for multi-node service
// coordination.
package cluster

import (
	"context"
)

// Lock defines a distributed locking service.
type Lock interface {
	// Lock and Unlock are simple, coarse grain locks. How contenders are
	// ordered is an implementation detail that isn't negotiated through this
	// interface, other than that every implementation in this kit grants
	// first-come-first-served. A context is accepted for setting wait bounds.
	Lock(context.Context) error
	Unlock(context.Context) error
}
