// Package zookeeper implements cluster.Lock on ZooKeeper using the standard
// sequential-ephemeral znode recipe: every contender enters a claim znode
// under a shared lock path, the lowest sequence ID holds the lock, and each
// waiter watches the claim immediately ahead of its own. Handover is
// first-come-first-served by sequence ID.
package zookeeper

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/distworks/mutexkit/cluster"
)

// ZooKeeperLock satisfies the kit's common locking contract.
var _ cluster.Lock = (*ZooKeeperLock)(nil)

// OwnerKey is the context key under which Lock looks up an optional owner
// identity. Claims carrying the identity of the current holder are treated
// as reentrant rather than queued behind themselves.
type OwnerKey struct{}

// client is the subset of the ZooKeeper client API the lock uses; it exists
// so tests can substitute a mock.
type client interface {
	Children(path string) ([]string, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Close()
}

// ZooKeeperLock is a cluster.Lock backed by ZooKeeper.
type ZooKeeperLock struct {
	c client
	// Path is the parent znode all claims are created under.
	Path string

	mu sync.Mutex
	// lockZnode is this instance's claim znode while the lock is held.
	lockZnode string
	// owner is the identity the lock was acquired under, if one was
	// provided.
	owner interface{}
}

// ZooKeeperLockConfig holds ZooKeeperLock configuration parameters.
type ZooKeeperLockConfig struct {
	// Address is the ZooKeeper connect string.
	Address string
	// Path is the locking path, e.g. "/mutexkit/locks".
	Path string
	// SessionTimeout bounds the ZooKeeper session; claims are ephemeral and
	// disappear with the session. Defaults to 10s.
	SessionTimeout time.Duration
}

// NewZooKeeperLock returns a ZooKeeperLock for the provided config. The
// locking path is created if it doesn't exist.
func NewZooKeeperLock(cfg ZooKeeperLockConfig) (*ZooKeeperLock, error) {
	zkl := &ZooKeeperLock{Path: cfg.Path}

	timeout := cfg.SessionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var err error
	zkl.c, _, err = zk.Connect([]string{cfg.Address}, timeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}

	return zkl, zkl.init()
}

// init creates the locking path. If we're provided "/path/to/locks", each of
// "/path", "/path/to", "/path/to/locks" is created in order.
func (z *ZooKeeperLock) init() error {
	nodes := strings.Split(strings.Trim(z.Path, "/"), "/")

	for i := range nodes {
		nodePath := fmt.Sprintf("/%s", strings.Join(nodes[:i+1], "/"))
		_, err := z.c.Create(nodePath, nil, 0, zk.WorldACL(31))
		if err != nil && err != zk.ErrNodeExists {
			return err
		}
	}

	return nil
}

// Close closes the underlying ZooKeeper connection, abandoning any held
// claim with the session.
func (z *ZooKeeperLock) Close() {
	z.c.Close()
}
