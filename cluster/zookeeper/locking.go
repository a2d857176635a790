package zookeeper

import (
	"context"
	"fmt"

	"github.com/go-zookeeper/zk"
)

// Lock claims the lock, blocking until it's acquired or the context is done.
// Contenders are served in claim order. If the context carries an owner
// identity (see OwnerKey) matching the current holder, Lock returns
// ErrAlreadyOwnLock without entering a second claim.
func (z *ZooKeeperLock) Lock(ctx context.Context) error {
	owner := ctx.Value(OwnerKey{})

	z.mu.Lock()
	if z.lockZnode != "" && owner != nil && owner == z.owner {
		z.mu.Unlock()
		return ErrAlreadyOwnLock
	}
	z.mu.Unlock()

	// Enter our claim.
	claimPath := fmt.Sprintf("%s/lock-", z.Path)
	node, err := z.c.CreateProtectedEphemeralSequential(claimPath, nil, zk.WorldACL(31))
	if err != nil {
		return ErrLockingFailed{message: err.Error()}
	}

	thisID, err := idFromZnode(node)
	if err != nil {
		return ErrLockingFailed{message: err.Error()}
	}

	for {
		// Get all current claims.
		claims, err := z.claims()
		if err != nil {
			return ErrLockingFailed{message: err.Error()}
		}

		// Check if ours is the first claim.
		firstClaim, err := claims.First()
		if err != nil {
			return ErrLockingFailed{message: err.Error()}
		}

		if thisID == firstClaim {
			// We have the lock.
			z.mu.Lock()
			z.lockZnode, _ = claims.Path(thisID)
			z.owner = owner
			z.mu.Unlock()

			return nil
		}

		// We don't have the lock; enqueue our wait position by watching the
		// claim immediately ahead of ours.
		aheadID, err := claims.Ahead(thisID)
		if err != nil {
			return ErrLockingFailed{message: err.Error()}
		}

		aheadPath, err := claims.Path(aheadID)
		if err != nil {
			return ErrLockingFailed{message: err.Error()}
		}

		_, _, aheadReleased, err := z.c.GetW(aheadPath)
		if err != nil {
			// The claim ahead may already be gone; re-scan.
			if err == zk.ErrNoNode {
				continue
			}
			return ErrLockingFailed{message: err.Error()}
		}

		// Race the watch event against the context.
		select {
		case <-ctx.Done():
			// Withdraw our claim so waiters behind us aren't parked behind
			// an abandoned entry.
			if path, err := claims.Path(thisID); err == nil {
				z.c.Delete(path, -1)
			}
			return ErrLockingTimedOut
		case <-aheadReleased:
			continue
		}
	}
}

// Unlock releases the lock by deleting this instance's claim znode.
func (z *ZooKeeperLock) Unlock(_ context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.lockZnode == "" {
		return ErrNotLockOwner
	}

	if err := z.c.Delete(z.lockZnode, -1); err != nil && err != zk.ErrNoNode {
		return ErrUnlockingFailed{message: err.Error()}
	}

	z.lockZnode = ""
	z.owner = nil

	return nil
}
