package zookeeper

import (
	"errors"
	"fmt"
)

var (
	// ErrLockingTimedOut is returned when a lock couldn't be acquired by the
	// context deadline.
	ErrLockingTimedOut = errors.New("attempt to acquire lock timed out")
	// ErrAlreadyOwnLock is returned when the requesting owner already holds
	// the lock.
	ErrAlreadyOwnLock = errors.New("requestor already owns the lock")
	// ErrNotLockOwner is returned when Unlock is called on a lock that isn't
	// held by this instance.
	ErrNotLockOwner = errors.New("instance doesn't hold the lock")
	// ErrInvalidSeqNode is returned when sequential znodes are being parsed
	// for a trailing integer ID, but one isn't found.
	ErrInvalidSeqNode = errors.New("znode doesn't appear to be a sequential type")
)

// ErrLockingFailed is a general locking failure.
type ErrLockingFailed struct {
	message string
}

func (e ErrLockingFailed) Error() string {
	return fmt.Sprintf("attempt to acquire lock failed: %s", e.message)
}

// ErrUnlockingFailed is a general unlocking failure.
type ErrUnlockingFailed struct {
	message string
}

func (e ErrUnlockingFailed) Error() string {
	return fmt.Sprintf("attempt to release lock failed: %s", e.message)
}
