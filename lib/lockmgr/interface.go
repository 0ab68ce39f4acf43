package lockmgr

import (
	"time"
)

// ILockManager defines the interface for a lockmgr provider.
type ILockManager interface {
	// AcquireLock acquires the lock for the given key on behalf of owner.
	// Return true if the lock was free, expired or is already held by owner. A lock held by
	// owner is not extended (see RefreshLock). The current holder is returned in any case.
	AcquireLock(key string, owner int64) (ok bool, holder int64)

	// RefreshLock extends the lock for the given key by another TTL.
	// Return false if the lock is not held by owner.
	RefreshLock(key string, owner int64) bool

	// ReleaseLock releases the lock for the given key.
	// Return false if the lock is held by someone else. The method will also return
	// true if the lock did not exist.
	ReleaseLock(key string, owner int64) bool

	// Holder returns the current holder of the lock and whether the lock is held at all.
	// Expired locks are reported as free.
	Holder(key string) (holder int64, ok bool)
}

// DefaultTTL is the time after which an abandoned lock is released automatically
const DefaultTTL = 180 * time.Second
