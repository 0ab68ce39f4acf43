package lockmgr

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

var Logger = logger.GetLogger("lockmgr")

type lockEntry struct {
	owner   int64
	expires time.Time
}

type lockMgrImpl struct {
	ttl   time.Duration
	now   func() time.Time
	locks *xsync.MapOf[string, lockEntry]
}

// NewLockManager creates an in-process lock manager. A non-positive ttl selects DefaultTTL,
// a nil clock uses time.Now.
func NewLockManager(ttl time.Duration, now func() time.Time) ILockManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &lockMgrImpl{
		ttl:   ttl,
		now:   now,
		locks: xsync.NewMapOf[string, lockEntry](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr/interface.go)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) AcquireLock(key string, owner int64) (bool, int64) {
	var (
		acquired bool
		holder   int64
	)
	// Compute runs atomically per key, this is the CAS of the lock
	lm.locks.Compute(key, func(old lockEntry, loaded bool) (lockEntry, bool) {
		now := lm.now()
		if !loaded || !now.Before(old.expires) {
			acquired, holder = true, owner
			return lockEntry{owner: owner, expires: now.Add(lm.ttl)}, false
		}
		acquired, holder = old.owner == owner, old.owner
		return old, false
	})
	if !acquired {
		Logger.Debugf("lock %s is held by %d, denied for %d", key, holder, owner)
	}
	return acquired, holder
}

func (lm *lockMgrImpl) RefreshLock(key string, owner int64) bool {
	refreshed := false
	lm.locks.Compute(key, func(old lockEntry, loaded bool) (lockEntry, bool) {
		if !loaded {
			return old, true
		}
		// an expired lock nobody took over is revived for its owner
		if old.owner == owner {
			refreshed = true
			old.expires = lm.now().Add(lm.ttl)
		}
		return old, false
	})
	return refreshed
}

func (lm *lockMgrImpl) ReleaseLock(key string, owner int64) bool {
	released := true
	lm.locks.Compute(key, func(old lockEntry, loaded bool) (lockEntry, bool) {
		if !loaded {
			return old, true
		}
		// an expired lock belongs to nobody
		if old.owner != owner && lm.now().Before(old.expires) {
			released = false
			return old, false
		}
		return old, true
	})
	return released
}

func (lm *lockMgrImpl) Holder(key string) (int64, bool) {
	e, ok := lm.locks.Load(key)
	if !ok || !lm.now().Before(e.expires) {
		return 0, false
	}
	return e.owner, true
}
