// Package lockmgr implements named, owner-checked locks with automatic expiration. The bot
// uses them for the admin "setting lock": only one administrator at a time may walk through
// an interactive settings dialog, everybody else is told who currently holds it.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic expiration after a configurable TTL (default 180s)
//   - Refresh and release operations that verify ownership
//
// Implementation Approach:
//
//	Locks live in an xsync.MapOf keyed by lock name. Every operation runs inside
//	MapOf.Compute, which executes atomically per key, so acquire is a single
//	compare-and-set:
//
//	- Lock Acquisition: succeeds if no entry exists or the entry expired. If the
//	  lock is held, the call reports whether the caller is the holder. Acquiring
//	  a lock one already holds does not extend it.
//
//	- Refresh: extends the expiration by another TTL if the caller is the owner.
//
//	- Safe Release: removes the entry if the caller is the owner or the entry
//	  expired. Releasing a lock that does not exist succeeds.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. The lock manager is in-process
//	only, locks are not shared between replicas of the bot.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(lockmgr.DefaultTTL, nil)
//
//	if ok, holder := locks.AcquireLock("setting", userID); !ok {
//	    // tell the user that holder is currently editing the settings
//	    return
//	}
//	locks.RefreshLock("setting", userID)
//	// ...
//	locks.ReleaseLock("setting", userID)
package lockmgr
