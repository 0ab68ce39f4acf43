package cache

import (
	"context"
	"errors"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tenkdog/jarvis/lib/breaker"
	"github.com/tenkdog/jarvis/lib/store"
	"golang.org/x/sync/semaphore"
	"sync"
	"time"
)

var Logger = logger.GetLogger("cache")

const (
	// DefaultLockTimeout bounds the wait for the load and the flush lock
	DefaultLockTimeout = 150 * time.Millisecond
)

// Config holds the parameters of one dataset
type Config struct {
	// Name identifies the dataset (e.g. "core", "runtime")
	Name string
	// Locator addresses the document at the remote store
	Locator store.Locator
	// Schema drives default filling and type normalization
	Schema Schema
	// TTL is the freshness window of the cached document
	TTL time.Duration
	// Debounce is the quiet period after the last mutation before a write-back is due
	Debounce time.Duration
	// MaxDelay forces a write-back once the oldest unflushed mutation is this old, even if
	// mutations keep arriving. 0 disables the limit.
	MaxDelay time.Duration
	// LockTimeout bounds the wait for the load and the flush lock
	LockTimeout time.Duration
	// BreakerThreshold and BreakerCooldown configure the circuit breaker of the dataset
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// BootstrapMissing persists the defaults once if the very first load finds no document
	BootstrapMissing bool
}

// Dataset is a read-through, write-back cache of one remote document.
//
// Reads are served from memory while the document is fresh (see Config.TTL), otherwise one
// caller re-fetches it while concurrent callers keep using the cached copy. Mutations are
// applied in memory and written back by FlushIfDue once the debounce window passed.
// A failed read never replaces the cached document, a failed write keeps the dataset dirty.
//
// A Dataset is safe for concurrent use.
type Dataset struct {
	cfg     Config
	store   store.IDocumentStore
	breaker *breaker.Breaker
	now     func() time.Time
	metrics *datasetMetrics

	// scheduling locks, acquired with a timeout and never waited on indefinitely
	loadSem  *semaphore.Weighted
	flushSem *semaphore.Weighted

	// mu guards all fields below
	mu                 sync.RWMutex
	doc                store.Document
	revision           string
	fetched            bool // at least one successful fetch
	loadedAt           time.Time
	bootstrap          bool // the remote document is missing and gets created from the defaults
	dirty              bool
	dirtyKeys          map[string]struct{} // keys mutated since the last write-back
	dirtyAll           bool                // the whole local document replaces the remote one
	dirtyAt            time.Time           // last mutation
	dirtySince         time.Time           // oldest unflushed mutation
	generation         uint64
	flushes            uint64 // successful write-backs
	lastFlushAttemptAt time.Time
	lastFlushSuccessAt time.Time
}

// NewDataset creates a dataset on top of s. The clock now defaults to time.Now, set may be
// nil if the counters are not exported.
func NewDataset(cfg Config, s store.IDocumentStore, now func() time.Time, set *metrics.Set) *Dataset {
	if now == nil {
		now = time.Now
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	d := &Dataset{
		cfg:      cfg,
		store:    s,
		breaker:  breaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown, now),
		now:      now,
		metrics:  newDatasetMetrics(set, cfg.Name),
		loadSem:  semaphore.NewWeighted(1),
		flushSem: semaphore.NewWeighted(1),
	}
	d.metrics.gauges(d)
	return d
}

// Name returns the name of the dataset
func (d *Dataset) Name() string {
	return d.cfg.Name
}

// --------------------------------------------------------------------------
// Read-through Refresh
// --------------------------------------------------------------------------

// Refresh re-fetches the document if it is stale (or force is set). It never blocks longer
// than the lock timeout on a concurrent refresh and never returns an error: failures are
// recorded in the breaker and the cached document (or the defaults) stays in place.
func (d *Dataset) Refresh(ctx context.Context, force bool) Outcome {
	o := d.refresh(ctx, force)
	d.metrics.refreshed(o)
	return o
}

func (d *Dataset) refresh(ctx context.Context, force bool) Outcome {
	if !force && d.isFresh() {
		return OutcomeFresh
	}

	if d.breaker.IsOpen() {
		d.installDefaults(false)
		return OutcomeBreakerOpen
	}

	if !d.tryAcquire(ctx, d.loadSem) {
		d.installDefaults(false)
		return OutcomeBusy
	}
	defer d.loadSem.Release(1)

	// another caller may have refreshed while we waited for the lock
	if !force && d.isFresh() {
		return OutcomeFresh
	}

	d.mu.RLock()
	revision := d.revision
	flushes := d.flushes
	d.mu.RUnlock()

	start := time.Now()
	doc, newRevision, err := d.store.Fetch(ctx, d.cfg.Locator, revision)
	d.metrics.observeFetch(time.Since(start))

	switch {
	case errors.Is(err, store.ErrNotModified):
		d.mu.Lock()
		if d.revision == revision {
			// the remote still holds the revision we fetched or wrote last
			d.fetched = true
			d.bootstrap = false
		}
		d.loadedAt = d.now()
		d.mu.Unlock()
		d.breaker.RecordSuccess()
		return OutcomeNotModified

	case err != nil:
		d.recordFailure(fmt.Errorf("refresh %s: %w", d.cfg.Name, err))
		d.mu.RLock()
		bootstrap := !d.fetched && store.IsNotFound(err) && d.cfg.BootstrapMissing
		d.mu.RUnlock()
		d.installDefaults(bootstrap)
		return OutcomeFailed
	}

	doc = d.cfg.Schema.Normalize(doc)

	d.mu.Lock()
	switch {
	case d.flushes != flushes:
		// a write-back finished while fetching, doc may predate it
		Logger.Debugf("dataset %s was written during the fetch, discarding fetched document", d.cfg.Name)
	case d.dirtyAll && d.fetched:
		// the local document replaces the remote one on the next flush
		Logger.Debugf("dataset %s is dirty, keeping local document", d.cfg.Name)
	default:
		d.adoptLocked(doc, newRevision)
	}
	d.fetched = true
	d.bootstrap = false
	d.loadedAt = d.now()
	d.mu.Unlock()

	d.breaker.RecordSuccess()
	return OutcomeLoaded
}

// adoptLocked installs the fetched document and re-applies the keys mutated locally since
// the last write-back, so pending mutations survive without reverting remote content. d.mu
// must be held.
func (d *Dataset) adoptLocked(doc store.Document, revision string) {
	for key := range d.dirtyKeys {
		if v, ok := d.doc[key]; ok {
			doc[key] = v
		} else {
			delete(doc, key)
		}
	}
	d.doc = doc
	d.revision = revision
	d.dirtyAll = false
	if d.dirty && len(d.dirtyKeys) == 0 {
		// nothing local is pending (e.g. scheduled creation of a document that exists now)
		d.clearDirtyLocked()
	}
}

// isFresh reports whether a document is cached and younger than the TTL
func (d *Dataset) isFresh() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc != nil && !d.loadedAt.IsZero() && d.now().Sub(d.loadedAt) < d.cfg.TTL
}

// installDefaults populates an empty dataset with the schema defaults. With persist set,
// the defaults are also marked dirty so the next flush creates the remote document.
func (d *Dataset) installDefaults(persist bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		d.doc = d.cfg.Schema.Defaults()
	}
	if persist && !d.bootstrap {
		Logger.Infof("dataset %s does not exist at %s, scheduling creation", d.cfg.Name, d.cfg.Locator)
		d.bootstrap = true
		d.markDirtyLocked("")
	}
}

// --------------------------------------------------------------------------
// get/update
// --------------------------------------------------------------------------

// Get refreshes the dataset if needed and returns a copy of the value stored at key. An
// absent key yields the empty value of its schema field (nil for keys outside the schema).
func (d *Dataset) Get(ctx context.Context, key string) any {
	d.Refresh(ctx, false)

	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.doc[key]
	if !ok {
		return d.cfg.Schema.EmptyValue(key)
	}
	return cloneValue(v)
}

// Update refreshes the dataset if needed, stores a copy of value at key and marks the
// dataset dirty. It does not write to the remote store.
func (d *Dataset) Update(ctx context.Context, key string, value any) {
	d.Modify(ctx, key, func(any) (any, bool) {
		return value, true
	})
}

// Modify refreshes the dataset if needed and applies fn to the value at key while holding
// the document lock, so concurrent read-modify-write cycles do not lose updates. fn gets a
// copy of the current value (or the empty value) and returns the new value and whether it
// changed anything. Only a change marks the dataset dirty. fn must not call back into d.
func (d *Dataset) Modify(ctx context.Context, key string, fn func(current any) (any, bool)) bool {
	d.Refresh(ctx, false)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		d.doc = d.cfg.Schema.Defaults()
	}

	current, ok := d.doc[key]
	if ok {
		current = cloneValue(current)
	} else {
		current = d.cfg.Schema.EmptyValue(key)
	}

	next, changed := fn(current)
	if !changed {
		return false
	}
	d.doc[key] = cloneValue(next)
	d.markDirtyLocked(key)
	return true
}

// Snapshot refreshes the dataset if needed and returns a copy of the whole document
func (d *Dataset) Snapshot(ctx context.Context) store.Document {
	d.Refresh(ctx, false)

	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneDocument(d.doc)
}

// --------------------------------------------------------------------------
// Debounced Write-back
// --------------------------------------------------------------------------

// MarkDirty flags the whole document for write-back and restarts the debounce window. A
// later fetch keeps the local document instead of merging it with the remote one.
func (d *Dataset) MarkDirty() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirtyAll = true
	d.markDirtyLocked("")
}

// markDirtyLocked records a mutation of key, an empty key only restarts the window
func (d *Dataset) markDirtyLocked(key string) {
	now := d.now()
	if !d.dirty {
		d.dirtySince = now
	}
	if key != "" {
		if d.dirtyKeys == nil {
			d.dirtyKeys = make(map[string]struct{})
		}
		d.dirtyKeys[key] = struct{}{}
	}
	d.dirty = true
	d.dirtyAt = now
	d.generation++
}

func (d *Dataset) clearDirtyLocked() {
	d.dirty = false
	d.dirtyKeys = nil
	d.dirtyAll = false
	d.dirtyAt = time.Time{}
	d.dirtySince = time.Time{}
}

// FlushIfDue writes the document back if it is dirty and the debounce window passed (or
// force is set). Like Refresh it never blocks on a concurrent flush. A failed write keeps
// the dataset dirty so the next call retries it.
func (d *Dataset) FlushIfDue(ctx context.Context, force bool) Outcome {
	o := d.flushIfDue(ctx, force)
	if o != OutcomeClean && o != OutcomeNotDue {
		d.metrics.flushed(o)
	}
	return o
}

func (d *Dataset) flushIfDue(ctx context.Context, force bool) Outcome {
	if due, o := d.flushDue(force); !due {
		return o
	}

	if d.breaker.IsOpen() {
		return OutcomeBreakerOpen
	}

	// never write a document that is not based on the remote one
	if !d.writable() {
		if o := d.Refresh(ctx, true); o == OutcomeBreakerOpen || o == OutcomeBusy {
			return o
		}
		if !d.writable() {
			return OutcomeNotLoaded
		}
	}

	if !d.tryAcquire(ctx, d.flushSem) {
		return OutcomeBusy
	}
	defer d.flushSem.Release(1)

	// a concurrent flush may have written the document in the meantime
	if due, o := d.flushDue(force); !due {
		return o
	}

	d.mu.Lock()
	doc := cloneDocument(d.doc)
	generation := d.generation
	d.lastFlushAttemptAt = d.now()
	d.mu.Unlock()

	start := time.Now()
	revision, err := d.store.Write(ctx, d.cfg.Locator, doc)
	d.metrics.observeFlush(time.Since(start))

	if err != nil {
		d.recordFailure(fmt.Errorf("flush %s: %w", d.cfg.Name, err))
		return OutcomeFailed
	}

	d.mu.Lock()
	now := d.now()
	if d.generation == generation {
		d.clearDirtyLocked()
	} else {
		// mutated while writing, the newer state goes out with the next flush
		d.dirtySince = now
	}
	d.flushes++
	d.revision = revision
	d.lastFlushSuccessAt = now
	d.mu.Unlock()

	d.breaker.RecordSuccess()
	return OutcomeWritten
}

// flushDue reports whether a write-back is due, otherwise the reason why not
func (d *Dataset) flushDue(force bool) (bool, Outcome) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.doc == nil || !d.dirty {
		return false, OutcomeClean
	}
	if force {
		return true, OutcomeUnknown
	}
	now := d.now()
	if now.Sub(d.dirtyAt) >= d.cfg.Debounce {
		return true, OutcomeUnknown
	}
	if d.cfg.MaxDelay > 0 && now.Sub(d.dirtySince) >= d.cfg.MaxDelay {
		return true, OutcomeUnknown
	}
	return false, OutcomeNotDue
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writable reports whether the cached document may replace the remote one: it was loaded
// at least once or it is the scheduled creation of a missing document
func (d *Dataset) writable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fetched || d.bootstrap
}

// tryAcquire acquires sem, waiting at most the lock timeout
func (d *Dataset) tryAcquire(ctx context.Context, sem *semaphore.Weighted) bool {
	if sem.TryAcquire(1) {
		return true
	}
	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockTimeout)
	defer cancel()
	return sem.Acquire(lockCtx, 1) == nil
}

// recordFailure feeds err into the breaker and logs it
func (d *Dataset) recordFailure(err error) {
	if d.breaker.RecordFailure(err) {
		d.metrics.breakerOpened()
		Logger.Warningf("%v (breaker open for dataset %s)", err, d.cfg.Name)
		return
	}
	Logger.Warningf("%v", err)
}
