package cache

import (
	"time"
)

// Outcome is the result of a Refresh or a FlushIfDue call
type Outcome int

const (
	OutcomeUnknown     Outcome = iota
	OutcomeFresh               // refresh: the cached document is within the TTL
	OutcomeBreakerOpen         // the breaker is open, the remote was not contacted
	OutcomeBusy                // the lock could not be acquired in time
	OutcomeNotModified         // refresh: the remote reported no change
	OutcomeLoaded              // refresh: a new document was fetched
	OutcomeFailed              // the remote operation failed
	OutcomeClean               // flush: nothing to write
	OutcomeNotDue              // flush: the debounce window has not passed
	OutcomeWritten             // flush: the document was written
	OutcomeNotLoaded           // flush: the remote document was never read, writing it could lose data
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeBreakerOpen:
		return "breaker_open"
	case OutcomeBusy:
		return "busy"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	case OutcomeClean:
		return "clean"
	case OutcomeNotDue:
		return "not_due"
	case OutcomeWritten:
		return "written"
	case OutcomeNotLoaded:
		return "not_loaded"
	default:
		return "unknown"
	}
}

// Status is the diagnostics report of one dataset
type Status struct {
	Dataset             string     `json:"dataset"`
	Locator             string     `json:"locator"`
	Loaded              bool       `json:"loaded"`
	Dirty               bool       `json:"dirty"`
	SecondsSinceLoad    *float64   `json:"seconds_since_load"`
	DirtySince          *time.Time `json:"dirty_since,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	BreakerOpen         bool       `json:"breaker_open"`
	BreakerOpenUntil    *time.Time `json:"breaker_open_until"`
	LastError           string     `json:"last_error"`
	LastFlushAttemptAt  *time.Time `json:"last_flush_attempt_at"`
	LastFlushSuccessAt  *time.Time `json:"last_flush_success_at"`
	FetchP99Ms          float64    `json:"fetch_p99_ms"`
	FlushP99Ms          float64    `json:"flush_p99_ms"`
}

// OK reports whether the last remote operation of the dataset succeeded
func (s Status) OK() bool {
	return s.LastError == ""
}

// Status returns the diagnostics report. It has no side effects.
func (d *Dataset) Status() Status {
	snap := d.breaker.Snapshot()

	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{
		Dataset:             d.cfg.Name,
		Locator:             d.cfg.Locator.String(),
		Loaded:              d.fetched,
		Dirty:               d.dirty,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		BreakerOpen:         snap.Open,
		BreakerOpenUntil:    timeOrNil(snap.OpenUntil),
		LastError:           snap.LastError,
		LastFlushAttemptAt:  timeOrNil(d.lastFlushAttemptAt),
		LastFlushSuccessAt:  timeOrNil(d.lastFlushSuccessAt),
		FetchP99Ms:          p99Millis(d.metrics.fetchLatency),
		FlushP99Ms:          p99Millis(d.metrics.flushLatency),
	}
	if d.dirty {
		st.DirtySince = timeOrNil(d.dirtySince)
	}
	if !d.loadedAt.IsZero() {
		secs := d.now().Sub(d.loadedAt).Seconds()
		st.SecondsSinceLoad = &secs
	}
	return st
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
