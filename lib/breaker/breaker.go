package breaker

import (
	"sync"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that opens the breaker
	DefaultThreshold = 3
	// DefaultCooldown is how long an open breaker skips remote calls
	DefaultCooldown = 10 * time.Second
	// MaxErrorLen bounds the length of the recorded error message
	MaxErrorLen = 240
)

// Snapshot is a point in time copy of the breaker state
type Snapshot struct {
	ConsecutiveFailures int
	// OpenUntil is the zero time if the breaker was never opened or has been reset
	OpenUntil time.Time
	LastError string
	Open      bool
}

// Breaker tracks consecutive failures of a remote dependency. After Threshold consecutive
// failures it opens for Cooldown, during which IsOpen reports true and callers skip the
// remote. Once the deadline passed, the next caller tries the remote again: a success
// closes the breaker, a failure opens it for another cool-down window.
//
// A Breaker is safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	lastError string
}

// New creates a breaker. Non-positive values select the defaults, a nil clock uses time.Now.
func New(threshold int, cooldown time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
	}
}

// IsOpen reports whether the deadline lies strictly in the future
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen()
}

// RecordFailure counts a failed remote operation and opens the breaker when the threshold is reached.
// It returns true if this failure opened the breaker.
func (b *Breaker) RecordFailure(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if err != nil {
		b.lastError = Truncate(err.Error(), MaxErrorLen)
	}
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// RecordSuccess resets the failure count, closes the breaker and clears the last error.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.lastError = ""
}

// Snapshot returns a copy of the current state
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		ConsecutiveFailures: b.failures,
		OpenUntil:           b.openUntil,
		LastError:           b.lastError,
		Open:                b.isOpen(),
	}
}

func (b *Breaker) isOpen() bool {
	return !b.openUntil.IsZero() && b.now().Before(b.openUntil)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	// step back to the start of a rune
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
