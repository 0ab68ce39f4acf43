package cache

import (
	"context"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/tenkdog/jarvis/lib/store"
	"github.com/tenkdog/jarvis/lib/store/lstore"
	"go.uber.org/goleak"
	"sync"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testLoc = store.Locator{ID: "gist", Name: "core.json"}

func testSchema() Schema {
	return Schema{Fields: []Field{
		{Key: "admins", Kind: KindMap, Default: func() any {
			return map[string]any{"1": map[string]any{"is_super": true}}
		}},
		{Key: "threads", Kind: KindMap, Aliases: []string{"allowed_threads"}},
		{Key: "logs", Kind: KindList},
	}}
}

func testConfig() Config {
	return Config{
		Name:             "core",
		Locator:          testLoc,
		Schema:           testSchema(),
		TTL:              60 * time.Second,
		Debounce:         2500 * time.Millisecond,
		LockTimeout:      20 * time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  10 * time.Second,
		BootstrapMissing: true,
	}
}

func newTestDataset(t *testing.T, cfg Config) (*Dataset, *lstore.LocalStore, *testClock) {
	t.Helper()
	s := lstore.NewLocalStore()
	clock := newTestClock()
	return NewDataset(cfg, s, clock.Now, nil), s, clock
}

func failAll(err error) lstore.FailFunc {
	return func(string, store.Locator) error { return err }
}

func failOp(op string, err error) lstore.FailFunc {
	return func(o string, _ store.Locator) error {
		if o == op {
			return err
		}
		return nil
	}
}

var errDown = store.NewError(store.RetCTransport, "remote down")

// --------------------------------------------------------------------------
// Read-through Refresh
// --------------------------------------------------------------------------

func TestGetDefaultsAndEmptyValues(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{"7": map[string]any{}}, "extra": "kept"})
	ctx := context.Background()

	if diff := cmp.Diff(map[string]any{"7": map[string]any{}}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("unexpected admins (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{}, d.Get(ctx, "logs")); diff != "" {
		t.Errorf("Expected empty list for missing list field (-want +got):\n%s", diff)
	}
	if got := d.Get(ctx, "extra"); got != "kept" {
		t.Errorf("Expected unknown field to be preserved, got %v", got)
	}
	if got := d.Get(ctx, "unknown"); got != nil {
		t.Errorf("Expected nil for keys outside the schema, got %v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"threads": map[string]any{"a": true}})
	ctx := context.Background()

	v := d.Get(ctx, "threads").(map[string]any)
	v["b"] = true

	if _, ok := d.Get(ctx, "threads").(map[string]any)["b"]; ok {
		t.Error("Expected mutation of the returned value not to leak into the cache")
	}
	if d.Status().Dirty {
		t.Error("Expected dataset to stay clean")
	}
}

// a failed read never wipes the cached document
func TestNoSilentWipe(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{"42": map[string]any{"is_super": false}}})
	ctx := context.Background()

	before := d.Get(ctx, "admins")

	for _, err := range []error{
		errDown,
		store.NewError(store.RetCStatus, "502"),
		store.NewError(store.RetCNotFound, "file deleted"),
		store.NewError(store.RetCDecode, "garbage"),
	} {
		s.SetFailFunc(failAll(err))
		clock.Advance(time.Minute)
		if o := d.Refresh(ctx, true); o != OutcomeFailed && o != OutcomeBreakerOpen {
			t.Fatalf("Expected failed refresh, got %s", o)
		}
		if diff := cmp.Diff(before, d.Get(ctx, "admins")); diff != "" {
			t.Fatalf("document changed after %v (-want +got):\n%s", err, diff)
		}
	}

	if d.Status().Dirty {
		t.Error("Expected a deleted document after a successful load not to be recreated")
	}
}

func TestFirstLoadFailureServesDefaults(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.SetFailFunc(failAll(errDown))
	ctx := context.Background()

	if diff := cmp.Diff(map[string]any{"1": map[string]any{"is_super": true}}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}

	st := d.Status()
	if st.Dirty {
		t.Error("Expected defaults after a transient failure not to be persisted")
	}
	if st.Loaded || st.SecondsSinceLoad != nil {
		t.Errorf("Expected dataset not to count as loaded, got %+v", st)
	}
	if st.LastError == "" || st.ConsecutiveFailures != 1 {
		t.Errorf("Expected recorded failure, got %+v", st)
	}

	// the next access tries again
	s.SetFailFunc(nil)
	s.Put(testLoc, store.Document{"admins": map[string]any{}})
	if diff := cmp.Diff(map[string]any{}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("Expected remote content after recovery (-want +got):\n%s", diff)
	}
	if !d.Status().OK() {
		t.Error("Expected last error to be cleared after a successful load")
	}
}

func TestBootstrapMissingDocument(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		d, s, _ := newTestDataset(t, testConfig())
		ctx := context.Background()

		if o := d.Refresh(ctx, true); o != OutcomeFailed {
			t.Fatalf("Expected failed refresh, got %s", o)
		}
		if !d.Status().Dirty {
			t.Fatal("Expected defaults of a missing document to be scheduled for creation")
		}
		if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
			t.Fatalf("Expected write, got %s", o)
		}
		remote, ok := s.Peek(testLoc)
		if !ok {
			t.Fatal("Expected document to be created")
		}
		if diff := cmp.Diff(testSchema().Defaults(), remote); diff != "" {
			t.Errorf("unexpected created document (-want +got):\n%s", diff)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.BootstrapMissing = false
		d, s, _ := newTestDataset(t, cfg)
		ctx := context.Background()

		d.Refresh(ctx, true)
		if d.Status().Dirty {
			t.Error("Expected defaults not to be scheduled")
		}
		d.FlushIfDue(ctx, true)
		if s.Writes() != 0 {
			t.Errorf("Expected no write, got %d", s.Writes())
		}
	})
}

// TTL hit and miss
func TestTTL(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})
	ctx := context.Background()

	d.Get(ctx, "admins")
	clock.Advance(30 * time.Second)
	d.Get(ctx, "admins")
	if s.Fetches() != 1 {
		t.Fatalf("Expected 1 fetch within the TTL, got %d", s.Fetches())
	}

	clock.Advance(30 * time.Second)
	d.Get(ctx, "admins")
	if s.Fetches() != 2 {
		t.Errorf("Expected 2 fetches after the TTL, got %d", s.Fetches())
	}
}

// a not-modified answer only stamps the load time
func TestConditionalFetch(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{}})
	ctx := context.Background()

	if o := d.Refresh(ctx, false); o != OutcomeLoaded {
		t.Fatalf("Expected load, got %s", o)
	}
	before := d.Snapshot(ctx)

	clock.Advance(2 * time.Minute)
	if o := d.Refresh(ctx, false); o != OutcomeNotModified {
		t.Fatalf("Expected not modified, got %s", o)
	}
	if secs := d.Status().SecondsSinceLoad; secs == nil || *secs != 0 {
		t.Errorf("Expected load time to be stamped, got %v", secs)
	}
	if diff := cmp.Diff(before, d.Snapshot(ctx)); diff != "" {
		t.Errorf("document changed (-want +got):\n%s", diff)
	}
}

func TestFetchWhileDirtyMergesLocalChanges(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{"5": map[string]any{}}, "threads": map[string]any{}})
	ctx := context.Background()

	d.Update(ctx, "threads", map[string]any{"local": true})
	s.Put(testLoc, store.Document{
		"admins":  map[string]any{"9": map[string]any{}},
		"threads": map[string]any{"remote": true},
	})

	clock.Advance(time.Minute)
	if o := d.Refresh(ctx, false); o != OutcomeLoaded {
		t.Fatalf("Expected load, got %s", o)
	}
	if diff := cmp.Diff(map[string]any{"local": true}, d.Get(ctx, "threads")); diff != "" {
		t.Errorf("Expected the mutated key to keep its local value (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"9": map[string]any{}}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("Expected untouched keys to follow the remote (-want +got):\n%s", diff)
	}
	if !d.Status().Dirty {
		t.Fatal("Expected the merged document to stay dirty")
	}

	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff(map[string]any{"local": true}, remote["threads"]); diff != "" {
		t.Errorf("unexpected remote threads (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"9": map[string]any{}}, remote["admins"]); diff != "" {
		t.Errorf("Expected the flush not to revert remote admins (-want +got):\n%s", diff)
	}
}

func TestUpdateBeforeFirstLoadKeepsRemoteContent(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{
		"admins":  map[string]any{"5": map[string]any{}},
		"threads": map[string]any{"chat_1": true},
	})
	ctx := context.Background()

	s.SetFailFunc(failAll(errDown))
	if o := d.Refresh(ctx, true); o != OutcomeFailed {
		t.Fatalf("Expected failed refresh, got %s", o)
	}
	d.Update(ctx, "logs", []any{"entry"})

	s.SetFailFunc(nil)
	if o := d.Refresh(ctx, true); o != OutcomeLoaded {
		t.Fatalf("Expected load after recovery, got %s", o)
	}
	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}

	remote, _ := s.Peek(testLoc)
	want := store.Document{
		"admins":  map[string]any{"5": map[string]any{}},
		"threads": map[string]any{"chat_1": true},
		"logs":    []any{"entry"},
	}
	if diff := cmp.Diff(want, remote); diff != "" {
		t.Errorf("Expected remote content plus the local update (-want +got):\n%s", diff)
	}
}

func TestNeverLoadedIsNotWritten(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{"5": map[string]any{}}})
	s.SetFailFunc(failOp("fetch", errDown))
	ctx := context.Background()

	d.Update(ctx, "logs", []any{"entry"})
	if o := d.FlushIfDue(ctx, true); o != OutcomeNotLoaded {
		t.Fatalf("Expected not loaded, got %s", o)
	}
	if s.Writes() != 0 {
		t.Errorf("Expected no write over an unread document, got %d", s.Writes())
	}
	if !d.Status().Dirty {
		t.Error("Expected the update to stay pending")
	}

	s.SetFailFunc(nil)
	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write once the remote is readable, got %s", o)
	}
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff(map[string]any{"5": map[string]any{}}, remote["admins"]); diff != "" {
		t.Errorf("unexpected remote admins (-want +got):\n%s", diff)
	}
}

func TestMarkDirtyKeepsLocalDocument(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{"5": map[string]any{}}})
	ctx := context.Background()

	d.Refresh(ctx, true)
	d.MarkDirty()
	s.Put(testLoc, store.Document{"admins": map[string]any{"9": map[string]any{}}})

	clock.Advance(time.Minute)
	if o := d.Refresh(ctx, false); o != OutcomeLoaded {
		t.Fatalf("Expected load, got %s", o)
	}
	if diff := cmp.Diff(map[string]any{"5": map[string]any{}}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("Expected the local document to be kept (-want +got):\n%s", diff)
	}

	// the kept document is not the remote revision, the next fetch is not conditional on it
	clock.Advance(time.Minute)
	if o := d.Refresh(ctx, false); o != OutcomeLoaded {
		t.Errorf("Expected a full fetch, got %s", o)
	}

	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff(map[string]any{"5": map[string]any{}}, remote["admins"]); diff != "" {
		t.Errorf("unexpected remote admins (-want +got):\n%s", diff)
	}
}

// --------------------------------------------------------------------------
// Debounced Write-back
// --------------------------------------------------------------------------

// updates within the debounce window are coalesced into one write
func TestDebounceCoalescing(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d.Update(ctx, "logs", []any{i})
		clock.Advance(500 * time.Millisecond)
		if o := d.FlushIfDue(ctx, false); o != OutcomeNotDue {
			t.Fatalf("Expected flush not to be due, got %s", o)
		}
	}

	clock.Advance(2 * time.Second)
	if o := d.FlushIfDue(ctx, false); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	if o := d.FlushIfDue(ctx, false); o != OutcomeClean {
		t.Fatalf("Expected clean dataset, got %s", o)
	}
	if s.Writes() != 1 {
		t.Errorf("Expected exactly 1 write, got %d", s.Writes())
	}

	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff([]any{float64(4)}, remote["logs"]); diff != "" {
		t.Errorf("Expected last value to be written (-want +got):\n%s", diff)
	}
}

func TestMaxDelay(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDelay = 5 * time.Second
	d, s, clock := newTestDataset(t, cfg)
	s.Put(testLoc, store.Document{})
	ctx := context.Background()

	written := 0
	for i := 0; i < 12; i++ {
		d.Update(ctx, "logs", []any{i})
		clock.Advance(time.Second)
		if d.FlushIfDue(ctx, false) == OutcomeWritten {
			written++
		}
	}
	if written != 2 {
		t.Errorf("Expected continuous updates to be written every 5s, got %d writes", written)
	}
}

func TestFailedWriteStaysDirty(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})
	ctx := context.Background()

	d.Update(ctx, "logs", []any{"a"})
	clock.Advance(3 * time.Second)

	s.SetFailFunc(failOp("write", errDown))
	if o := d.FlushIfDue(ctx, false); o != OutcomeFailed {
		t.Fatalf("Expected failed flush, got %s", o)
	}
	st := d.Status()
	if !st.Dirty || st.LastFlushAttemptAt == nil || st.LastFlushSuccessAt != nil {
		t.Errorf("unexpected status after failed flush %+v", st)
	}

	s.SetFailFunc(nil)
	if o := d.FlushIfDue(ctx, false); o != OutcomeWritten {
		t.Fatalf("Expected retry to write, got %s", o)
	}
	if st := d.Status(); st.Dirty || st.LastFlushSuccessAt == nil {
		t.Errorf("unexpected status after successful flush %+v", st)
	}
}

// hookStore calls onWrite before delegating a write
type hookStore struct {
	*lstore.LocalStore
	onWrite func()
}

func (h *hookStore) Write(ctx context.Context, loc store.Locator, doc store.Document) (string, error) {
	if h.onWrite != nil {
		h.onWrite()
	}
	return h.LocalStore.Write(ctx, loc, doc)
}

func TestMutationDuringFlushStaysDirty(t *testing.T) {
	s := &hookStore{LocalStore: lstore.NewLocalStore()}
	s.Put(testLoc, store.Document{})
	clock := newTestClock()
	d := NewDataset(testConfig(), s, clock.Now, nil)
	ctx := context.Background()

	d.Update(ctx, "logs", []any{"first"})
	s.onWrite = func() {
		s.onWrite = nil
		d.Update(ctx, "logs", []any{"second"})
	}

	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	if !d.Status().Dirty {
		t.Fatal("Expected mutation during the write to keep the dataset dirty")
	}

	d.FlushIfDue(ctx, true)
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff([]any{"second"}, remote["logs"]); diff != "" {
		t.Errorf("Expected second mutation to be written (-want +got):\n%s", diff)
	}
}

// --------------------------------------------------------------------------
// Circuit Breaker
// --------------------------------------------------------------------------

// the breaker trips after the threshold and heals after the cool-down
func TestBreakerTripsAndHeals(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})
	ctx := context.Background()
	d.Refresh(ctx, true)

	s.SetFailFunc(failAll(errDown))
	for i := 0; i < 3; i++ {
		if o := d.Refresh(ctx, true); o != OutcomeFailed {
			t.Fatalf("Expected failure %d, got %s", i+1, o)
		}
	}
	fetches, writes := s.Fetches(), s.Writes()

	d.Update(ctx, "logs", []any{"while open"})
	for i := 0; i < 5; i++ {
		if o := d.Refresh(ctx, true); o != OutcomeBreakerOpen {
			t.Fatalf("Expected open breaker, got %s", o)
		}
		if o := d.FlushIfDue(ctx, true); o != OutcomeBreakerOpen {
			t.Fatalf("Expected open breaker, got %s", o)
		}
		clock.Advance(time.Second)
	}
	if s.Fetches() != fetches || s.Writes() != writes {
		t.Fatalf("Expected no remote calls while open, got %d fetches and %d writes", s.Fetches()-fetches, s.Writes()-writes)
	}
	if st := d.Status(); !st.BreakerOpen || st.BreakerOpenUntil == nil || st.ConsecutiveFailures != 3 {
		t.Errorf("unexpected status while open %+v", st)
	}

	clock.Advance(5 * time.Second)
	s.SetFailFunc(nil)
	if o := d.Refresh(ctx, true); o != OutcomeNotModified {
		t.Fatalf("Expected the first call after the cool-down to succeed, got %s", o)
	}
	if s.Fetches() != fetches+1 {
		t.Errorf("Expected exactly 1 call after the cool-down, got %d", s.Fetches()-fetches)
	}
	if st := d.Status(); st.BreakerOpen || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Errorf("Expected closed breaker, got %+v", st)
	}
}

// --------------------------------------------------------------------------
// Locking
// --------------------------------------------------------------------------

// blockingStore blocks every fetch until release is closed or the context is done
type blockingStore struct {
	*lstore.LocalStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Fetch(ctx context.Context, loc store.Locator, rev string) (store.Document, string, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, "", store.Errorf(store.RetCTransport, "fetch %s: %v", loc, ctx.Err())
	}
	return b.LocalStore.Fetch(ctx, loc, rev)
}

// a concurrent refresh does not wait for the running one
func TestRefreshDoesNotBlock(t *testing.T) {
	s := &blockingStore{
		LocalStore: lstore.NewLocalStore(),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	s.Put(testLoc, store.Document{"admins": map[string]any{}})
	clock := newTestClock()
	d := NewDataset(testConfig(), s, clock.Now, nil)
	ctx := context.Background()

	done := make(chan Outcome)
	go func() {
		done <- d.Refresh(ctx, true)
	}()
	<-s.entered

	start := time.Now()
	if o := d.Refresh(ctx, true); o != OutcomeBusy {
		t.Errorf("Expected busy outcome, got %s", o)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected refresh to return within the lock timeout, took %s", elapsed)
	}

	// the busy caller is served the defaults, it never sees an empty document
	if diff := cmp.Diff(map[string]any{"1": map[string]any{"is_super": true}}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("unexpected value while loading (-want +got):\n%s", diff)
	}

	close(s.release)
	if o := <-done; o != OutcomeLoaded {
		t.Errorf("Expected first refresh to load, got %s", o)
	}
	if diff := cmp.Diff(map[string]any{}, d.Get(ctx, "admins")); diff != "" {
		t.Errorf("unexpected value after loading (-want +got):\n%s", diff)
	}
}

// staleStore reads the document when the fetch starts and, once release is set, returns it
// only after release is closed, like a slow answer that is overtaken by a write
type staleStore struct {
	*lstore.LocalStore
	entered chan struct{}
	release chan struct{}
}

func (b *staleStore) Fetch(ctx context.Context, loc store.Locator, _ string) (store.Document, string, error) {
	doc, rev, err := b.LocalStore.Fetch(ctx, loc, "")
	if b.release != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return doc, rev, err
}

func TestFetchOvertakenByFlushIsDiscarded(t *testing.T) {
	s := &staleStore{LocalStore: lstore.NewLocalStore()}
	s.Put(testLoc, store.Document{"threads": map[string]any{"old": true}})
	clock := newTestClock()
	d := NewDataset(testConfig(), s, clock.Now, nil)
	ctx := context.Background()

	if o := d.Refresh(ctx, true); o != OutcomeLoaded {
		t.Fatalf("Expected load, got %s", o)
	}
	clock.Advance(time.Minute)
	s.entered = make(chan struct{}, 1)
	s.release = make(chan struct{})

	done := make(chan Outcome)
	go func() {
		done <- d.Refresh(ctx, true)
	}()
	<-s.entered

	// the refresh holds the load lock, the update works on the cached document
	d.Update(ctx, "threads", map[string]any{"new": true})
	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}

	close(s.release)
	if o := <-done; o != OutcomeLoaded {
		t.Fatalf("Expected the overtaken refresh to finish, got %s", o)
	}
	if diff := cmp.Diff(map[string]any{"new": true}, d.Get(ctx, "threads")); diff != "" {
		t.Errorf("Expected the stale document to be discarded (-want +got):\n%s", diff)
	}

	d.Update(ctx, "logs", []any{"entry"})
	if o := d.FlushIfDue(ctx, true); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff(map[string]any{"new": true}, remote["threads"]); diff != "" {
		t.Errorf("Expected the stale document not to be written back (-want +got):\n%s", diff)
	}
}

func TestConcurrentModify(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})
	ctx := context.Background()
	d.Refresh(ctx, true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Modify(ctx, "threads", func(cur any) (any, bool) {
				m := cur.(map[string]any)
				n, _ := m["n"].(int)
				m["n"] = n + 1
				return m, true
			})
		}()
	}
	wg.Wait()

	if got := d.Get(ctx, "threads").(map[string]any)["n"]; got != 50 {
		t.Errorf("Expected 50 increments, got %v", got)
	}
}

func TestModifyWithoutChange(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{})

	changed := d.Modify(context.Background(), "threads", func(cur any) (any, bool) {
		return cur, false
	})
	if changed || d.Status().Dirty {
		t.Error("Expected unchanged value not to mark the dataset dirty")
	}
}

// --------------------------------------------------------------------------
// Scenario
// --------------------------------------------------------------------------

func TestScenario(t *testing.T) {
	d, s, clock := newTestDataset(t, testConfig())
	s.Put(testLoc, store.Document{"admins": map[string]any{}})
	ctx := context.Background()
	d.Refresh(ctx, true)

	// (1) updates are visible before any write
	admins := map[string]any{"99": map[string]any{"added_by": float64(1), "is_super": false}}
	d.Update(ctx, "admins", admins)
	if diff := cmp.Diff(admins, d.Get(ctx, "admins")); diff != "" {
		t.Fatalf("update not visible (-want +got):\n%s", diff)
	}
	if s.Writes() != 0 {
		t.Fatalf("Expected no write yet, got %d", s.Writes())
	}

	// (2) exactly one write with the full document once the debounce passed
	clock.Advance(2500 * time.Millisecond)
	if o := d.FlushIfDue(ctx, false); o != OutcomeWritten {
		t.Fatalf("Expected write, got %s", o)
	}
	remote, _ := s.Peek(testLoc)
	if diff := cmp.Diff(d.Snapshot(ctx), remote); diff != "" {
		t.Fatalf("Expected full document to be written (-want +got):\n%s", diff)
	}

	// (3) three failed writes open the breaker
	s.SetFailFunc(failOp("write", errDown))
	d.Update(ctx, "logs", []any{"a"})
	clock.Advance(2500 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if o := d.FlushIfDue(ctx, false); o != OutcomeFailed {
			t.Fatalf("Expected failed write %d, got %s", i+1, o)
		}
	}
	writes := s.Writes()

	d.Update(ctx, "logs", []any{"a", "b"})
	clock.Advance(2500 * time.Millisecond)
	if o := d.FlushIfDue(ctx, false); o != OutcomeBreakerOpen {
		t.Fatalf("Expected open breaker, got %s", o)
	}
	if s.Writes() != writes {
		t.Fatalf("Expected no write while open, got %d", s.Writes()-writes)
	}
	if diff := cmp.Diff([]any{"a", "b"}, d.Get(ctx, "logs")); diff != "" {
		t.Fatalf("update while open not visible (-want +got):\n%s", diff)
	}

	// (4) after the cool-down the next flush succeeds
	s.SetFailFunc(nil)
	clock.Advance(10 * time.Second)
	if o := d.FlushIfDue(ctx, false); o != OutcomeWritten {
		t.Fatalf("Expected write after cool-down, got %s", o)
	}
	st := d.Status()
	if st.Dirty || st.ConsecutiveFailures != 0 {
		t.Errorf("Expected clean dataset with reset failures, got %+v", st)
	}
	remote, _ = s.Peek(testLoc)
	if diff := cmp.Diff([]any{"a", "b"}, remote["logs"]); diff != "" {
		t.Errorf("unexpected written logs (-want +got):\n%s", diff)
	}
}

func TestInjectedErrorIsReported(t *testing.T) {
	d, s, _ := newTestDataset(t, testConfig())
	s.SetFailFunc(failAll(errors.New("plain failure")))
	d.Refresh(context.Background(), true)

	if got := d.Status().LastError; got != "refresh core: plain failure" {
		t.Errorf("unexpected last error %q", got)
	}
}
