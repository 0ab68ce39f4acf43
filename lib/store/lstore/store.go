package lstore

import (
	"context"
	"github.com/tenkdog/jarvis/lib/store"
	"strconv"
	"sync"
	"sync/atomic"
)

// FailFunc decides whether an operation against loc fails. op is either "fetch" or "write".
// Returning a non-nil error makes the operation fail with that error.
type FailFunc func(op string, loc store.Locator) error

// LocalStore is an in-memory implementation of store.IDocumentStore.
// Documents are kept in their encoded form so that every Fetch returns a fresh copy.
type LocalStore struct {
	mu    sync.Mutex
	docs  map[store.Locator][]byte
	revs  map[store.Locator]string
	index atomic.Uint64

	fail   atomic.Pointer[FailFunc]
	fetchN atomic.Int64
	writeN atomic.Int64
}

// NewLocalStore creates a new, empty local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		docs: make(map[store.Locator][]byte),
		revs: make(map[store.Locator]string),
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to give each write a unique revision tag.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *LocalStore) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *LocalStore) Fetch(ctx context.Context, loc store.Locator, revision string) (store.Document, string, error) {
	s.fetchN.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, "", store.Errorf(store.RetCTransport, "fetch %s: %v", loc, err)
	}
	if err := s.injected("fetch", loc); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	raw, ok := s.docs[loc]
	rev := s.revs[loc]
	s.mu.Unlock()

	if !ok {
		return nil, "", store.Errorf(store.RetCNotFound, "document %s does not exist", loc)
	}
	if revision != "" && revision == rev {
		return nil, rev, store.ErrNotModified
	}

	doc, err := store.Decode(raw)
	if err != nil {
		return nil, "", err
	}
	return doc, rev, nil
}

func (s *LocalStore) Write(ctx context.Context, loc store.Locator, doc store.Document) (string, error) {
	s.writeN.Add(1)
	if err := ctx.Err(); err != nil {
		return "", store.Errorf(store.RetCTransport, "write %s: %v", loc, err)
	}
	if err := s.injected("write", loc); err != nil {
		return "", err
	}

	raw, err := store.Encode(doc)
	if err != nil {
		return "", err
	}
	rev := `W/"` + strconv.FormatUint(s.incAndGetIndex(), 10) + `"`

	s.mu.Lock()
	s.docs[loc] = raw
	s.revs[loc] = rev
	s.mu.Unlock()
	return rev, nil
}

// --------------------------------------------------------------------------
// Test and Development Helpers
// --------------------------------------------------------------------------

// Put stores doc at loc without counting it as a write. Useful to seed remote content.
func (s *LocalStore) Put(loc store.Locator, doc store.Document) {
	raw, err := store.Encode(doc)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.docs[loc] = raw
	s.revs[loc] = `W/"` + strconv.FormatUint(s.incAndGetIndex(), 10) + `"`
	s.mu.Unlock()
}

// Peek returns the currently stored document at loc (decoded) and whether it exists.
func (s *LocalStore) Peek(loc store.Locator) (store.Document, bool) {
	s.mu.Lock()
	raw, ok := s.docs[loc]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	doc, err := store.Decode(raw)
	return doc, err == nil
}

// SetFailFunc installs f to inject failures. Passing nil removes it.
func (s *LocalStore) SetFailFunc(f FailFunc) {
	if f == nil {
		s.fail.Store(nil)
		return
	}
	s.fail.Store(&f)
}

// Fetches returns the number of Fetch calls so far.
func (s *LocalStore) Fetches() int64 { return s.fetchN.Load() }

// Writes returns the number of Write calls so far.
func (s *LocalStore) Writes() int64 { return s.writeN.Load() }

func (s *LocalStore) injected(op string, loc store.Locator) error {
	f := s.fail.Load()
	if f == nil {
		return nil
	}
	return (*f)(op, loc)
}
