// Package lstore implements a local, in-memory document store based on the
// store.IDocumentStore interface. Data is stored entirely in memory and is not
// persisted between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Monotonic revision tags, so conditional fetches behave like the remote
//   - Failure injection (SetFailFunc) to simulate an unreachable or misbehaving remote
//   - Call counters (Fetches, Writes) to observe how often the cache reaches the store
//
// Implementation Details:
//
//   - Revision Management: The store maintains an atomic counter that increments with
//     every write. The counter value is rendered as a weak ETag and returned as the new
//     revision. A Fetch with the current revision returns store.ErrNotModified.
//
//   - Copy Semantics: Documents are kept encoded as JSON and decoded on every Fetch, so
//     callers never share maps with the store and numbers behave exactly like they do
//     when read from the real remote.
//
// Usage Example:
//
//	s := lstore.NewLocalStore()
//	loc := store.Locator{ID: "local", Name: "core.json"}
//	s.Put(loc, store.Document{"admins": map[string]any{}})
//
//	doc, rev, err := s.Fetch(ctx, loc, "")
//	_, _, err = s.Fetch(ctx, loc, rev) // err == store.ErrNotModified
//
// Suitable Use Cases:
//
//	The local store is ideal for:
//	- Running the bot without remote credentials
//	- Testing the cache layer without network access
package lstore
