// Package store provides the abstraction over the remote document store that holds the
// persistent state of the bot. A document store keeps small JSON documents, each addressed
// by a Locator (an opaque container id plus the name of a sub-resource inside it).
//
// The package focuses on:
//   - A unified interface (IDocumentStore) for fetching and replacing documents across backends
//   - Conditional reads based on opaque revision tags
//   - A typed error system that lets callers tell transient failures from missing content
//
// Key Components:
//
//   - IDocumentStore Interface: The core abstraction defining the two operations every
//     backend must provide. Fetch loads a document and may short-circuit with
//     ErrNotModified when the caller already holds the current revision. Write replaces
//     the whole content of a sub-resource. The store offers no transactions and no locking,
//     so the last writer wins.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. Callers use CodeOf or IsNotFound to make decisions
//     based on specific error conditions rather than generic errors. The cache layer uses
//     RetCNotFound to decide whether a missing sub-resource may be bootstrapped.
//
// Implementations:
//
//	The package includes two implementations of the IDocumentStore interface:
//
//	- Gist Store (gstore): Stores each document as a file inside a GitHub gist and speaks
//	  the gist REST API through the http transport of this module. Revisions are the ETag
//	  validators returned by the API.
//	  Available in the "github.com/tenkdog/jarvis/lib/store/gstore" package.
//
//	- Local Store (lstore): A simple in-memory implementation used for development, for the
//	  "memory" backend and throughout the tests. It can inject failures to simulate an
//	  unreliable remote.
//	  Available in the "github.com/tenkdog/jarvis/lib/store/lstore" package.
package store
