// Package gstore implements store.IDocumentStore on top of the GitHub gist REST api.
//
// Every document is a single file inside a gist. The Locator's ID is the gist id and its
// Name the file name. Fetch issues GET /gists/{id} and sends the last known ETag as
// If-None-Match, so an unchanged gist costs a 304 without counting against the rate
// limit of the api. Write issues PATCH /gists/{id} with the full, indented content of the
// file; other files of the same gist are left untouched.
//
// Error mapping:
//   - 304 -> store.ErrNotModified
//   - gist exists but the file is missing -> RetCNotFound (never an empty document)
//   - any other non-2xx answer -> RetCStatus, including a missing gist
//   - remote unreachable or timed out -> RetCTransport
//   - content that is not a JSON object -> RetCDecode
//
// Files larger than the inline limit of the api are reported as truncated; their content
// is then loaded from the raw url without sending credentials to the raw host.
package gstore
