package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Document is the JSON-compatible key-value content of one dataset.
// Values are maps (map[string]any), lists ([]any) or scalars as produced by encoding/json.
type Document map[string]any

// Locator identifies a document at the remote store.
// ID is the opaque container identifier (e.g. a gist id), Name the sub-resource inside it (e.g. a file name).
type Locator struct {
	ID   string
	Name string
}

// String returns the locator in the form id/name.
func (l Locator) String() string {
	return fmt.Sprintf("%s/%s", l.ID, l.Name)
}

// IDocumentStore is the generic interface for a remote document store.
// The store gives no transactional guarantees and no locking: every write is a full replace
// of the sub-resource content.
type IDocumentStore interface {
	// Fetch loads the document stored at the locator.
	// If revision is not empty it is sent as a conditional request validator; when the remote
	// content is unchanged, Fetch returns ErrNotModified and no document.
	// On success the new revision of the document is returned.
	// A missing sub-resource is an error with code RetCNotFound, never an empty document.
	Fetch(ctx context.Context, loc Locator, revision string) (doc Document, newRevision string, err error)
	// Write replaces the content at the locator with doc and returns the new revision.
	Write(ctx context.Context, loc Locator, doc Document) (newRevision string, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// ErrNotModified is returned by Fetch when the conditional request reports unchanged content.
var ErrNotModified = errors.New("document not modified")

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("DocumentStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new DocumentStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new DocumentStoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the return code of err, or RetCInternalError if err is not a *Error.
func CodeOf(err error) RetCode {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err signals a missing sub-resource.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == RetCNotFound
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal error.
	RetCTransport                    // 2: The remote could not be reached (timeout, connection failure).
	RetCStatus                       // 3: The remote answered with an unexpected status code.
	RetCNotFound                     // 4: The sub-resource does not exist inside an existing container.
	RetCDecode                       // 5: The remote content could not be decoded.
	RetCEncode                       // 6: The local document could not be encoded.
	RetCConfig                       // 7: The locator or the credentials are incomplete.
)

// String returns the name of the return code.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCTransport:
		return "Transport"
	case RetCStatus:
		return "Status"
	case RetCNotFound:
		return "NotFound"
	case RetCDecode:
		return "Decode"
	case RetCEncode:
		return "Encode"
	case RetCConfig:
		return "Config"
	default:
		return "Unknown"
	}
}
