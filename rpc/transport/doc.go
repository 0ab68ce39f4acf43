// Package transport defines the interfaces and abstractions for the HTTP communication
// of the bot. It provides a common contract for both directions: the server side that
// receives webhook calls and diagnostics requests, and the client side that talks to
// the REST api of the remote document store.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Keeping request routing and remote access replaceable (e.g. in tests)
//
// Key Components:
//
//   - IRESTClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending. Non-2xx answers are returned
//     as responses, only failures to reach the remote are errors.
//
//   - IHTTPServerTransport: Interface for server-side transport implementations that
//     receive requests and route them to the registered handlers.
//
//   - Request/Response: Plain value types for a single REST exchange.
package transport
