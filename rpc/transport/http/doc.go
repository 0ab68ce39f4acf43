// Package http implements the transport interfaces of the parent package on top of
// net/http.
//
// Key Components:
//
//   - httpClientTransport: Implements IRESTClientTransport. Every request carries the
//     configured token (as "Authorization: token ...") and user agent. The whole exchange
//     is bounded by the configured timeout, requests are paced by a token bucket
//     (golang.org/x/time/rate) so a burst of cache refreshes cannot exhaust the rate
//     limit of the remote api, and failures to reach the remote are retried up to the
//     configured count.
//
//   - httpServerTransport: Implements IHTTPServerTransport, setting up an http.Server
//     around a ServeMux with the registered routes. It supports graceful shutdown.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use once connected. The rate limiter
//	is shared by all goroutines using the same transport.
//
// A logging middleware reports method, path, status and duration of every request
// when the server runs with log level debug.
package http
