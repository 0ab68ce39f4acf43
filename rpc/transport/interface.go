package transport

import (
	"context"
	"github.com/tenkdog/jarvis/rpc/common"
	"net/http"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IHTTPServerTransport is the interface for the server side transport layer.
// It must accept a ServerConfig as a parameter.
type IHTTPServerTransport interface {
	// RegisterRoute registers a handler for a route pattern (see http.ServeMux for the syntax,
	// e.g. "POST /tg-webhook"). Routes must be registered before Listen is called.
	RegisterRoute(pattern string, handler http.HandlerFunc)
	// Listen starts the transport layer and blocks while serving incoming requests.
	// It returns http.ErrServerClosed after Shutdown was called.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting new requests and waits for running ones until ctx is done.
	Shutdown(ctx context.Context) error
	// Handler returns the handler serving the registered routes, e.g. to mount it in a test server
	Handler() http.Handler
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// Request is a single request to a remote REST api. Path is relative to the base url of
// the client configuration.
type Request struct {
	Method string
	Path   string
	Header map[string]string
	Body   []byte
}

// Response is the answer of the remote. The body is fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IRESTClientTransport is the interface for the client transport to a remote REST api
type IRESTClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Do sends a request to the remote and returns the response. Non-2xx answers are not
	// errors, only failures to reach the remote are.
	Do(ctx context.Context, req Request) (resp *Response, err error)
	// Close closes the transport connection
	Close() error
}
