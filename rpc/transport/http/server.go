package http

import (
	"context"
	"errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tenkdog/jarvis/rpc/common"
	"github.com/tenkdog/jarvis/rpc/transport"
	"net/http"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/http")

func NewHttpServerTransport() transport.IHTTPServerTransport {
	return &httpServerTransport{
		mux: http.NewServeMux(),
	}
}

type httpServerTransport struct {
	mux    *http.ServeMux
	config common.ServerConfig

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IHTTPServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterRoute(pattern string, handler http.HandlerFunc) {
	t.mux.HandleFunc(pattern, handler)
}

func (t *httpServerTransport) Handler() http.Handler {
	return t.mux
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	// Wrap the mux with the request logger if requested
	var handler http.Handler = t.mux
	if t.config.LogLevel == "debug" {
		handler = loggerMiddleware(t.mux)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return http.ErrServerClosed
	}
	t.server = &http.Server{
		Addr:              t.config.Endpoint,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := t.server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", t.config.Endpoint)

	return server.ListenAndServe()
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	server := t.server
	t.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
