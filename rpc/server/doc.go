// Package server implements the bot server. It receives updates of the chat platform via
// webhook and keeps the bot state in sync with the remote document store.
//
// Every webhook request runs the same sequence:
//
//  1. refresh stale datasets (never waiting longer than the lock timeout)
//  2. flush datasets whose debounce window passed
//  3. hand the update to the UpdateHandler
//  4. flush again, so mutations of the handler are written as soon as they are due
//
// The request is always answered with {"ok":true}, failures of the handler or of the
// remote store are logged and reported by the diagnostic routes instead.
//
// Routes:
//
//   - GET /            health summary, whether the last remote operation of each dataset succeeded
//   - GET /status      diagnostics of every dataset (see cache.Status)
//   - GET /metrics     counters in the Prometheus text format
//   - POST <webhook>   updates of the chat platform
//
// Usage Example:
//
//	config := common.ServerConfig{ ... }
//
//	documents, closeFn, err := server.NewDocumentStore(config)
//	if err != nil {
//	  log.Fatalf("Store error: %v", err)
//	}
//	defer closeFn()
//
//	s, err := server.NewServer(config, http.NewHttpServerTransport(), documents)
//	if err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	s.SetUpdateHandler(myHandler)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Requests are served concurrently. The datasets, the session manager and the lock
//	manager handed to the UpdateHandler are safe for concurrent use. Serve must be
//	called only once.
package server
