package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tenkdog/jarvis/lib/botstate"
	"github.com/tenkdog/jarvis/lib/cache"
	"github.com/tenkdog/jarvis/lib/lockmgr"
	"github.com/tenkdog/jarvis/lib/session"
	"github.com/tenkdog/jarvis/lib/store"
	"github.com/tenkdog/jarvis/lib/store/gstore"
	"github.com/tenkdog/jarvis/lib/store/lstore"
	"github.com/tenkdog/jarvis/rpc/common"
	"github.com/tenkdog/jarvis/rpc/transport"
	thttp "github.com/tenkdog/jarvis/rpc/transport/http"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

// NewDocumentStore creates the remote document store selected by the configuration.
// The returned close function releases the connection to the remote.
func NewDocumentStore(config common.ServerConfig) (store.IDocumentStore, func() error, error) {
	switch config.Backend {
	case common.BackendGist:
		t := thttp.NewHttpClientTransport()
		if err := t.Connect(config.Remote); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to the remote store: %w", err)
		}
		return gstore.NewGistStore(t), t.Close, nil
	case common.BackendMemory:
		Logger.Warningf("using the in-memory backend, state is lost on restart")
		return lstore.NewLocalStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("invalid backend: %s", config.Backend)
	}
}

// NewServer creates the bot server. It registers the core and the runtime dataset on top of
// documents and the HTTP routes on transport, nothing is loaded before Serve is called.
//
// Usage:
//
//	documents, closeFn, err := server.NewDocumentStore(*config)
//	if err != nil {
//		return err
//	}
//	defer closeFn()
//
//	s, err := server.NewServer(*config, http.NewHttpServerTransport(), documents)
//	if err != nil {
//		return err
//	}
//	return s.Serve(ctx)
func NewServer(
	config common.ServerConfig,
	transport transport.IHTTPServerTransport,
	documents store.IDocumentStore,
) (*Server, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &Server{
		config:    config,
		transport: transport,
		now:       time.Now,
		handler:   AckHandler,
	}
	if err := s.init(documents); err != nil {
		return nil, err
	}

	Logger.Infof("Created bot server")
	Logger.Infof(config.String())
	return s, nil
}

// Server connects the webhook of the chat platform with the cached bot state
type Server struct {
	config    common.ServerConfig
	transport transport.IHTTPServerTransport
	now       func() time.Time

	manager *cache.Manager
	bot     *Bot
	handler UpdateHandler
}

func (s *Server) init(documents store.IDocumentStore) error {
	location, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.manager = cache.NewManager(s.now)
	state := botstate.New(s.manager, location, s.now)
	s.bot = &Bot{
		State:    state,
		Sessions: session.NewManager(session.DefaultTTL, s.now),
		Locks:    lockmgr.NewLockManager(lockmgr.DefaultTTL, s.now),
	}

	// CREATE DATASETS

	datasets := []struct {
		name   string
		config common.DatasetConfig
		schema cache.Schema
	}{
		{botstate.CoreDataset, s.config.Core, botstate.CoreSchema(s.config.SuperAdmin, state.Timestamp)},
		{botstate.RuntimeDataset, s.config.Runtime, botstate.RuntimeSchema()},
	}
	for _, ds := range datasets {
		_, err := s.manager.Register(cache.Config{
			Name:             ds.name,
			Locator:          store.Locator{ID: ds.config.GistID, Name: ds.config.File},
			Schema:           ds.schema,
			TTL:              ds.config.TTL,
			Debounce:         ds.config.Debounce,
			MaxDelay:         s.config.MaxFlushDelay,
			LockTimeout:      s.config.LockTimeout,
			BreakerThreshold: s.config.BreakerThreshold,
			BreakerCooldown:  s.config.BreakerCooldown,
			BootstrapMissing: s.config.BootstrapMissing,
		}, documents)
		if err != nil {
			return err
		}
	}

	// Configure the transport layer
	s.registerRoutes()
	return nil
}

// SetUpdateHandler replaces the handler invoked for every update. It must be called before Serve.
func (s *Server) SetUpdateHandler(h UpdateHandler) {
	if h == nil {
		h = AckHandler
	}
	s.handler = h
}

// Manager returns the cache manager holding the datasets of the server
func (s *Server) Manager() *cache.Manager {
	return s.manager
}

// Bot returns the data access components handed to the update handler
func (s *Server) Bot() *Bot {
	return s.bot
}

// Serve loads the datasets and serves HTTP requests until ctx is done or the transport
// fails. On return, pending mutations have been flushed (bounded by the shutdown timeout).
func (s *Server) Serve(ctx context.Context) error {
	if err := s.manager.Initialize(ctx, s.config.InitTimeout); err != nil {
		// the datasets fall back to their defaults and are retried on the next request
		Logger.Warningf("initial load incomplete: %v", err)
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- s.transport.Listen(s.config)
	}()

	var err error
	select {
	case err = <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		Logger.Infof("shutting down")
	}

	return errors.Join(err, s.Shutdown())
}

// Shutdown stops the transport and flushes all dirty datasets, regardless of their
// debounce window
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.transport.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop transport: %w", err))
	}
	if err := s.manager.FlushAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush datasets: %w", err))
	}
	if len(errs) == 0 {
		Logger.Infof("all datasets flushed")
	}
	return errors.Join(errs...)
}
