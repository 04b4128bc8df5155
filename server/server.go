// Package server exposes run_embedding over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/internal/httpclient"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/logger"
)

const fetchTimeout = 60 * time.Second

// Server serves the HTTP API and WebSocket endpoint.
type Server struct {
	svc    *service.Service
	logger *zap.SugaredLogger
	mux    *http.ServeMux

	// fetcher downloads inputs for /api/embed/url
	fetcher *httpclient.SaferClient

	// Replaced on config reload
	limiter        atomic.Pointer[rate.Limiter] // nil = unlimited
	allowedOrigins atomic.Pointer[[]string]

	configWatcher *am.ConfigWatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[*Client]bool
	http    *http.Server
}

// New creates a server around svc, applying the server section of cfg.
func New(svc *service.Service, cfg *am.Config, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:     svc,
		logger:  log,
		mux:     http.NewServeMux(),
		fetcher: httpclient.New(fetchTimeout),
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]bool),
	}
	s.applyServerConfig(cfg)
	s.setupHTTPRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ApplyConfig updates call defaults, rate limit and allowed origins.
func (s *Server) ApplyConfig(cfg *am.Config) {
	s.svc.SetDefaults(backend.DefaultParams(cfg.Embedding))
	s.applyServerConfig(cfg)
}

func (s *Server) applyServerConfig(cfg *am.Config) {
	if cfg == nil {
		cfg = am.Defaults()
	}
	if rpm := cfg.Server.RequestsPerMinute; rpm > 0 {
		s.limiter.Store(rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1))
	} else {
		s.limiter.Store(nil)
	}
	origins := cfg.GetServerAllowedOrigins()
	s.allowedOrigins.Store(&origins)
}

// allow reports whether another embedding may start now.
func (s *Server) allow() error {
	if l := s.limiter.Load(); l != nil && !l.Allow() {
		return errors.WithHint(errors.Mark(errors.New("too many embedding requests"), errors.ErrRateLimited),
			"raise server.requests_per_minute or retry later")
	}
	return nil
}

// WatchConfig reloads defaults whenever the config file at path changes.
func (s *Server) WatchConfig(path string) error {
	if path == "" {
		s.logger.Infow("No config file found, using defaults (config watching disabled)")
		return nil
	}
	cw, err := am.NewConfigWatcher(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	am.SetGlobalWatcher(cw)
	cw.OnReload(func(cfg *am.Config) error {
		s.ApplyConfig(cfg)
		s.logger.Infow("Config reloaded",
			logger.FieldPerplexity, cfg.Embedding.Perplexity,
			logger.FieldTheta, cfg.Embedding.Theta,
			logger.FieldMaxIter, cfg.Embedding.MaxIter,
			"requests_per_minute", cfg.Server.RequestsPerMinute)
		return nil
	})
	cw.Start()
	s.configWatcher = cw
	s.logger.Infow("Config watcher started", "path", path)
	return nil
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Infow(fmt.Sprintf("HTTP server listening on %s", l.Addr()),
		logger.FieldAddress, l.Addr().String(),
		logger.FieldBackend, s.svc.Backend().Name())

	if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Start listens on port and serves until Stop is called.
func (s *Server) Start(port int) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "failed to listen on port %d", port),
			"set server.port in am.toml or pass --port")
	}
	return s.Serve(l)
}

// Stop closes WebSocket clients, stops the config watcher and shuts the
// HTTP server down, waiting for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Infow("Initiating server shutdown")

	if s.configWatcher != nil {
		s.configWatcher.Stop()
	}

	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	srv := s.http
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.close()
		}
	}
	s.cancel()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("Shutdown timed out waiting for clients")
	}
	return err
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Debugw("Client connected", "client_id", c.id, "clients", n)
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.logger.Debugw("Client disconnected", "client_id", c.id)
}

// checkOrigin allows requests without an Origin header and origins matching
// a configured prefix, so any port on an allowed host is accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range *s.allowedOrigins.Load() {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
