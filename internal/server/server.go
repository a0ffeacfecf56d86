package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/version"
	"go.uber.org/zap"
)

// Config holds the server configuration
type Config struct {
	ListenAddress string
	Advertise     bool   // Announce the bridge over mDNS
	InstanceName  string // mDNS instance name; empty = hostname
	CertPath      string // Serve TLS when both CertPath and KeyPath are set
	KeyPath       string

	// StaleAfter enables the registry pruner; zero disables it
	StaleAfter    time.Duration
	PruneInterval time.Duration
}

// Server is the HTTP bridge between an external shell and the controller
type Server struct {
	config    Config
	ctrl      *control.Controller
	hub       *events.Hub
	clock     clock.Clock
	http      *http.Server
	tlsConfig *tls.Config
	started   time.Time

	listener net.Listener
	ready    chan struct{}
	mdns     *zeroconf.Server
	pruner   *Pruner

	wg           sync.WaitGroup
	mu           sync.Mutex
	activeConns  map[string]*websocket.Conn
	shuttingDown bool // guarded by mu; no wg.Add once set
}

// New creates a new Server instance
func New(config Config, ctrl *control.Controller, hub *events.Hub) (*Server, error) {
	s := &Server{
		config:      config,
		ctrl:        ctrl,
		hub:         hub,
		clock:       clock.New(),
		ready:       make(chan struct{}),
		activeConns: make(map[string]*websocket.Conn),
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	if config.StaleAfter > 0 {
		s.pruner = NewPruner(ctrl.Registry(), config.StaleAfter, config.PruneInterval, s.clock, hub)
	}

	s.http = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

// Handler returns the router, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID) // X-Request-ID on each request
	r.Use(middleware.Recoverer) // never crash the process on panic
	r.Use(middleware.SetHeader("Server", version.UserAgent()))
	r.Use(logRequests)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		// Websocket streams outlive any request timeout
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/commands", s.handleCommands)
			r.Get("/devices", s.handleDevices)
			r.Delete("/devices/{identity}", s.handleForgetDevice)
			r.Post("/invoke/{command}", s.handleInvoke)
			r.Post("/discover", s.handleDiscoverStart)
			r.Delete("/discover", s.handleDiscoverStop)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener
	s.started = s.clock.Now()
	close(s.ready)

	logging.Info("HTTP bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	if s.config.Advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		mdns, err := Advertise(s.config.InstanceName, port, s.tlsConfig != nil)
		if err != nil {
			// The bridge still works by address
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.mdns = mdns
		}
	}

	if s.pruner != nil {
		s.pruner.Start(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping HTTP bridge...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Ready is closed once the listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	if s.mdns != nil {
		s.mdns.Shutdown()
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	s.ctrl.Coordinator().Stop()

	err := s.http.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// track registers a background task with the shutdown wait group.
// Returns false once Shutdown has started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.wg.Add(1)
	return true
}

// GetActiveConnections returns the number of open event streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
