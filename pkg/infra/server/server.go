// Package server provides the HTTP server and its unified lifecycle
// (start, signal handling, graceful shutdown).
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/pkg/middleware"
	httpopts "github.com/kart-io/paperqa/pkg/options/server/http"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

// HTTPServer is the Gin-backed HTTP server.
type HTTPServer struct {
	opts   *httpopts.Options
	engine *gin.Engine
	server *http.Server
}

// NewHTTPServer creates an HTTP server with the standard middleware chain.
// Middleware 必须在创建路由组之前注册，否则子组不会继承。
func NewHTTPServer(opts *httpopts.Options) *HTTPServer {
	if opts == nil {
		opts = httpopts.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    apierrors.ErrNotFound.Code,
			"message": apierrors.ErrNotFound.MessageEN,
		})
	})

	return &HTTPServer{
		opts:   opts,
		engine: engine,
	}
}

// Name returns the server name.
func (s *HTTPServer) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start starts the HTTP server. It returns once the listener is bound,
// so that startup failures (port in use) surface immediately.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server terminated unexpectedly", "error", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

var _ Runnable = (*HTTPServer)(nil)

// Manager manages servers with a unified lifecycle.
type Manager struct {
	opts    *httpopts.Options
	servers []Runnable
	mu      sync.Mutex
	started bool
}

// NewManager creates a new server manager.
func NewManager(opts *httpopts.Options) *Manager {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	return &Manager{opts: opts}
}

// Add adds a server to the manager.
func (m *Manager) Add(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. On partial failure the already started
// servers are stopped before returning.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	servers := m.servers
	m.mu.Unlock()

	for i, server := range servers {
		if err := server.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = servers[j].Stop(ctx)
			}
			return fmt.Errorf("failed to start server %s: %w", server.Name(), err)
		}
		logger.Infow("Server started", "name", server.Name())
	}
	return nil
}

// Stop stops all servers gracefully, in reverse start order.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	servers := m.servers
	m.mu.Unlock()

	var errs []error
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", servers[i].Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", servers[i].Name())
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// Run starts all servers and blocks until an interrupt signal arrives,
// then shuts down gracefully within the configured timeout.
func (m *Manager) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infow("Server shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer shutdownCancel()

	return m.Stop(shutdownCtx)
}
