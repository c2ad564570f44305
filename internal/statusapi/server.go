// Package statusapi serves the daemon's pair registry over a loopback HTTP
// listener, for dashboards and scripts that want live sync state without
// tailing logs.
package statusapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncpair/syncpair/internal/daemon"
)

const DefaultAddr = "127.0.0.1:7370"

// Config for the status API listener.
type Config struct {
	Enabled bool
	Addr    string // loopback address, DefaultAddr when empty
	Token   string // bearer token for /v1; empty disables auth
}

// Server exposes /healthz and /v1/status backed by the daemon's registry.
type Server struct {
	config   Config
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	registry *daemon.Registry
}

func New(config Config, registry *daemon.Registry) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		Logger(),
		GZIP(),
	)

	s := &Server{
		config:   config,
		engine:   engine,
		registry: registry,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.healthz)

	v1 := s.engine.Group("/v1")
	v1.Use(TokenAuth(s.config.Token))
	v1.GET("/status", s.status)
}

// Start serves until ctx is canceled. A disabled server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		slog.Info("status api disabled")
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("status api listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("status api start", "addr", fmt.Sprintf("http://%s", listener.Addr()))

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("status api server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("status api stop")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("status api shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once Start has begun listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}
