// Package httpx holds the HTTP plumbing shared by the EcoVision dashboard:
// a gracefully stoppable server, JSON and PNG response helpers, and request
// middleware.
package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ecotls "github.com/HatiCode/ecovision/pkg/tls"
)

// Server wraps http.Server with optional TLS and graceful shutdown.
type Server struct {
	server *http.Server
	tls    ecotls.Config
	logger *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// EnableTLS switches Start to HTTPS. Must be called before Start.
func (s *Server) EnableTLS(cfg ecotls.Config) error {
	tlsCfg, err := ecotls.NewServerConfig(cfg)
	if err != nil {
		return fmt.Errorf("configure TLS: %w", err)
	}
	s.server.TLSConfig = tlsCfg
	s.tls = cfg
	return nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	var err error
	if s.tls.Enabled {
		s.logger.Info("starting HTTPS server", "addr", s.server.Addr, "mtls", s.tls.MutualTLS())
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		s.logger.Info("starting HTTP server", "addr", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop waits up to timeout for in-flight requests before closing.
func (s *Server) Stop(timeout time.Duration) error {
	s.logger.Info("stopping HTTP server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}
