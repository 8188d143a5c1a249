// Package api exposes the agent's local HTTP control surface. The server
// binds to loopback only.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashreel/hashreel-agent/internal/history"
	"github.com/hashreel/hashreel-agent/internal/toolrun"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// LedgerCounter reports how many video IDs the processed ledger holds.
type LedgerCounter interface {
	Count() int
}

type ServerConfig struct {
	Port       int
	Repository history.Repository
	Runner     *history.Runner
	Doctor     *toolrun.Doctor
	Ledger     LedgerCounter
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
