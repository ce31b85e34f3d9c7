package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"university-user-service/internal/config"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	Gin    *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, router http.Handler) *Server {
	return &Server{
		Config: cfg,
		Logger: l,
		Gin:    SetupGinServer(router, ":"+cfg.App.HTTPPort, l),
	}
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.Logger.Info("HTTP server running", zap.String("address", s.Gin.Addr))
	if err := s.Gin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Gin.Shutdown(ctx)
}
