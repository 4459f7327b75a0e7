package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/config"
)

// Server owns the listening http.Server for the REST API.
type Server struct {
	server *http.Server
	log    *zerolog.Logger
}

// NewServer wraps handler with the outer middleware every request passes
// through before routing.
func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	h := Chain(handler,
		Recover(logger),
		TraceID(),
		CORS(cfg.FrontendOrigin),
	)
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: logger,
	}
}

func (s *Server) Addr() string { return s.server.Addr }

// Start blocks until the server stops; a graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
