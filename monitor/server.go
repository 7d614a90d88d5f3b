// Package monitor exposes the metrics and health HTTP endpoints.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/config"
	"github.com/kestrelsys/kestrel/core"
)

// HealthSource supplies the payload served on the health endpoint.
type HealthSource func() Health

// Health is the health endpoint payload.
type Health struct {
	// Status is "ok" while the runtime is serving
	Status string `json:"status"`

	// Runtime is the runtime name
	Runtime string `json:"runtime"`

	// Actors summarizes the live actor population
	Actors []core.Stats `json:"actors"`

	// CheckedAt is when this payload was produced
	CheckedAt time.Time `json:"checked_at"`
}

// Server is the monitoring HTTP server.
type Server struct {
	cfg    config.MonitorConfig
	health HealthSource
	log    zerolog.Logger

	srv      *http.Server
	listener net.Listener
}

// NewServer creates a monitoring server. It does not listen until Start.
func NewServer(cfg config.MonitorConfig, health HealthSource, logger zerolog.Logger) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}

	return &Server{
		cfg:    cfg,
		health: health,
		log:    logger.With().Str("component", "monitor").Logger(),
	}
}

// Name identifies the server to the lifecycle manager.
func (s *Server) Name() string {
	return "monitor"
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Address
	}
	return s.listener.Addr().String()
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc(s.cfg.HealthPath, s.handleHealth)

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("monitor server stopped unexpectedly")
		}
	}()

	s.log.Info().Str("address", s.Addr()).Msg("monitor server listening")
	return nil
}

// Stop shuts the server down within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// handleHealth serves the health payload as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := s.health()
	payload.CheckedAt = time.Now()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Debug().Err(err).Msg("failed to encode health payload")
	}
}
