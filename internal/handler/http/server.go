// Package http exposes the operational surface: health, status
// snapshots, manual failover, direct notification injection and the
// profile admin API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Server wraps the chi router and the underlying http.Server.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(cfg Config, admin *AdminHandler, users *UserHandler, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", admin.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status/failover", admin.FailoverStatus)
		r.Get("/status/executor", admin.ExecutorStatus)
		r.Post("/failover/{exchangeID}", admin.ManualFailover)
		r.Post("/notifications", admin.InjectNotification)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", users.Get)
			r.Put("/", users.Put)
			r.Delete("/", users.Delete)
			r.Post("/devices", users.RegisterDevice)
			r.Delete("/devices/{deviceID}", users.DeactivateDevice)
			r.Put("/rules", users.UpsertRule)
			r.Delete("/rules/{ruleID}", users.RemoveRule)
		})
	})

	return &Server{
		cfg:    cfg,
		srv:    &http.Server{Addr: cfg.Addr, Handler: r},
		logger: logger,
	}
}

// Run starts serving and blocks until the listener closes.
func (s *Server) Run() error {
	s.logger.Info("HTTP_LISTENING", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
