// Package server exposes the agent's diagnostics over HTTP: liveness,
// readiness, queue snapshot and prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicerover-io/voicerover/internal/pkg/metrics"
	"github.com/voicerover-io/voicerover/pkg/log"
)

// QueueSnapshot is the /queuez payload. Point-in-time only.
type QueueSnapshot struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

// Server serves the diagnostics endpoints.
type Server struct {
	server *http.Server
	logger log.Logger
}

// New builds the diagnostics server. ready should report whether the
// serial link is up; snapshot supplies the queue state.
func New(addr string, ready func() bool, snapshot func() QueueSnapshot, logger log.Logger) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			http.Error(w, "serial link down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.HandleFunc("/queuez", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot())
	})

	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger.WithName("http"),
	}
}

// Start serves until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting diagnostics server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
