// Package server exposes the CAMP prediction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/model"
)

const (
	// RequestIDHeader carries the request id on every response.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes         = 1 << 20
	serverTimeout        = 30 * time.Second
	serverMaxHeaderBytes = 20
)

// Config controls the listener and inbound rate limiting.
type Config struct {
	Addr              string
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:8080",
		RequestsPerSecond: 50,
		Burst:             100,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Server serves the prediction API. It holds only read-only shared state.
type Server struct {
	cfg      Config
	ensemble *camp.Ensemble
	registry *model.Registry
	limiter  *rate.Limiter
	started  time.Time
}

// New binds the API to an ensemble and the registry its adapters were built from.
func New(cfg Config, ens *camp.Ensemble, reg *model.Registry) *Server {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		cfg:      cfg,
		ensemble: ens,
		registry: reg,
		limiter:  rate.NewLimiter(limit, burst),
		started:  time.Now(),
	}
}

// Handler returns the routed API with request-id and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predict", s.predictHandler)
	mux.HandleFunc("GET /v1/health", s.healthHandler)
	mux.HandleFunc("GET /v1/models", s.modelsHandler)
	mux.HandleFunc("GET /v1/fields", s.fieldsHandler)
	return withRequestID(withLogging(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.cfg.Addr,
		Handler:        s.Handler(),
		ReadTimeout:    serverTimeout,
		WriteTimeout:   serverTimeout,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logrus.WithFields(logrus.Fields{"address": s.cfg.Addr, "models": s.registry.Loaded()}).Info("Server started")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logrus.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type ctxKey struct{}

// RequestID returns the id attached to ctx by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		logrus.WithFields(logrus.Fields{
			"request_id": RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sr.status,
			"duration":   time.Since(start),
		}).Debug("Request served")
	})
}
