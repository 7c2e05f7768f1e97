// Package server hosts the evaluation loop and the read-only
// observability API around the learning components. It owns the only
// goroutine that mutates the models, so the components themselves stay
// lock-free.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/load"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/optimizer"
	"github.com/gridsage/gridsage/pkg/patterns"
	"github.com/gridsage/gridsage/pkg/pricing"
	"github.com/gridsage/gridsage/pkg/solar"
	"github.com/levenlabs/go-lflag"
)

// Server handles the HTTP API and the periodic evaluation cycle. It
// orchestrates the data providers and the four learning components.
type Server struct {
	history history.Provider
	state   history.StateProvider
	prices  pricing.Provider

	detector   *patterns.Detector
	solar      *solar.Predictor
	load       *load.Forecaster
	optimizer  *optimizer.Optimizer
	evaluation *evaluation

	listenAddr       string
	lookback         time.Duration
	evaluateInterval time.Duration
	serverName       string
	httpServer       *http.Server
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(h history.Provider, st history.StateProvider, pr pricing.Provider,
	d *patterns.Detector, sp *solar.Predictor, lf *load.Forecaster, o *optimizer.Optimizer) *Server {
	srv := &Server{
		history:    h,
		state:      st,
		prices:     pr,
		detector:   d,
		solar:      sp,
		load:       lf,
		optimizer:  o,
		serverName: "gridsage",
	}
	srv.evaluation = newEvaluation(srv)
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	lookback := lflag.Duration("lookback", 35*24*time.Hour, "How much history to pull for each training pass")
	evaluateInterval := lflag.Duration("evaluate-interval", 5*time.Minute, "How often to run a train-and-decide cycle. 0 disables the loop.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.lookback = *lookback
		srv.evaluateInterval = *evaluateInterval
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/status", s.handleStatus)
	apiMux.HandleFunc("GET /api/forecast/solar", s.handleForecastSolar)
	apiMux.HandleFunc("GET /api/forecast/load", s.handleForecastLoad)
	apiMux.HandleFunc("GET /api/patterns", s.handlePatterns)
	apiMux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	apiMux.HandleFunc("POST /api/train", s.handleTrain)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(mux))
}

// Run starts the HTTP server and the evaluation loop and blocks until
// the context is canceled or an error occurs. It handles graceful
// shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	if s.evaluateInterval > 0 {
		go s.evaluation.loop(ctx, s.evaluateInterval)
	}

	// use a channel to capture server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
