// Package server exposes the capacity ledger over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/report"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
)

type Config struct {
	HoursPerDay int
	Roster      []string
	// DefaultWindow is used when a request names no window.
	DefaultWindow func() capacity.Window
	// CacheSize bounds the number of task snapshots kept; zero disables
	// the cache.
	CacheSize int
}

type Server struct {
	generator *report.Generator
	config    Config
	cache     *lru.Cache
	validate  *validator.Validate
	logger    *slog.Logger
	responses *ResponseManager
	router    *mux.Router
}

func New(generator *report.Generator, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HoursPerDay <= 0 {
		cfg.HoursPerDay = capacity.DefaultHoursPerDay
	}
	if cfg.DefaultWindow == nil {
		cfg.DefaultWindow = func() capacity.Window { return capacity.MonthWindow(time.Now()) }
	}

	s := &Server{
		generator: generator,
		config:    cfg,
		validate:  validator.New(),
		logger:    logger,
		responses: &ResponseManager{Logger: logger},
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating task cache: %w", err)
		}
		s.cache = cache
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)
	r.HandleFunc("/ledger", s.handleComputeLedger).Methods(http.MethodPost)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.responses.RespondWithError(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.responses.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Use(s.logRequests)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) calculator(hoursPerDay int, overrides map[string]capacity.Window, roster []string) *capacity.Calculator {
	if hoursPerDay <= 0 {
		hoursPerDay = s.config.HoursPerDay
	}
	return capacity.NewCalculator(
		capacity.WithHoursPerDay(hoursPerDay),
		capacity.WithOverrides(overrides),
		capacity.WithRoster(append(append([]string{}, s.config.Roster...), roster...)...),
	)
}

// tasks returns the tasks of window from the cache or the sources.
func (s *Server) tasks(ctx context.Context, window capacity.Window, refresh bool) ([]capacity.Task, error) {
	key := window.String()
	if s.cache != nil && !refresh {
		if cached, ok := s.cache.Get(key); ok {
			if tasks, ok := cached.([]capacity.Task); ok {
				return tasks, nil
			}
		}
	}

	tasks, err := s.generator.Generate(ctx, window)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(key, tasks)
	}
	return tasks, nil
}
