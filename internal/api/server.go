// Package api exposes the HTTP interface for the catalog service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/query"
)

// Server wires HTTP handlers to the query engine and orchestrator.
type Server struct {
	router    chi.Router
	engine    *query.Engine
	triggerer query.Triggerer
	stores    []catalog.Store
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	engine *query.Engine,
	triggerer query.Triggerer,
	stores []catalog.Store,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:    engine,
		triggerer: triggerer,
		stores:    stores,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/internal", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/stores", s.getStores)
		r.Get("/mods", s.getMods)
		r.Get("/mods/{id}", s.getModByID)
		r.Post("/scrape", s.triggerScrape)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, "ok")
}

func (s *Server) getStores(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.stores)
}

func (s *Server) getMods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.Filter{
		Make:   q.Get("make"),
		Model:  q.Get("model"),
		Engine: q.Get("engine"),
	}
	mods, err := s.engine.ListMods(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if mods == nil {
		mods = []catalog.Mod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": mods,
		"meta": map[string]int{"count": len(mods)},
	})
}

func (s *Server) getModByID(w http.ResponseWriter, r *http.Request) {
	mod, err := s.engine.GetMod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, mod)
}

func (s *Server) triggerScrape(w http.ResponseWriter, r *http.Request) {
	summary, err := s.triggerer.Trigger(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

// writeError maps domain errors onto the response envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "INTERNAL_ERROR"

		fetchErr   *catalog.FetchError
		retryErr   *catalog.RetryExhaustedError
		storageErr *catalog.StorageError
	)
	switch {
	case errors.Is(err, catalog.ErrInvalidQuery):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, catalog.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, catalog.ErrAllStoresFailed),
		errors.As(err, &fetchErr),
		errors.As(err, &retryErr):
		status, code = http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.As(err, &storageErr):
		status, code = http.StatusInternalServerError, "DATABASE_ERROR"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": err.Error()},
	})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))

		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": map[string]string{
						"code":    "INTERNAL_ERROR",
						"message": "internal server error",
					},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
