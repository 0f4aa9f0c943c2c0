// Package server exposes the query workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/workflow"
)

const maxBodyBytes = 1 << 20

// Runner answers one query.
type Runner interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.State, error)
}

// Server serves the query API.
type Server struct {
	runner  Runner
	layout  artifact.Layout
	metrics *monitoring.Metrics
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates a Server.
func New(runner Runner, layout artifact.Layout, metrics *monitoring.Metrics, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		layout:  layout,
		metrics: metrics,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.metricsHandler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/artifacts/{name}", s.handleArtifact)
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

type queryResponse struct {
	*workflow.State
	MapArtifact string `json:"map_artifact,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req workflow.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if err := s.resolveInputs(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{State: st, MapArtifact: st.MapArtifact()})
}

// resolveInputs maps the file names a client sends onto the data
// directory. Anything that is not a bare file name is rejected so a client
// can never point the workflow at an arbitrary host path or GDAL virtual
// file.
func (s *Server) resolveInputs(req *workflow.Request) error {
	resolve := func(field string, name *string) error {
		if *name == "" {
			return nil
		}
		path, err := s.layout.Resolve(*name)
		if err != nil {
			return eris.Errorf("server: %s must be a file name in the data directory", field)
		}
		*name = path
		return nil
	}

	for i := range req.Criteria {
		if err := resolve("criteria path", &req.Criteria[i].Path); err != nil {
			return err
		}
	}
	if err := resolve("hazard_path", &req.HazardPath); err != nil {
		return err
	}
	return resolve("vector_path", &req.VectorPath)
}

var contentTypes = map[string]string{
	"." + artifact.ExtGeoJSON: "application/geo+json",
	".json":                   "application/json",
	"." + artifact.ExtTIFF:    "image/tiff",
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := s.layout.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}
	if !artifact.Exists(path) {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if ct, ok := contentTypes[filepath.Ext(path)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if snap, err := s.metrics.Snapshot(); err == nil && snap != nil {
		resp["metrics"] = snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) metricsHandler() http.HandlerFunc {
	h := s.metrics.Handler()
	return h.ServeHTTP
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
