package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/ir"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/reconciler"
	"github.com/cuemby/edgeplane/pkg/storage"
)

// BuildSource exposes the state served by the diagnostics endpoints
type BuildSource interface {
	Latest() *reconciler.Build
	CacheDump() []cache.DumpEntry
}

// StatusSource reports reconciler progress
type StatusSource interface {
	Status() reconciler.Status
}

// Server provides the read-only HTTP diagnostics endpoints
type Server struct {
	builds  BuildSource
	status  StatusSource
	history storage.Store
	mux     *http.ServeMux
	logger  zerolog.Logger
}

// NewServer creates a diagnostics server. status and history may be nil.
func NewServer(builds BuildSource, status StatusSource, history storage.Store) *Server {
	mux := http.NewServeMux()
	s := &Server{
		builds:  builds,
		status:  status,
		history: history,
		mux:     mux,
		logger:  log.WithComponent("api"),
	}

	// Register endpoints
	mux.HandleFunc("/health", getOnly(metrics.HealthHandler()))
	mux.HandleFunc("/ready", getOnly(metrics.ReadyHandler()))
	mux.HandleFunc("/live", getOnly(metrics.LivenessHandler()))
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/debug/build", getOnly(s.withBuild(s.buildHandler)))
	mux.HandleFunc("/debug/ir", getOnly(s.withBuild(s.irHandler)))
	mux.HandleFunc("/debug/config", getOnly(s.withBuild(s.configHandler)))
	mux.HandleFunc("/debug/bootstrap", getOnly(s.withBuild(s.bootstrapHandler)))
	mux.HandleFunc("/debug/clustermap", getOnly(s.withBuild(s.clusterMapHandler)))
	mux.HandleFunc("/debug/errors", getOnly(s.withBuild(s.errorsHandler)))
	mux.HandleFunc("/debug/route", getOnly(s.withBuild(s.routeHandler)))
	mux.HandleFunc("/debug/cache", getOnly(s.cacheHandler))
	mux.HandleFunc("/debug/status", getOnly(s.statusHandler))
	mux.HandleFunc("/debug/history", getOnly(s.historyHandler))

	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("diagnostics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("diagnostics server failed: %w", err)
	}
	return nil
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

type buildHandlerFunc func(w http.ResponseWriter, r *http.Request, b *reconciler.Build)

// withBuild answers 503 until the first build has been published
func (s *Server) withBuild(h buildHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := s.builds.Latest()
		if b == nil {
			writeError(w, http.StatusServiceUnavailable, "no build has completed yet")
			return
		}
		h(w, r, b)
	}
}

func (s *Server) buildHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) irHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	data, err := b.Graph.JSON()
	s.writeRaw(w, data, err)
}

func (s *Server) configHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	data, err := b.Config.DynamicJSON()
	s.writeRaw(w, data, err)
}

func (s *Server) bootstrapHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	data, err := b.Config.BootstrapJSON()
	s.writeRaw(w, data, err)
}

func (s *Server) clusterMapHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	writeJSON(w, http.StatusOK, b.Config.ClusterMap)
}

func (s *Server) errorsHandler(w http.ResponseWriter, _ *http.Request, b *reconciler.Build) {
	errs := b.Graph.Errors
	if errs == nil {
		errs = []ir.Error{}
	}
	writeJSON(w, http.StatusOK, errs)
}

// routeHandler explains which group a request would be routed to
func (s *Server) routeHandler(w http.ResponseWriter, r *http.Request, b *reconciler.Build) {
	q := r.URL.Query()
	req := ir.Request{
		Host:   q.Get("host"),
		Path:   q.Get("path"),
		Method: q.Get("method"),
	}
	if req.Path == "" {
		req.Path = "/"
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	group, ok := b.Graph.Match(req)
	if !ok {
		writeError(w, http.StatusNotFound, "no route matches")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) cacheHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.builds.CacheDump())
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "reconciler not running")
		return
	}
	writeJSON(w, http.StatusOK, s.status.Status())
}

// historyHandler lists recent build records without their rendered output
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "build history not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := s.history.ListBuilds(limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list builds")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, rec := range records {
		rec.Bootstrap, rec.Dynamic = nil, nil
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeRaw(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
