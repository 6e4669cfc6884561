// Package api exposes the HTTP interface for the audit service.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/accessgate"
	"github.com/ailens/domain-audit/internal/audit"
	"github.com/ailens/domain-audit/internal/config"
	"github.com/ailens/domain-audit/internal/crawler"
)

const maxComparisonDomains = 5

// Server wires HTTP handlers to the job store and the access gate.
type Server struct {
	router   chi.Router
	jobStore audit.JobStore
	gate     *accessgate.Gate
	idGen    audit.IDGenerator
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore audit.JobStore,
	gate *accessgate.Gate,
	idGen audit.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobStore: jobStore,
		gate:     gate,
		idGen:    idGen,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.submitAudit)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getStatus)
				r.Post("/retry", s.retryAudit)
				r.Get("/view", s.getView)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// the store answers a cheap read when it is reachable
	if _, err := s.jobStore.GetJob(r.Context(), "readiness-probe"); err != nil && !errors.Is(err, audit.ErrJobNotFound) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type submitRequest struct {
	TargetDomain      string   `json:"target_domain"`
	ComparisonDomains []string `json:"comparison_domains"`
	Locale            string   `json:"locale"`
	Context           string   `json:"context"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	target := crawler.NormalizeDomain(req.TargetDomain)
	if target == "" {
		writeError(w, http.StatusBadRequest, "target_domain is required", s.logger)
		return
	}
	if len(req.ComparisonDomains) > maxComparisonDomains {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d comparison domains allowed", maxComparisonDomains), s.logger)
		return
	}
	var comparisons []string
	for _, d := range req.ComparisonDomains {
		if normalized := crawler.NormalizeDomain(d); normalized != "" && normalized != target {
			comparisons = append(comparisons, normalized)
		}
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job", s.logger)
		return
	}
	job := audit.Job{
		ID:                jobID,
		TargetDomain:      target,
		ComparisonDomains: comparisons,
		Locale:            req.Locale,
		Context:           req.Context,
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("job create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job", s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	resp := map[string]any{
		"job_id":        job.ID,
		"target_domain": job.TargetDomain,
		"status":        job.Status,
		"stage":         job.Stage,
		"progress":      job.Progress,
		"pages_crawled": job.PagesCrawled,
	}
	if job.ErrorText != "" {
		resp["error"] = job.ErrorText
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) retryAudit(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobStore.ResetForRetry(r.Context(), jobID); err != nil {
		if errors.Is(err, audit.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", s.logger)
			return
		}
		s.logger.Error("retry reset failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reset job", s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	artifact, err := s.jobStore.LatestArtifact(r.Context(), jobID)
	if errors.Is(err, audit.ErrArtifactNotFound) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("no report available (job is %s)", job.Status), s.logger)
		return
	}
	if err != nil {
		s.logger.Error("artifact read failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load report", s.logger)
		return
	}

	caller := callerFromRequest(r)
	tier := s.gate.Resolve(r.Context(), caller, jobID)
	view, err := s.gate.BuildView(artifact, tier)
	if err != nil {
		s.logger.Error("view build failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build report view", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":               jobID,
		"run_id":               artifact.RunID,
		"generated_at":         artifact.Created,
		"access_state":         view.AccessState,
		"redacted_section_ids": view.RedactedSections,
		"view":                 view.Sections,
	}, s.logger)
}

// callerFromRequest reads the opaque bearer token. Token verification is
// an upstream concern; here the token only serves as the caller ID.
func callerFromRequest(r *http.Request) audit.Caller {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return audit.Caller{}
	}
	return audit.Caller{ID: token, Identified: true}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
