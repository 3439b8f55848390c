// Package api exposes the HTTP interface for the crawler service: one
// endpoint per pipeline stage, a workflow notification hook, and the usual
// health and metrics surfaces. The stage endpoints are the HTTP rendering of
// the external scheduler's triggers, so status codes carry the retry
// contract: 400 means the payload is malformed and no retry will help, 503
// means transient and the scheduler should re-trigger.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/metrics"
	"github.com/tofino/jobsite-crawler/internal/notify"
	"github.com/tofino/jobsite-crawler/internal/pipeline"
)

// Server wires HTTP handlers to the ingestion coordinator.
type Server struct {
	router      chi.Router
	coordinator *pipeline.Coordinator
	notifier    ingest.Notifier
	ready       func(r *http.Request) error
	logger      *zap.Logger
}

// Option customizes server construction.
type Option func(*Server)

// WithReadyCheck sets the dependency probe behind /readyz.
func WithReadyCheck(check func(r *http.Request) error) Option {
	return func(s *Server) { s.ready = check }
}

// NewServer constructs a Server with middleware and routes.
func NewServer(coordinator *pipeline.Coordinator, notifier ingest.Notifier, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		coordinator: coordinator,
		notifier:    notifier,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/stages", func(r chi.Router) {
			r.Post("/search", s.searchStage)
			r.Post("/download", s.downloadStage)
			r.Post("/parse", s.parseStage)
		})
		r.Post("/notifications/execution", s.executionNotification)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// stageRequest covers all three stage payloads; each handler validates the
// field it needs.
type stageRequest struct {
	URL        string `json:"url"`
	StorageKey string `json:"s3_key"`
}

type jobPostingLink struct {
	URL string `json:"url"`
}

func (s *Server) searchStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	urls, err := s.coordinator.Search(r.Context(), req.URL)
	if err != nil {
		s.writeStageError(w, "search", err)
		return
	}

	links := make([]jobPostingLink, 0, len(urls))
	for _, u := range urls {
		links = append(links, jobPostingLink{URL: u})
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_postings": links})
}

func (s *Server) downloadStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.coordinator.Download(r.Context(), req.URL)
	if err != nil {
		s.writeStageError(w, "download", err)
		return
	}

	resp := map[string]any{"outcome": string(result.Outcome)}
	if result.StorageKey != "" {
		resp["s3_key"] = result.StorageKey
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	outcome, err := s.coordinator.Parse(r.Context(), req.StorageKey)
	if err != nil {
		s.writeStageError(w, "parse", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

type executionNotificationRequest struct {
	Status       string `json:"status"`
	Region       string `json:"region"`
	ExecutionARN string `json:"executionArn"`
}

func (s *Server) executionNotification(w http.ResponseWriter, r *http.Request) {
	var req executionNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == "" || req.Region == "" || req.ExecutionARN == "" {
		writeError(w, http.StatusBadRequest, "status, region, and executionArn are required")
		return
	}

	subject, message := notify.ExecutionNotice(req.Status, req.Region, req.ExecutionARN)
	if err := s.notifier.Notify(r.Context(), subject, message); err != nil {
		s.logger.Error("notification publish failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "notification publish failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// writeStageError maps the stage error taxonomy onto HTTP status codes.
func (s *Server) writeStageError(w http.ResponseWriter, stage string, err error) {
	switch {
	case errors.Is(err, ingest.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case ingest.IsRetryable(err):
		s.logger.Warn("stage failed retryably", zap.String("stage", stage), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     err.Error(),
			"outcome":   string(ingest.OutcomeRetryableFailure),
			"retryable": true,
		})
	default:
		s.logger.Error("stage failed", zap.String("stage", stage), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
