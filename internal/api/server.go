// Package api exposes the HTTP interface for the export service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanneemmanuel/turnstatic/internal/config"
	"github.com/sanneemmanuel/turnstatic/internal/export"
	"github.com/sanneemmanuel/turnstatic/internal/metrics"
)

// Server wires HTTP handlers to the export job pipeline.
type Server struct {
	router chi.Router
	job    *export.Job
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(job *export.Job, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		job:    job,
		cfg:    cfg,
		logger: logger,
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
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/exports", func(r chi.Router) {
			r.Post("/", s.initExport)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Post("/batch", s.advanceBatch)
				r.Post("/finalize", s.finalizeExport)
				r.Post("/cancel", s.cancelExport)
			})
		})
		r.Get("/download/{token}", s.download)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	checks := export.CheckCapabilities(s.job.Settings())
	status := http.StatusOK
	if !export.AllOK(checks) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type initExportRequest struct {
	URLs         []string `json:"urls"`
	MediaFiles   []string `json:"media_files"`
	IncludeMedia bool     `json:"include_media"`
}

func (s *Server) initExport(w http.ResponseWriter, r *http.Request) {
	var req initExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	media := req.MediaFiles
	if req.IncludeMedia {
		found, err := export.ListMediaFiles(s.job.Settings().MediaRoot)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("list media files: %v", err))
			return
		}
		media = append(media, found...)
	}
	result, err := s.job.Init(r.Context(), req.URLs, media)
	if err != nil {
		if errors.Is(err, export.ErrNoContent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) advanceBatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := s.job.AdvanceBatch(r.Context(), jobID)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) finalizeExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := s.job.Finalize(r.Context(), jobID)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.job.Cancel(r.Context(), jobID); err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "canceled"})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	archivePath, err := s.job.ClaimDownload(r.Context(), token)
	if err != nil {
		writeExportError(w, err)
		return
	}

	f, err := os.Open(archivePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	defer f.Close() //nolint:errcheck // read-only handle

	filename := fmt.Sprintf("turnstatic-export-%s.zip", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if info, statErr := f.Stat(); statErr == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("archive stream interrupted", zap.Error(err))
		return
	}

	// The ticket is single use; once delivered the archive is gone too.
	if err := os.Remove(archivePath); err != nil {
		s.logger.Warn("remove delivered archive", zap.String("path", archivePath), zap.Error(err))
	}
}

// writeExportError maps pipeline sentinels onto HTTP status codes.
func writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, export.ErrSessionExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, export.ErrJobNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, export.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, export.ErrNoContent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
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
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
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

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
