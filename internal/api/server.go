// Package api exposes the ingest HTTP surface: one extraction endpoint
// plus health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/config"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/extract"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/fetcher"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/metrics"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// HTMLFetcher resolves a render request to HTML. Satisfied by
// *fetcher.Client; swapped for a stub in tests.
type HTMLFetcher interface {
	FetchRenderedHTML(ctx context.Context, req types.RenderRequest) (types.FetchResult, error)
}

// Server wires the ingest handlers onto an HTTP mux.
type Server struct {
	fetch   HTMLFetcher
	cfg     *config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	started time.Time
}

// NewServer constructs the API server.
func NewServer(fetch HTMLFetcher, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		fetch:   fetch,
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ingest", s.handleIngest)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)
	w.Header().Set("X-Request-ID", requestID)
	start := time.Now()

	maxWaitMS := int(s.cfg.Render.MaxWait.Duration / time.Millisecond)
	params, err := parseIngestParams(r.URL.Query(), s.cfg.Extract, maxWaitMS)
	if err != nil {
		s.writeError(w, logger, http.StatusBadRequest, err)
		return
	}
	logger = logger.With("url", params.URL)

	result, err := s.fetch.FetchRenderedHTML(r.Context(), params.renderRequest())
	if err != nil {
		status, msg := fetchErrorStatus(err)
		logger.Warn("fetch failed", "status", status, "error", err)
		s.writeError(w, logger, status, errors.New(msg))
		return
	}

	record, err := extract.Extract(result.HTML, params.URL, extract.Options{
		MinImagePx:  params.MinImagePx,
		ExcludePNG:  params.ExcludePNG,
		Aggressive:  params.Aggressive,
		SkipHarvest: !params.Harvest,
		Sanitize:    params.Sanitize,
		Markdown:    params.Markdown,
		MainOnly:    params.MainOnly,
		Debug:       params.Debug,
		Logger:      logger,
	})
	metrics.ExtractDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, extract.ErrInsufficientContent) {
			s.writeError(w, logger, http.StatusUnprocessableEntity, err)
			return
		}
		logger.Error("extraction failed", "error", err)
		s.writeError(w, logger, http.StatusInternalServerError, err)
		return
	}

	metrics.IngestRequests.WithLabelValues("ok").Inc()
	logger.Info("ingest complete",
		"attempts", result.Attempts,
		"fallback", result.Fallback,
		"images", len(record.Images),
		"specs", len(record.Specs),
		"elapsed", time.Since(start).String())
	writeJSON(w, http.StatusOK, record)
}

// fetchErrorStatus maps fetch failures onto the error taxonomy: blocked
// or invalid input is the caller's fault, everything upstream is a 502.
func fetchErrorStatus(err error) (int, string) {
	if errors.Is(err, fetcher.ErrBlockedHost) {
		return http.StatusBadRequest, err.Error()
	}
	var ue *fetcher.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway, ue.Error()
	}
	if errors.Is(err, fetcher.ErrBodyTooLarge) {
		return http.StatusBadGateway, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "render fetch timed out"
	}
	if strings.Contains(err.Error(), "invalid url") {
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusBadGateway, err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	metrics.IngestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	if status == http.StatusBadRequest {
		logger.Info("request rejected", "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
