package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/services"
	"mailreel/internal/workflow"
)

const (
	maxRequestBytes = 4 << 20
	defaultPageSize = 50
)

type apiServer struct {
	bind     string
	token    string
	maxItems int
	daemon   *Daemon
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:     cfg.Paths.APIBind,
		token:    cfg.Paths.APIToken,
		maxItems: cfg.Batch.MaxItems,
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/pipeline", s.handlePipelineHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/messages", s.handleMessage)
	mux.HandleFunc("POST /api/convert", s.handleMessage)
	mux.HandleFunc("POST /api/batches", s.handleBatch)
	mux.HandleFunc("GET /api/artifacts", s.handleArtifacts)
	mux.HandleFunc("GET /api/artifacts/{id}", s.handleArtifact)
	mux.HandleFunc("GET /api/failures", s.handleFailures)
	return s.withRequestID(authMiddleware(s.token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.bind, err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.StatusResponse{
		Status:  "ok",
		Running: s.daemon.running.Load(),
		PID:     os.Getpid(),
	})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Metrics())
}

func (s *apiServer) handlePipelineHealth(w http.ResponseWriter, r *http.Request) {
	health := s.daemon.PipelineHealth(r.Context())
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *apiServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	raw, err := api.DecodeMessage(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := s.daemon.ProcessMessage(r.Context(), raw)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}
	status := http.StatusOK
	if !outcome.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, api.FromOutcome(outcome))
}

func (s *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	raws, err := api.DecodeBatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(raws) == 0 {
		writeError(w, http.StatusBadRequest, api.ErrEmptyRequest.Error())
		return
	}
	if s.maxItems > 0 && len(raws) > s.maxItems {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch has %d messages, limit is %d", len(raws), s.maxItems))
		return
	}
	report, err := s.daemon.ProcessBatch(r.Context(), raws)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromReport(report))
}

func (s *apiServer) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	artifacts, err := api.NewArtifactService(s.daemon.store).List(r.Context(), limit)
	if err != nil {
		s.writeInternal(w, r, "list artifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, api.ArtifactListResponse{Items: artifacts})
}

func (s *apiServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	artifact, err := api.NewArtifactService(s.daemon.store).Describe(r.Context(), id)
	if err != nil {
		s.writeInternal(w, r, "get artifact", err)
		return
	}
	if artifact == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	writeJSON(w, http.StatusOK, api.ArtifactResponse{Item: *artifact})
}

func (s *apiServer) handleFailures(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	failures, err := api.NewArtifactService(s.daemon.store).Failures(r.Context(), limit)
	if err != nil {
		s.writeInternal(w, r, "list failures", err)
		return
	}
	writeJSON(w, http.StatusOK, api.FailureListResponse{Items: failures})
}

func (s *apiServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read request body")
		return nil, false
	}
	return body, true
}

func (s *apiServer) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, workflow.ErrDedupUnavailable) {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "batch rejected", "batch_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no messages were processed"),
		)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeInternal(w, r, "process", err)
}

func (s *apiServer) writeInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
		logging.String("operation", op),
		logging.Error(err),
	)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
