// Package ops is the operational HTTP surface: liveness, backfill
// progress, stream state, the retry-primary command, and Prometheus
// metrics.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/stream"
)

// ProgressSource exposes the backfill progress snapshot.
type ProgressSource interface {
	Progress() model.BackfillProgress
}

// StreamControl exposes the stream manager's state and commands.
type StreamControl interface {
	Status() []stream.SymbolStatus
	RetryPrimary(symbol model.Symbol) error
}

// Server wires the ops routes onto a gorilla mux.
type Server struct {
	http     *http.Server
	progress ProgressSource
	streams  StreamControl
}

func NewServer(addr string, progress ProgressSource, streams StreamControl) *Server {
	s := &Server{progress: progress, streams: streams}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)
	r.HandleFunc("/stream/status", s.handleStreamStatus).Methods(http.MethodGet)
	r.HandleFunc("/stream/retry-primary", s.handleRetryPrimary).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("ops server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	if s.progress == nil {
		writeJSON(w, http.StatusOK, model.BackfillProgress{Status: model.BackfillIdle, FailedKeys: []model.CellKey{}})
		return
	}
	writeJSON(w, http.StatusOK, s.progress.Progress())
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, _ *http.Request) {
	if s.streams == nil {
		writeJSON(w, http.StatusOK, []stream.SymbolStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.streams.Status())
}

func (s *Server) handleRetryPrimary(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "streaming disabled"})
		return
	}
	symbol, err := model.ParseSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.streams.RetryPrimary(symbol); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retrying", "symbol": symbol.String()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("ops response encode failed")
	}
}
