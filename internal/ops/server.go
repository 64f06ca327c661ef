// Package ops exposes the operational HTTP surface: health, metrics, and
// batch status.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Config controls the ops listener.
type Config struct {
	Addr string `mapstructure:"addr"`
}

// Server serves the ops endpoints. It reads, never writes: batch state
// belongs to the workers.
type Server struct {
	router   chi.Router
	batches  catalog.BatchStore
	frontier catalog.FrontierStore
	sources  []string
	logger   *zap.Logger
}

// NewServer constructs a Server reporting on the given source code
// names.
func NewServer(batches catalog.BatchStore, frontier catalog.FrontierStore, sources []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		batches:  batches,
		frontier: frontier,
		sources:  sources,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/status", s.status)
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// Serve runs the listener until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("ops server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sourceStatus is one row of the /status payload.
type sourceStatus struct {
	CodeName   string     `json:"code_name"`
	BatchID    string     `json:"batch_id,omitempty"`
	StartedAt  *time.Time `json:"start_date,omitempty"`
	Checkpoint *string    `json:"checkpoint,omitempty"`
	Pending    int        `json:"pending_urls"`
	Error      string     `json:"error,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make([]sourceStatus, 0, len(s.sources))
	for _, codeName := range s.sources {
		row := sourceStatus{CodeName: codeName}

		b, err := s.batches.LatestBatch(ctx, codeName)
		switch {
		case errors.Is(err, catalog.ErrNoBatch):
			out = append(out, row)
			continue
		case err != nil:
			s.logger.Warn("status lookup failed", zap.String("code_name", codeName), zap.Error(err))
			row.Error = "batch lookup failed"
			out = append(out, row)
			continue
		}

		row.BatchID = b.ID
		row.StartedAt = &b.StartedAt
		row.Checkpoint = b.Checkpoint

		pending, err := s.frontier.ListPending(ctx, b.ID, false)
		if err != nil {
			s.logger.Warn("pending lookup failed", zap.String("batch_id", b.ID), zap.Error(err))
			row.Error = "frontier lookup failed"
		} else {
			row.Pending = len(pending)
		}
		out = append(out, row)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
