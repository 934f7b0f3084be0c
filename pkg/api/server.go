// Package api serves the scan service: a JSON HTTP API for submitting
// scans, following their progress and reading results.
//
// Routes:
//
//	GET    /api/scans              list scans
//	POST   /api/scans              submit {url, profile, modules, max_rps, evasion}
//	GET    /api/scans/{id}         one scan with findings
//	DELETE /api/scans/{id}         cancel if active, then remove
//	POST   /api/scans/{id}/cancel  cancel, keep the record
//	GET    /api/stats              totals and the latest completed scan
//	GET    /metrics                Prometheus metrics
//	GET    /healthz                liveness
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/duration"
	"github.com/vulnscan/vulnscan/pkg/jsonutil"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/scanstore"
)

// maxRequestBody bounds a submitted JSON body.
const maxRequestBody = 64 << 10

// Options configures a Server.
type Options struct {
	Manager *scanstore.Manager
	Scanner *Scanner
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server is the scan service HTTP front end.
type Server struct {
	mgr     *scanstore.Manager
	scanner *Scanner
	metrics *metrics.Collector
	logger  *slog.Logger
	handler http.Handler
}

// New builds the server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mgr:     opts.Manager,
		scanner: opts.Scanner,
		metrics: opts.Metrics,
		logger:  logger.With(slog.String("component", "api")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scans", s.handleList)
	mux.HandleFunc("POST /api/scans", s.handleSubmit)
	mux.HandleFunc("GET /api/scans/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/scans/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/scans/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	s.handler = recoveryMiddleware(s.logger, securityHeaders(accessLog(s.logger, mux)))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx ends, then shuts down
// gracefully and stops the scan manager.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = defaults.ListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends. A clean shutdown
// returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: duration.ServerReadHeader,
		ReadTimeout:       duration.ServerRead,
		WriteTimeout:      duration.ServerWrite,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("scan service listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.Shutdown)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.mgr.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	s.logger.Info("scan service stopped")
	return errors.Join(errs...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": defaults.ToolName,
		"version": defaults.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Store().List())
}

type submitResponse struct {
	ScanID string           `json:"scan_id"`
	Status scanstore.Status `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req scanstore.Request
	if err := jsonutil.Decode(http.MaxBytesReader(w, r.Body, maxRequestBody), &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	normalizeRequest(&req)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL required")
		return
	}
	if s.scanner != nil {
		if _, err := s.scanner.Config(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sc, err := s.mgr.Submit(req)
	switch {
	case errors.Is(err, scanstore.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, scanstore.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/api/scans/"+sc.ID)
	writeJSON(w, http.StatusAccepted, submitResponse{ScanID: sc.ID, Status: sc.Status})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sc, err := s.mgr.Store().Get(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Cancel(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Store().Stats())
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scanstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "Scan not found")
	case errors.Is(err, scanstore.ErrFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("scan store failure", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encoding response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
