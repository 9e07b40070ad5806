package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/query"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueryService answers area lookups.
type QueryService interface {
	Resolve(ctx context.Context, req query.Request) (*query.Response, error)
	Meta() query.Meta
}

// Server exposes health, readiness, and metrics HTTP endpoints, plus the
// query API when a QueryService is given.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
// A non-nil svc adds GET /v1/weather and GET /v1/meta.
func NewServer(addr string, svc QueryService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if svc != nil {
		mux.HandleFunc("GET /v1/weather", s.handleWeather(svc))
		mux.HandleFunc("GET /v1/meta", s.handleMeta(svc))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleWeather(svc QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}

		resp, err := svc.Resolve(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, resp)
		case errors.Is(err, query.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		case errors.Is(err, query.ErrTooManyCells):
			writeError(w, http.StatusUnprocessableEntity, "too_many_cells", err.Error())
		default:
			// Storage errors may carry keys or endpoints; keep them in the log.
			s.logger.Error("weather query failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "objects could not be fetched")
		}
	}
}

func (s *Server) handleMeta(svc QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Meta())
	}
}

func parseRequest(r *http.Request) (query.Request, error) {
	q := r.URL.Query()
	var (
		req  query.Request
		errs []error
	)
	req.TimeRange = q.Get("timeRange")
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		errs = append(errs, errors.New("month must be an integer"))
	}
	req.Month = month

	floats := []struct {
		name string
		dst  *float64
	}{
		{"fromLat", &req.FromLat},
		{"toLat", &req.ToLat},
		{"fromLng", &req.FromLon},
		{"toLng", &req.ToLon},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(q.Get(f.name), 64)
		if err != nil {
			errs = append(errs, errors.New(f.name+" must be a number"))
			continue
		}
		*f.dst = v
	}
	return req, errors.Join(errs...)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
