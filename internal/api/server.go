// Package api exposes the calculators and ledger services over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/ledger"
	"github.com/rgehrsitz/finsight/internal/metrics"
	"github.com/rgehrsitz/finsight/internal/store"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errUnknownSchedule = errors.New("unknown schedule")

// TablesSource yields the tax tables currently in effect.
type TablesSource interface {
	Tables() *domain.TaxTables
}

// Server wires HTTP routes for the calculation and ledger API.
type Server struct {
	tables  TablesSource
	ledger  *ledger.TaxLedger
	health  *ledger.HealthTracker
	metrics *metrics.Recorder
	log     *zap.Logger
}

// Options configures a Server. Ledger and Health are optional; their
// routes answer 503 when unset.
type Options struct {
	Tables  TablesSource
	Ledger  *ledger.TaxLedger
	Health  *ledger.HealthTracker
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		tables:  opts.Tables,
		ledger:  opts.Ledger,
		health:  opts.Health,
		metrics: opts.Metrics,
		log:     log.With(zap.String("module", "api")),
	}
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealthz))
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /v1/liability", s.instrument("liability", s.handleLiability))
	mux.HandleFunc("POST /v1/company-tax", s.instrument("company-tax", s.handleCompanyTax))
	mux.HandleFunc("POST /v1/health-score", s.instrument("health-score", s.handleHealthScore))
	mux.HandleFunc("GET /v1/schedules", s.instrument("schedules", s.handleSchedules))

	mux.HandleFunc("POST /v1/users/{user}/tax", s.instrument("user-tax", s.handleRecordTax))
	mux.HandleFunc("GET /v1/users/{user}/tax", s.instrument("user-tax", s.handleTaxHistory))
	mux.HandleFunc("POST /v1/users/{user}/reminders", s.instrument("user-reminders", s.handleAddReminder))
	mux.HandleFunc("GET /v1/users/{user}/reminders", s.instrument("user-reminders", s.handleDueReminders))
	mux.HandleFunc("GET /v1/users/{user}/health", s.instrument("user-health", s.handleHealthProfile))
	mux.HandleFunc("PUT /v1/users/{user}/health/factors/{index}", s.instrument("user-health", s.handleUpdateFactor))
	return mux
}

// instrument records request metrics and logs each request.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.metrics.ObserveRequest(endpoint, r.Method, wrapped.statusCode)
		s.log.Debug("request",
			zap.String("endpoint", endpoint),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, calculation.ErrInvalidInput), errors.Is(err, config.ErrInvalidRecord):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, calculation.ErrConfiguration), errors.Is(err, config.ErrInvalidTable):
		return http.StatusUnprocessableEntity, "configuration"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errUnknownSchedule):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, kind string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("kind", kind), zap.Error(err))
	}
	if kind != "" && status != http.StatusNotFound {
		s.metrics.ObserveError(kind, err)
	}
	writeError(w, status, code, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := codec.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", config.ErrInvalidRecord, err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
