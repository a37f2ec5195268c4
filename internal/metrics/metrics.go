// Package metrics provides Prometheus metrics for the finsight service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/shopspring/decimal"
)

// Calculation kinds used as the "kind" label.
const (
	KindLiability  = "liability"
	KindCompanyTax = "company_tax"
	KindHealth     = "health"
	KindBudget     = "budget"
)

// Recorder owns the service's collectors. A nil *Recorder records nothing,
// so callers that run without metrics can pass nil.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	calculations *prometheus.CounterVec
	errors       *prometheus.CounterVec
	healthScore  prometheus.Histogram
	taxable      prometheus.Histogram
	httpRequests *prometheus.CounterVec
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithRegistry registers collectors on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithAmountBuckets sets the histogram buckets for taxable amounts.
func WithAmountBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// NewRecorder creates a Recorder on its own registry.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "finsight",
		// 10k .. ~10M in the configured currency.
		buckets: prometheus.ExponentialBuckets(10000, 2, 11),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(r.registry)
	r.calculations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "calculations_total",
		Help:      "Total number of successful calculations by kind",
	}, []string{"kind"})
	r.errors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "calculation_errors_total",
		Help:      "Total number of rejected calculations by kind and reason",
	}, []string{"kind", "reason"})
	r.healthScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "health_score",
		Help:      "Distribution of recomputed health scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})
	r.taxable = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "taxable_amount",
		Help:      "Distribution of amounts submitted for liability calculation",
		Buckets:   r.buckets,
	})
	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveLiability counts a successful liability and records its amount.
func (r *Recorder) ObserveLiability(kind string, amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.calculations.WithLabelValues(kind).Inc()
	r.taxable.Observe(amount.InexactFloat64())
}

// ObserveCalculation counts a successful calculation without an amount.
func (r *Recorder) ObserveCalculation(kind string) {
	if r == nil {
		return
	}
	r.calculations.WithLabelValues(kind).Inc()
}

// ObserveError counts a rejected calculation, labelled by error class.
func (r *Recorder) ObserveError(kind string, err error) {
	if r == nil || err == nil {
		return
	}
	r.errors.WithLabelValues(kind, Reason(err)).Inc()
}

// ObserveHealthScore records a recomputed health score. Scores are not
// labelled by user; user IDs come from callers and are unbounded.
func (r *Recorder) ObserveHealthScore(score int) {
	if r == nil {
		return
	}
	r.healthScore.Observe(float64(score))
}

// ObserveRequest counts one HTTP request.
func (r *Recorder) ObserveRequest(endpoint, method string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
}

// Reason maps an error to a bounded label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, calculation.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, config.ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, calculation.ErrConfiguration), errors.Is(err, config.ErrInvalidTable):
		return "configuration"
	default:
		return "internal"
	}
}
