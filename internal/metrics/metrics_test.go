package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsCalculations(t *testing.T) {
	r := NewRecorder()

	r.ObserveLiability(KindLiability, decimal.NewFromInt(120000))
	r.ObserveLiability(KindLiability, decimal.NewFromInt(40000))
	r.ObserveCalculation(KindHealth)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.calculations.WithLabelValues(KindLiability)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calculations.WithLabelValues(KindHealth)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.taxable))
}

func TestRecorder_ErrorsByReason(t *testing.T) {
	r := NewRecorder()

	r.ObserveError(KindLiability, &calculation.InvalidInputError{Field: "amount", Value: "-1", Reason: "negative"})
	r.ObserveError(KindLiability, fmt.Errorf("wrapped: %w", &calculation.ConfigurationError{Index: 0, Reason: "bad"}))
	r.ObserveError(KindLiability, errors.New("boom"))
	r.ObserveError(KindLiability, fmt.Errorf("%w: amount \"lots\" is not a number", config.ErrInvalidRecord))
	r.ObserveError(KindLiability, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues(KindLiability, "invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues(KindLiability, "configuration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues(KindLiability, "internal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues(KindLiability, "invalid_record")))
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&calculation.InvalidInputError{Field: "amount", Value: "-1", Reason: "negative"}, "invalid_input"},
		{fmt.Errorf("body: %w", config.ErrInvalidRecord), "invalid_record"},
		{&calculation.ConfigurationError{Index: 1, Reason: "bad"}, "configuration"},
		{fmt.Errorf("%w: unknown schedule", config.ErrInvalidTable), "configuration"},
		{errors.New("redis down"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestRecorder_HealthScoreHasNoUserLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := NewRecorder(WithRegistry(registry))
	r.ObserveHealthScore(72)
	r.ObserveHealthScore(65)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "finsight_health_score_count 2")
	assert.Contains(t, body, "finsight_health_score_sum 137")
	assert.Contains(t, body, `finsight_health_score_bucket{le="70"} 1`)
	assert.NotContains(t, body, "user=")
}

func TestRecorder_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := NewRecorder(WithRegistry(registry), WithNamespace("test"))
	r.ObserveRequest("/v1/liability", http.MethodPost, http.StatusOK)
	r.ObserveCalculation(KindBudget)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_http_requests_total{endpoint="/v1/liability",method="POST",status_code="200"} 1`), body)
	assert.Contains(t, body, `test_calculations_total{kind="budget"} 1`)
	assert.Same(t, registry, r.Registry())
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveLiability(KindLiability, decimal.NewFromInt(1))
		r.ObserveCalculation(KindHealth)
		r.ObserveError(KindHealth, errors.New("x"))
		r.ObserveHealthScore(1)
		r.ObserveRequest("/", http.MethodGet, http.StatusOK)
	})
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
