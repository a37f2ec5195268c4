package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/ledger"
	"github.com/rgehrsitz/finsight/internal/metrics"
	"github.com/rgehrsitz/finsight/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	metrics *metrics.Recorder
}

func newTestServer(t *testing.T, withLedger bool) *testServer {
	t.Helper()
	tables := config.NewTablesHolder(calculation.DefaultTables())
	rec := metrics.NewRecorder()
	opts := Options{Tables: tables, Metrics: rec, Logger: zap.NewNop()}
	if withLedger {
		s := store.NewMemoryStore()
		paye, err := calculation.NewTieredRateCalculator(calculation.PAYEScheduleName, calculation.DefaultPAYEBrackets())
		require.NoError(t, err)
		opts.Ledger = ledger.NewTaxLedger(s, paye, calculation.NewCompanyTaxCalculator(), zap.NewNop())
		opts.Health = ledger.NewHealthTracker(s, zap.NewNop())
	}
	return &testServer{handler: NewServer(opts).Routes(), metrics: rec}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, codec.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLiability_DefaultSchedule(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/v1/liability", `{"amount": 120000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Schedule      string `json:"schedule"`
		TotalTax      string `json:"totalTax"`
		EffectiveRate string `json:"effectiveRate"`
		Breakdown     []any  `json:"breakdown"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "paye", body.Schedule)
	assert.Equal(t, "22500", body.TotalTax)
	assert.Equal(t, "0.1875", body.EffectiveRate)
	assert.Len(t, body.Breakdown, 3)
}

func TestLiability_InlineBrackets(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/v1/liability", `{
		"schedule": "custom",
		"amount": "1,500",
		"brackets": [
			{"upperBound": "1,000", "rate": "0%"},
			{"upperBound": null, "rate": "10%"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Schedule string `json:"schedule"`
		TotalTax string `json:"totalTax"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "custom", body.Schedule)
	assert.Equal(t, "50", body.TotalTax)
}

func TestLiability_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "negative amount", body: `{"amount": -5}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "text amount", body: `{"amount": "lots"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "malformed json", body: `{"amount": `, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "unknown field", body: `{"amount": 1, "extra": true}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "unknown schedule", body: `{"amount": 1, "schedule": "vat"}`, status: http.StatusNotFound, code: "not_found"},
		{
			name:   "bounded top bracket",
			body:   `{"amount": 1, "brackets": [{"upperBound": 100, "rate": 0.1}]}`,
			status: http.StatusUnprocessableEntity,
			code:   "configuration",
		},
		{
			name:   "descending bounds",
			body:   `{"amount": 1, "brackets": [{"upperBound": 100, "rate": 0.1}, {"upperBound": 50, "rate": 0.2}, {"rate": 0.3}]}`,
			status: http.StatusUnprocessableEntity,
			code:   "configuration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			rec := ts.do(t, http.MethodPost, "/v1/liability", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body errorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestCompanyTax(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/v1/company-tax", `{"profit": "1000000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		TotalTax string `json:"totalTax"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "300000", body.TotalTax)

	rec = ts.do(t, http.MethodPost, "/v1/company-tax", `{"profit": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthScore(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/v1/health-score", `{"factors": [
		{"factor": "Savings Rate", "score": 90, "weight": 0.5},
		{"factor": "Debt Ratio", "score": 70, "weight": 0.5}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body healthScoreResponse
	decode(t, rec, &body)
	assert.Equal(t, 80, body.Score)
	assert.Equal(t, "excellent", string(body.Level))
	assert.Nil(t, body.PreviousScore)

	rec = ts.do(t, http.MethodPost, "/v1/health-score", `{"factors": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 0, body.Score, "no factors falls back to zero")

	rec = ts.do(t, http.MethodPost, "/v1/health-score", `{"factors": [{"factor": "x", "score": 150}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthScore_PersistsForUser(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/v1/health-score", `{"user": "u1", "factors": [{"factor": "a", "score": 60}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/health-score", `{"user": "u1", "factors": [{"factor": "a", "score": 70}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthScoreResponse
	decode(t, rec, &body)
	assert.Equal(t, 70, body.Score)
	require.NotNil(t, body.PreviousScore)
	assert.Equal(t, 60, *body.PreviousScore)

	rec = ts.do(t, http.MethodPut, "/v1/users/u1/health/factors/0", `{"score": 40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		HealthScore   int `json:"healthScore"`
		PreviousScore int `json:"previousScore"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, 40, profile.HealthScore)
	assert.Equal(t, 70, profile.PreviousScore)

	rec = ts.do(t, http.MethodGet, "/v1/users/nobody/health", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateFactor_RejectsNonFiniteScore(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/v1/health-score", `{"user": "u1", "factors": [{"factor": "a", "score": 60}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, body := range []string{`{"score": "NaN"}`, `{"score": "Inf"}`, `{"score": "-Inf"}`, `{"score": 101}`, `{"score": "lots"}`} {
		rec = ts.do(t, http.MethodPut, "/v1/users/u1/health/factors/0", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, "invalid_input", resp.Code, body)
	}

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		HealthScore int `json:"healthScore"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, 60, profile.HealthScore)
}

func TestSchedules(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/v1/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Default   string `json:"default"`
		Schedules []struct {
			Name     string `json:"name"`
			Brackets []struct {
				UpperBound *string `json:"upperBound"`
			} `json:"brackets"`
		} `json:"schedules"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "paye", body.Default)
	require.Len(t, body.Schedules, 1)
	require.Len(t, body.Schedules[0].Brackets, 4)
	assert.Nil(t, body.Schedules[0].Brackets[3].UpperBound, "top bracket is unbounded")
}

func TestUserTaxLedger(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/v1/users/u1/tax", `{"type": "salary", "amount": 120000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		CalculatedTax string `json:"calculatedTax"`
	}
	decode(t, rec, &entry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "salary", entry.Type)
	assert.Equal(t, "22500", entry.CalculatedTax)

	rec = ts.do(t, http.MethodPost, "/v1/users/u1/tax", `{"type": "vat", "amount": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/tax", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		TaxHistory []any `json:"taxHistory"`
	}
	decode(t, rec, &history)
	assert.Len(t, history.TaxHistory, 1)
}

func TestUserReminders(t *testing.T) {
	ts := newTestServer(t, true)
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	farAway := time.Now().AddDate(0, 0, 30).Format("2006-01-02")

	for _, d := range []string{tomorrow, farAway} {
		rec := ts.do(t, http.MethodPost, "/v1/users/u1/reminders", `{"date": "`+d+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := ts.do(t, http.MethodPost, "/v1/users/u1/reminders", `{"date": "soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/reminders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reminders []struct {
			Days   int    `json:"days"`
			Status string `json:"status"`
		} `json:"reminders"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Reminders, 1)
	assert.Equal(t, 1, body.Reminders[0].Days)

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/reminders?window=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Len(t, body.Reminders, 2)

	rec = ts.do(t, http.MethodGet, "/v1/users/u1/reminders?window=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerRoutesWithoutLedger(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/v1/users/u1/tax", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/v1/liability", `{"amount": 1000}`)
	ts.do(t, http.MethodPost, "/v1/liability", `{"amount": -1}`)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `finsight_calculations_total{kind="liability"} 1`), body)
	assert.Contains(t, body, `finsight_calculation_errors_total{kind="liability",reason="invalid_input"} 1`)
	assert.Contains(t, body, `finsight_http_requests_total{endpoint="liability",method="POST",status_code="400"} 1`)
}
