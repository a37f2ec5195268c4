package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/metrics"
)

var errServiceDisabled = errors.New("ledger is not configured")

func (s *Server) ledgerReady(w http.ResponseWriter) bool {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", errServiceDisabled)
		return false
	}
	return true
}

type recordTaxRequest struct {
	Type   domain.TaxKind `json:"type"`
	Amount config.Field   `json:"amount"`
}

func (s *Server) handleRecordTax(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerReady(w) {
		return
	}
	var req recordTaxRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, metrics.KindLiability, err)
		return
	}
	amount, err := config.ParseAmount(string(req.Amount))
	if err != nil {
		s.fail(w, metrics.KindLiability, fmt.Errorf("amount: %w", err))
		return
	}
	kind := metrics.KindLiability
	if req.Type == domain.TaxKindCompany {
		kind = metrics.KindCompanyTax
	}
	entry, err := s.ledger.Record(r.Context(), r.PathValue("user"), req.Type, amount)
	if err != nil {
		s.fail(w, kind, err)
		return
	}
	s.metrics.ObserveLiability(kind, amount)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleTaxHistory(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerReady(w) {
		return
	}
	history, err := s.ledger.History(r.Context(), r.PathValue("user"))
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxHistory": history})
}

type reminderRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerReady(w) {
		return
	}
	var req reminderRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "", err)
		return
	}
	due, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		s.fail(w, "", &calculation.InvalidInputError{Field: "date", Value: req.Date, Reason: "must be YYYY-MM-DD"})
		return
	}
	if err := s.ledger.AddReminder(r.Context(), r.PathValue("user"), due); err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"date": due.Format("2006-01-02")})
}

func (s *Server) handleDueReminders(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerReady(w) {
		return
	}
	window := calculation.DefaultReminderWindowDays
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, "", &calculation.InvalidInputError{Field: "window", Value: v, Reason: "must be a non-negative integer"})
			return
		}
		window = n
	}
	due, err := s.ledger.DueReminders(r.Context(), r.PathValue("user"), time.Now(), window)
	if err != nil {
		s.fail(w, "", err)
		return
	}
	if due == nil {
		due = []domain.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": due})
}

func (s *Server) handleHealthProfile(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", errServiceDisabled)
		return
	}
	profile, err := s.health.Profile(r.Context(), r.PathValue("user"))
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateFactorRequest struct {
	Score config.Field `json:"score"`
}

func (s *Server) handleUpdateFactor(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", errServiceDisabled)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.fail(w, metrics.KindHealth, &calculation.InvalidInputError{Field: "index", Value: r.PathValue("index"), Reason: "must be an integer"})
		return
	}
	var req updateFactorRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, metrics.KindHealth, err)
		return
	}
	score, err := config.ParseScore(string(req.Score))
	if err != nil {
		s.fail(w, metrics.KindHealth, err)
		return
	}
	user := r.PathValue("user")
	profile, err := s.health.UpdateFactor(r.Context(), user, index, score)
	if err != nil {
		s.fail(w, metrics.KindHealth, err)
		return
	}
	s.metrics.ObserveHealthScore(profile.HealthScore)
	writeJSON(w, http.StatusOK, profile)
}
