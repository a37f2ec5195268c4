package api

import (
	"fmt"
	"net/http"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/metrics"
)

type liabilityRequest struct {
	Schedule string                 `json:"schedule"`
	Brackets []config.BracketRecord `json:"brackets"`
	Amount   config.Field           `json:"amount"`
}

// handleLiability computes a liability from a named schedule or from
// brackets supplied inline.
func (s *Server) handleLiability(w http.ResponseWriter, r *http.Request) {
	var req liabilityRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, metrics.KindLiability, err)
		return
	}
	amount, err := config.ParseAmount(string(req.Amount))
	if err != nil {
		s.fail(w, metrics.KindLiability, fmt.Errorf("amount: %w", err))
		return
	}

	var (
		name     string
		brackets []domain.Bracket
	)
	if len(req.Brackets) > 0 {
		name = req.Schedule
		if brackets, err = config.ParseBrackets(req.Brackets); err != nil {
			s.fail(w, metrics.KindLiability, err)
			return
		}
	} else {
		schedule, ok := s.tables.Tables().Schedule(req.Schedule)
		if !ok {
			s.fail(w, "", fmt.Errorf("%w %q", errUnknownSchedule, req.Schedule))
			return
		}
		name, brackets = schedule.Name, schedule.Brackets
	}

	liability, err := calculation.ComputeLiability(amount, brackets)
	if err != nil {
		s.fail(w, metrics.KindLiability, err)
		return
	}
	liability.Schedule = name
	s.metrics.ObserveLiability(metrics.KindLiability, amount)
	writeJSON(w, http.StatusOK, liability)
}

type companyTaxRequest struct {
	Profit config.Field `json:"profit"`
}

func (s *Server) handleCompanyTax(w http.ResponseWriter, r *http.Request) {
	var req companyTaxRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, metrics.KindCompanyTax, err)
		return
	}
	profit, err := config.ParseAmount(string(req.Profit))
	if err != nil {
		s.fail(w, metrics.KindCompanyTax, fmt.Errorf("profit: %w", err))
		return
	}
	calc, err := calculation.NewFlatRateCalculator(calculation.CompanyTaxScheduleName, s.tables.Tables().CompanyTaxRate)
	if err != nil {
		s.fail(w, metrics.KindCompanyTax, err)
		return
	}
	liability, err := calc.Compute(profit)
	if err != nil {
		s.fail(w, metrics.KindCompanyTax, err)
		return
	}
	s.metrics.ObserveLiability(metrics.KindCompanyTax, profit)
	writeJSON(w, http.StatusOK, liability)
}

type healthScoreRequest struct {
	User    string                `json:"user"`
	Factors []config.FactorRecord `json:"factors"`
}

type healthScoreResponse struct {
	Score         int                `json:"score"`
	Level         domain.HealthLevel `json:"level"`
	Description   string             `json:"description"`
	PreviousScore *int               `json:"previousScore,omitempty"`
}

// handleHealthScore aggregates factors. When a user is named and a
// tracker is configured the result is also persisted to their profile.
func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	var req healthScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, metrics.KindHealth, err)
		return
	}
	factors, err := config.ParseFactors(req.Factors)
	if err != nil {
		s.fail(w, metrics.KindHealth, err)
		return
	}

	resp := healthScoreResponse{Score: calculation.Aggregate(factors)}
	if req.User != "" && s.health != nil {
		profile, err := s.health.Recompute(r.Context(), req.User, factors)
		if err != nil {
			s.fail(w, metrics.KindHealth, err)
			return
		}
		resp.Score = profile.HealthScore
		resp.PreviousScore = &profile.PreviousScore
		s.metrics.ObserveHealthScore(profile.HealthScore)
	}
	resp.Level = calculation.ClassifyHealth(resp.Score)
	resp.Description = calculation.DescribeHealth(resp.Level)
	s.metrics.ObserveCalculation(metrics.KindHealth)
	writeJSON(w, http.StatusOK, resp)
}

type schedulesResponse struct {
	Default        string                   `json:"default"`
	CompanyTaxRate string                   `json:"companyTaxRate"`
	Metadata       domain.TaxTablesMetadata `json:"metadata"`
	Schedules      []domain.TaxSchedule     `json:"schedules"`
}

func (s *Server) handleSchedules(w http.ResponseWriter, _ *http.Request) {
	tables := s.tables.Tables()
	resp := schedulesResponse{
		Default:        tables.DefaultSchedule,
		CompanyTaxRate: tables.CompanyTaxRate.String(),
		Metadata:       tables.Metadata,
	}
	for _, name := range config.ScheduleNames(tables) {
		resp.Schedules = append(resp.Schedules, tables.Schedules[name])
	}
	writeJSON(w, http.StatusOK, resp)
}
