package main

import (
	"fmt"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/ledger"
	"github.com/rgehrsitz/finsight/internal/output"
	"github.com/spf13/cobra"
)

func healthCmd(a *app) *cobra.Command {
	var (
		user     string
		previous int
	)
	cmd := &cobra.Command{
		Use:   "health [factors-file]",
		Short: "Score financial health from weighted factors",
		Long: `Aggregate the factors in a YAML file into a 0-100 financial health score.
Factors without a weight share equally. With --user the profile is stored and
the change is measured against the user's previous score.

Example factors file:

  factors:
    - factor: Emergency fund
      score: 80
      weight: 0.4
    - factor: Debt ratio
      score: 55`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			factors, err := config.LoadFactors(args[0])
			if err != nil {
				return err
			}

			report := output.NewHealthReport(factors, previous)
			if previous < 0 {
				report.Change = 0
			}
			if user != "" {
				st, closeStore, err := a.openCommandStore(cmd)
				if err != nil {
					return err
				}
				defer closeStore()
				profile, err := ledger.NewHealthTracker(st, a.logger).Recompute(cmd.Context(), user, factors)
				if err != nil {
					return err
				}
				report = output.NewHealthReport(profile.HealthFactors, profile.PreviousScore)
			}

			data, err := output.FormatHealth(a.format, report)
			if err != nil {
				return err
			}
			return writeOut(cmd, data)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Store the profile for this user")
	cmd.Flags().IntVar(&previous, "previous", -1, "Previous score to compare against (ignored with --user)")
	return cmd
}

func budgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "budget [budget-file]",
		Short: "Report budget usage and savings goal progress",
		Long: `Report spending against each budget category and progress toward savings
goals. Categories at 80% of budget are flagged as warning and at 100% as over.

Example budget file:

  categories:
    - name: Rent
      budget: 150,000
      spent: 150,000
  goals:
    - name: Emergency fund
      target: 600,000
      saved: 240,000
      deadline: 2026-12-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadBudget(args[0])
			if err != nil {
				return err
			}
			summary, err := calculation.SummariseBudgets(plan.Categories)
			if err != nil {
				return err
			}
			goals := make([]domain.GoalStatus, 0, len(plan.Goals))
			for _, g := range plan.Goals {
				status, err := calculation.CalculateGoalProgress(g)
				if err != nil {
					return fmt.Errorf("goal %q: %w", g.Name, err)
				}
				goals = append(goals, status)
			}

			data, err := output.FormatBudget(a.format, &output.BudgetReport{
				Currency: a.settings.Currency,
				Summary:  summary,
				Goals:    goals,
			})
			if err != nil {
				return err
			}
			return writeOut(cmd, data)
		},
	}
}
