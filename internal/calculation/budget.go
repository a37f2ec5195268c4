package calculation

import (
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	hundred          = decimal.NewFromInt(100)
	warningThreshold = decimal.NewFromInt(80)
)

func budgetStatus(percent decimal.Decimal) domain.BudgetStatus {
	switch {
	case percent.GreaterThanOrEqual(hundred):
		return domain.BudgetOver
	case percent.GreaterThanOrEqual(warningThreshold):
		return domain.BudgetWarning
	default:
		return domain.BudgetOK
	}
}

// CalculateBudgetUsage reports how much of a category has been used.
// Spending at or above 80% of the budget is a warning, at or above 100% is
// over. Any spending against a zero budget is over.
func CalculateBudgetUsage(c domain.BudgetCategory) (domain.BudgetUsage, error) {
	if c.Budget.IsNegative() {
		return domain.BudgetUsage{}, &InvalidInputError{Field: "budget", Value: c.Budget.String(), Reason: "must not be negative"}
	}
	if c.Spent.IsNegative() {
		return domain.BudgetUsage{}, &InvalidInputError{Field: "spent", Value: c.Spent.String(), Reason: "must not be negative"}
	}

	usage := domain.BudgetUsage{
		Category:  c.Name,
		Budget:    c.Budget,
		Spent:     c.Spent,
		Remaining: c.Budget.Sub(c.Spent),
		Percent:   decimal.Zero,
		Status:    domain.BudgetOK,
	}
	if c.Budget.IsZero() {
		if c.Spent.IsPositive() {
			usage.Status = domain.BudgetOver
		}
		return usage, nil
	}
	usage.Percent = c.Spent.Mul(hundred).Div(c.Budget)
	usage.Status = budgetStatus(usage.Percent)
	return usage, nil
}

// SummariseBudgets computes usage per category and for the total.
func SummariseBudgets(categories []domain.BudgetCategory) (*domain.BudgetSummary, error) {
	summary := &domain.BudgetSummary{
		Categories:  make([]domain.BudgetUsage, 0, len(categories)),
		TotalBudget: decimal.Zero,
		TotalSpent:  decimal.Zero,
		Percent:     decimal.Zero,
		Status:      domain.BudgetOK,
	}
	for _, c := range categories {
		usage, err := CalculateBudgetUsage(c)
		if err != nil {
			return nil, err
		}
		summary.Categories = append(summary.Categories, usage)
		summary.TotalBudget = summary.TotalBudget.Add(c.Budget)
		summary.TotalSpent = summary.TotalSpent.Add(c.Spent)
	}

	total, _ := CalculateBudgetUsage(domain.BudgetCategory{Budget: summary.TotalBudget, Spent: summary.TotalSpent})
	summary.Percent = total.Percent
	summary.Status = total.Status
	return summary, nil
}

// CalculateGoalProgress reports progress toward a savings goal. Display is
// capped at 100 for progress bars; Percent keeps the raw value.
func CalculateGoalProgress(g domain.Goal) (domain.GoalStatus, error) {
	if g.Target.IsNegative() {
		return domain.GoalStatus{}, &InvalidInputError{Field: "target", Value: g.Target.String(), Reason: "must not be negative"}
	}
	if g.Saved.IsNegative() {
		return domain.GoalStatus{}, &InvalidInputError{Field: "saved", Value: g.Saved.String(), Reason: "must not be negative"}
	}

	status := domain.GoalStatus{
		Goal:      g.Name,
		Percent:   decimal.Zero,
		Display:   decimal.Zero,
		Remaining: decimal.Max(g.Target.Sub(g.Saved), decimal.Zero),
	}
	if g.Target.IsZero() {
		return status, nil
	}
	status.Percent = g.Saved.Mul(hundred).Div(g.Target)
	status.Display = decimal.Min(status.Percent, hundred)
	status.Completed = status.Percent.GreaterThanOrEqual(hundred)
	return status, nil
}
