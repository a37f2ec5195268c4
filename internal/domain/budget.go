package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetCategory is a spending limit and what has been spent against it.
type BudgetCategory struct {
	Name   string          `json:"name" yaml:"name"`
	Budget decimal.Decimal `json:"budget" yaml:"budget"`
	Spent  decimal.Decimal `json:"spent" yaml:"spent"`
}

// BudgetStatus is the traffic-light state of a category.
type BudgetStatus string

const (
	BudgetOK      BudgetStatus = "ok"
	BudgetWarning BudgetStatus = "warning"
	BudgetOver    BudgetStatus = "over"
)

// BudgetUsage is the computed utilisation of one category.
type BudgetUsage struct {
	Category  string          `json:"category"`
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Status    BudgetStatus    `json:"status"`
}

// BudgetSummary aggregates usage across categories.
type BudgetSummary struct {
	Categories  []BudgetUsage   `json:"categories"`
	TotalBudget decimal.Decimal `json:"totalBudget"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
	Percent     decimal.Decimal `json:"percent"`
	Status      BudgetStatus    `json:"status"`
}

// Goal is a savings target.
type Goal struct {
	Name     string          `json:"name" yaml:"name"`
	Target   decimal.Decimal `json:"target" yaml:"target"`
	Saved    decimal.Decimal `json:"saved" yaml:"saved"`
	Deadline *time.Time      `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// GoalStatus is the computed progress toward a goal.
type GoalStatus struct {
	Goal      string          `json:"goal"`
	Percent   decimal.Decimal `json:"percent"`
	Display   decimal.Decimal `json:"display"`
	Remaining decimal.Decimal `json:"remaining"`
	Completed bool            `json:"completed"`
}
