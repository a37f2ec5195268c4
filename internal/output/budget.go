package output

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/domain"
)

// BudgetReport combines category usage with savings goal progress.
type BudgetReport struct {
	Currency string                `json:"currency,omitempty"`
	Summary  *domain.BudgetSummary `json:"summary"`
	Goals    []domain.GoalStatus   `json:"goals,omitempty"`
}

func statusColor(s domain.BudgetStatus) *color.Color {
	switch s {
	case domain.BudgetOver:
		return color.New(color.FgHiRed, color.Bold)
	case domain.BudgetWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// FormatBudget renders a budget report as console, json or csv.
func FormatBudget(format string, r *BudgetReport) ([]byte, error) {
	switch format {
	case "json":
		return codec.MarshalIndent(r, "", "  ")
	case "csv":
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		_ = w.Write([]string{"Category", "Budget", "Spent", "Remaining", "Percent", "Status"})
		for _, u := range r.Summary.Categories {
			_ = w.Write([]string{u.Category, u.Budget.StringFixed(2), u.Spent.StringFixed(2), u.Remaining.StringFixed(2), u.Percent.StringFixed(2), string(u.Status)})
		}
		w.Flush()
		return buf.Bytes(), w.Error()
	case "console", "":
		var buf bytes.Buffer
		table := tablewriter.NewWriter(&buf)
		if err := table.Append([]string{"Category", "Budget", "Spent", "Remaining", "Used", "Status"}); err != nil {
			return nil, fmt.Errorf("failed to append header row: %w", err)
		}
		for _, u := range r.Summary.Categories {
			row := []string{
				u.Category,
				FormatCurrency(u.Budget, ""),
				FormatCurrency(u.Spent, ""),
				FormatCurrency(u.Remaining, ""),
				u.Percent.StringFixed(1) + "%",
				statusColor(u.Status).Sprint(string(u.Status)),
			}
			if err := table.Append(row); err != nil {
				return nil, fmt.Errorf("failed to append row: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return nil, fmt.Errorf("failed to render table: %w", err)
		}
		fmt.Fprintf(&buf, "Total: %s of %s (%s%%) ",
			FormatCurrency(r.Summary.TotalSpent, r.Currency),
			FormatCurrency(r.Summary.TotalBudget, r.Currency),
			r.Summary.Percent.StringFixed(1))
		statusColor(r.Summary.Status).Fprintln(&buf, string(r.Summary.Status))

		if len(r.Goals) > 0 {
			fmt.Fprintln(&buf)
			fmt.Fprintln(&buf, "SAVINGS GOALS")
			for _, g := range r.Goals {
				state := FormatCurrency(g.Remaining, r.Currency) + " to go"
				if g.Completed {
					state = "completed"
				}
				fmt.Fprintf(&buf, "  %-24s %6s%%  %s\n", g.Goal, g.Display.StringFixed(1), state)
			}
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
