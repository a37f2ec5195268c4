package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/output"
	"github.com/rgehrsitz/finsight/internal/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func payeCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "paye [amount]",
		Short: "Calculate PAYE on a monthly salary",
		Long: `Calculate Pay As You Earn tax on a salary using the "paye" schedule of the
loaded tax tables (or the default schedule when no "paye" schedule exists).
With --user the result is appended to that user's tax history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := config.ParseAmount(args[0])
			if err != nil {
				return err
			}
			schedule, err := payeSchedule(a.tables)
			if err != nil {
				return err
			}
			calc, err := a.tieredCalculator(schedule)
			if err != nil {
				return err
			}
			liability, err := calc.Compute(amount)
			if err != nil {
				return err
			}
			if err := a.render(cmd, liability, a.currency(schedule)); err != nil {
				return err
			}
			if user != "" {
				return a.record(cmd, user, domain.TaxKindSalary, amount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Record the calculation in this user's tax history")
	return cmd
}

func companyTaxCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "company-tax [profit]",
		Short: "Calculate flat-rate company tax on a profit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profit, err := config.ParseAmount(args[0])
			if err != nil {
				return err
			}
			calc, err := calculation.NewFlatRateCalculator(calculation.CompanyTaxScheduleName, a.tables.CompanyTaxRate)
			if err != nil {
				return err
			}
			liability, err := calc.Compute(profit)
			if err != nil {
				return err
			}
			if err := a.render(cmd, liability, a.settings.Currency); err != nil {
				return err
			}
			if user != "" {
				return a.record(cmd, user, domain.TaxKindCompany, profit)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Record the calculation in this user's tax history")
	return cmd
}

func liabilityCmd(a *app) *cobra.Command {
	var scheduleName string
	cmd := &cobra.Command{
		Use:   "liability [amount]",
		Short: "Apply any schedule from the tax tables to an amount",
		Example: `  finsight liability 120000
  finsight liability 2,500,000 --tables tables.yaml --schedule annual -f json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := config.ParseAmount(args[0])
			if err != nil {
				return err
			}
			schedule, ok := a.tables.Schedule(scheduleName)
			if !ok {
				return fmt.Errorf("%w: unknown schedule %q (available: %s)",
					config.ErrInvalidTable, scheduleName, strings.Join(config.ScheduleNames(a.tables), ", "))
			}
			calc, err := a.tieredCalculator(schedule)
			if err != nil {
				return err
			}
			liability, err := calc.Compute(amount)
			if err != nil {
				return err
			}
			return a.render(cmd, liability, a.currency(schedule))
		},
	}
	cmd.Flags().StringVarP(&scheduleName, "schedule", "s", "", "Schedule name (default: the tables' default schedule)")
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history [user]",
		Short: "Show a user's recorded tax calculations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeStore, err := a.taxLedger(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := l.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.renderHistory(cmd, entries)
		},
	}
}

// payeSchedule prefers a schedule named "paye" and falls back to the default.
func payeSchedule(tables *domain.TaxTables) (domain.TaxSchedule, error) {
	if s, ok := tables.Schedule(calculation.PAYEScheduleName); ok {
		return s, nil
	}
	if s, ok := tables.Schedule(""); ok {
		return s, nil
	}
	return domain.TaxSchedule{}, fmt.Errorf("%w: no paye or default schedule", config.ErrInvalidTable)
}

// calculators builds the salary and company calculators for a set of tables.
func calculators(tables *domain.TaxTables) (*calculation.TieredRateCalculator, *calculation.FlatRateCalculator, error) {
	schedule, err := payeSchedule(tables)
	if err != nil {
		return nil, nil, err
	}
	salary, err := calculation.NewTieredRateCalculatorForSchedule(schedule)
	if err != nil {
		return nil, nil, err
	}
	company, err := calculation.NewFlatRateCalculator(calculation.CompanyTaxScheduleName, tables.CompanyTaxRate)
	if err != nil {
		return nil, nil, err
	}
	return salary, company, nil
}

func (a *app) tieredCalculator(schedule domain.TaxSchedule) (*calculation.TieredRateCalculator, error) {
	calc, err := calculation.NewTieredRateCalculatorForSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule.Name, err)
	}
	if a.debug {
		calc.SetLogger(a.logger.Sugar())
	}
	return calc, nil
}

func (a *app) render(cmd *cobra.Command, l *domain.Liability, currency string) error {
	formatter := output.GetFormatterByName(a.format)
	if formatter == nil {
		return fmt.Errorf("unsupported format %q (supported: %s)", a.format, strings.Join(output.FormatNames(), ", "))
	}
	if console, ok := formatter.(output.ConsoleFormatter); ok {
		console.Currency = currency
		formatter = console
	}
	data, err := formatter.Format(l)
	if err != nil {
		return fmt.Errorf("failed to format liability: %w", err)
	}
	return writeOut(cmd, data)
}

// writeOut writes rendered output, ending it with a newline.
func writeOut(cmd *cobra.Command, data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err := cmd.OutOrStdout().Write(data)
	return err
}

func (a *app) record(cmd *cobra.Command, user string, kind domain.TaxKind, amount decimal.Decimal) error {
	l, closeStore, err := a.taxLedger(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	entry, err := l.Record(cmd.Context(), user, kind, amount)
	if err != nil {
		return err
	}
	if a.format == "console" {
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s entry %s for %s; next remittance due %s\n",
			entry.Kind, entry.ID, user, entry.NextDueDate.Format("2006-01-02"))
	}
	return nil
}

func (a *app) renderHistory(cmd *cobra.Command, entries []domain.TaxLogEntry) error {
	out := cmd.OutOrStdout()
	switch a.format {
	case "json":
		data, err := codec.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		return writeOut(cmd, data)
	case "csv":
		w := csv.NewWriter(out)
		_ = w.Write([]string{"ID", "Date", "Type", "Amount", "Tax", "Next Due"})
		for _, e := range entries {
			_ = w.Write([]string{e.ID, e.Date.Format("2006-01-02"), string(e.Kind), e.Amount.StringFixed(2), e.CalculatedTax.StringFixed(2), e.NextDueDate.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "console":
	default:
		return fmt.Errorf("unsupported format %q (supported: %s)", a.format, strings.Join(output.FormatNames(), ", "))
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No tax history recorded.")
		return nil
	}
	table := tablewriter.NewWriter(out)
	if err := table.Append([]string{"Date", "Type", "Amount", "Tax", "Next Due"}); err != nil {
		return fmt.Errorf("failed to append header row: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Date.Format("2006-01-02"),
			string(e.Kind),
			output.FormatCurrency(e.Amount, ""),
			output.FormatCurrency(e.CalculatedTax, ""),
			e.NextDueDate.Format("2006-01-02"),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

// openStore opens the configured document store. The returned func
// releases it.
func (a *app) openStore(ctx context.Context) (store.Store, func() error, error) {
	if a.settings.Store == config.StoreRedis {
		rs, err := store.DialRedis(ctx, a.settings.RedisAddr, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rs, rs.Close, nil
	}
	a.logger.Debug("Using in-memory store; records last only for this process",
		zap.String("store", a.settings.Store))
	return store.NewMemoryStore(), func() error { return nil }, nil
}

// memoryStoreWarning is shown when a one-off command reads or writes
// per-user records that will not outlive it.
const memoryStoreWarning = `Warning: store is "memory"; user records are discarded when this command exits. Set store: redis to keep them.`

// openCommandStore opens the store for a single CLI command and warns
// when nothing it writes will persist.
func (a *app) openCommandStore(cmd *cobra.Command) (store.Store, func() error, error) {
	if a.settings.Store != config.StoreRedis {
		fmt.Fprintln(cmd.ErrOrStderr(), memoryStoreWarning)
	}
	return a.openStore(cmd.Context())
}
