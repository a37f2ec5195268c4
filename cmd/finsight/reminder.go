package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/ledger"
	"github.com/spf13/cobra"
)

func reminderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Manage tax remittance reminders",
	}
	cmd.AddCommand(reminderAddCmd(a), reminderDueCmd(a))
	return cmd
}

func (a *app) taxLedger(cmd *cobra.Command) (*ledger.TaxLedger, func() error, error) {
	st, closeStore, err := a.openCommandStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	salary, company, err := calculators(a.tables)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return ledger.NewTaxLedger(st, salary, company, a.logger), closeStore, nil
}

func reminderAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add [user] [YYYY-MM-DD]",
		Short: "Add a remittance reminder for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := time.Parse("2006-01-02", strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("%w: date %q is not YYYY-MM-DD", config.ErrInvalidRecord, args[1])
			}
			l, closeStore, err := a.taxLedger(cmd)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := l.AddReminder(cmd.Context(), args[0], due); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reminder set for %s on %s\n", args[0], due.Format("2006-01-02"))
			return nil
		},
	}
}

func reminderDueCmd(a *app) *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "due [user]",
		Short: "List reminders falling due within the window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("window") {
				window = a.settings.ReminderWindowDays
			}
			l, closeStore, err := a.taxLedger(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			due, err := l.DueReminders(cmd.Context(), args[0], time.Now(), window)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.format == "json" {
				data, err := codec.MarshalIndent(due, "", "  ")
				if err != nil {
					return err
				}
				return writeOut(cmd, data)
			}
			if len(due) == 0 {
				fmt.Fprintf(out, "No reminders due within %d days.\n", window)
				return nil
			}
			for _, r := range due {
				fmt.Fprintf(out, "%s  %s\n", r.DueDate.Format("2006-01-02"), r.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Days ahead to look (default: reminder_window_days setting)")
	return cmd
}
