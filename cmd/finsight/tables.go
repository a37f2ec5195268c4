package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/output"
	"github.com/spf13/cobra"
)

func tablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and validate tax tables",
	}
	cmd.AddCommand(tablesValidateCmd(), tablesListCmd(a))
	return cmd
}

func tablesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [tables-file]",
		Short: "Validate a tax tables file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := config.NewTableParser().LoadFromFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tax tables file %s is valid (%d schedules, default %q)\n",
				args[0], len(tables.Schedules), tables.DefaultSchedule)
			return nil
		},
	}
}

func tablesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the schedules in the loaded tax tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.tables.Metadata.Authority != "" {
				fmt.Fprintf(out, "%s %d: %s\n", a.tables.Metadata.Authority, a.tables.Metadata.DataYear, a.tables.Metadata.Description)
			}

			table := tablewriter.NewWriter(out)
			if err := table.Append([]string{"Schedule", "Description", "Currency", "Brackets", "Top Rate", "Default"}); err != nil {
				return fmt.Errorf("failed to append header row: %w", err)
			}
			for _, name := range config.ScheduleNames(a.tables) {
				s := a.tables.Schedules[name]
				top := ""
				if n := len(s.Brackets); n > 0 {
					top = output.FormatPercentage(s.Brackets[n-1].Rate)
				}
				def := ""
				if name == a.tables.DefaultSchedule {
					def = "yes"
				}
				row := []string{name, s.Description, a.currency(s), strconv.Itoa(len(s.Brackets)), top, def}
				if err := table.Append(row); err != nil {
					return fmt.Errorf("failed to append row: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}
			fmt.Fprintf(out, "Company tax rate: %s\n", output.FormatPercentage(a.tables.CompanyTaxRate))
			return nil
		},
	}
}
