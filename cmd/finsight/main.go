package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app is the state shared by every subcommand once the root pre-run has
// loaded settings, the logger and the tax tables.
type app struct {
	configPath string
	tablesPath string
	format     string
	debug      bool

	settings *config.Settings
	logger   *zap.Logger
	tables   *domain.TaxTables
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "Personal finance calculator for PAYE, company tax and financial health",
		Long: `finsight computes progressive tax liabilities from bracket tables, flat
company tax, weighted financial health scores and budget usage. It can also
run as an HTTP service that keeps per-user tax history and remittance
reminders in a document store.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to settings file (default: $FINSIGHT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&a.tablesPath, "tables", "", "Path to tax tables file (default: built-in tables)")
	rootCmd.PersistentFlags().StringVarP(&a.format, "format", "f", "console", "Output format (console, json, csv)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug output for detailed calculations")

	rootCmd.AddCommand(
		payeCmd(a),
		companyTaxCmd(a),
		liabilityCmd(a),
		historyCmd(a),
		healthCmd(a),
		budgetCmd(a),
		tablesCmd(a),
		reminderCmd(a),
		serveCmd(a),
		versionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.LoadSettings(a.configPath)
	if err != nil {
		return err
	}
	if a.tablesPath != "" {
		settings.TablesFile = a.tablesPath
	}
	if a.debug {
		settings.LogLevel = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:   settings.LogLevel,
		Format:  settings.LogFormat,
		Service: "finsight",
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	tables, err := config.LoadTables(settings.TablesFile)
	if err != nil {
		return fmt.Errorf("failed to load tax tables: %w", err)
	}
	if settings.DefaultSchedule != "" {
		if _, ok := tables.Schedules[settings.DefaultSchedule]; !ok {
			return fmt.Errorf("%w: default_schedule %q is not defined", config.ErrInvalidTable, settings.DefaultSchedule)
		}
		tables.DefaultSchedule = settings.DefaultSchedule
	}

	a.settings = settings
	a.logger = logger
	a.tables = tables
	logger.Debug("Configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("tables_file", settings.TablesFile),
		zap.String("store", settings.Store))
	return nil
}

// currency returns the currency of a schedule, falling back to settings.
func (a *app) currency(s domain.TaxSchedule) string {
	if s.Currency != "" {
		return s.Currency
	}
	return a.settings.Currency
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Overrides the root pre-run; version needs no settings or tables.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "finsight %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", date)
			fmt.Fprintf(cmd.OutOrStdout(), "go: %s\n", buildInfo())
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.GoVersion
	}
	return "unknown"
}

// exitCode maps validation failures to 2 and everything else to 1.
func exitCode(err error) int {
	switch {
	case errors.Is(err, calculation.ErrInvalidInput),
		errors.Is(err, calculation.ErrConfiguration),
		errors.Is(err, config.ErrInvalidRecord),
		errors.Is(err, config.ErrInvalidTable),
		errors.Is(err, config.ErrInvalidSettings):
		return 2
	}
	return 1
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if exitCode(err) == 2 {
			fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}
