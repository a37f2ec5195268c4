package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgehrsitz/finsight/internal/api"
	"github.com/rgehrsitz/finsight/internal/config"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/ledger"
	"github.com/rgehrsitz/finsight/internal/metrics"
	"github.com/rgehrsitz/finsight/internal/scheduler"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// liveCalculator resolves the current tables on every call so a reload
// takes effect for the ledger without a restart.
type liveCalculator struct {
	holder *config.TablesHolder
	kind   domain.TaxKind
}

func (c liveCalculator) Compute(amount decimal.Decimal) (*domain.Liability, error) {
	salary, company, err := calculators(c.holder.Tables())
	if err != nil {
		return nil, err
	}
	if c.kind == domain.TaxKindCompany {
		return company.Compute(amount)
	}
	return salary.Compute(amount)
}

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		Long: `Serve the calculation and ledger API over HTTP. Tax history, reminders and
health profiles are kept in the configured store (memory or redis). Reminders
for the users in reminder_users are scanned on the reminder_cron schedule, and
a tables_file is reloaded when it changes on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.settings.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http_addr setting)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := a.logger
	defer func() { _ = log.Sync() }()

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("Failed to close store", zap.Error(err))
		}
	}()

	holder := config.NewTablesHolder(a.tables)
	taxLedger := ledger.NewTaxLedger(st,
		liveCalculator{holder: holder, kind: domain.TaxKindSalary},
		liveCalculator{holder: holder, kind: domain.TaxKindCompany},
		log)
	recorder := metrics.NewRecorder()

	server := api.NewServer(api.Options{
		Tables:  holder,
		Ledger:  taxLedger,
		Health:  ledger.NewHealthTracker(st, log),
		Metrics: recorder,
		Logger:  log,
	})
	httpServer := &http.Server{
		Addr:              a.settings.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var reminders *scheduler.ReminderScheduler
	if users := a.settings.Users(); len(users) > 0 {
		reminders, err = scheduler.New(taxLedger, users, a.settings.ReminderWindowDays, a.settings.ReminderCron, log)
		if err != nil {
			return err
		}
	} else {
		log.Info("No reminder_users configured; reminder scheduler disabled")
	}

	var watcher *config.TablesWatcher
	if a.settings.TablesFile != "" {
		watcher, err = config.NewTablesWatcher(a.settings.TablesFile, holder, log)
		if err != nil {
			return err
		}
		// default_schedule is applied at startup only.
		watcher.OnReload = func(t *domain.TaxTables) {
			if ds := a.settings.DefaultSchedule; ds != "" && ds != t.DefaultSchedule {
				log.Warn("Reloaded tables use their own default schedule",
					zap.String("configured", ds),
					zap.String("effective", t.DefaultSchedule))
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})
	if reminders != nil {
		g.Go(func() error { return reminders.Run(gctx) })
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	return g.Wait()
}
