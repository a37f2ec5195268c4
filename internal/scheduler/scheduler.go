// Package scheduler runs the periodic remittance reminder scan.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderSource lists the reminders due for a user. *ledger.TaxLedger
// satisfies it.
type ReminderSource interface {
	DueReminders(ctx context.Context, userID string, today time.Time, window int) ([]domain.Reminder, error)
}

// Notifier receives each due reminder found by a scan.
type Notifier func(domain.Reminder)

// ReminderScheduler scans a fixed set of users on a cron schedule.
type ReminderScheduler struct {
	source ReminderSource
	users  []string
	window int
	spec   string
	log    *zap.Logger

	cron   *cron.Cron
	mu     sync.Mutex
	notify Notifier

	// Now is replaceable for tests.
	Now func() time.Time
}

// New creates a scheduler. spec uses the standard five-field cron syntax
// or a descriptor such as "@daily".
func New(source ReminderSource, users []string, window int, spec string, log *zap.Logger) (*ReminderScheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	s := &ReminderScheduler{
		source: source,
		users:  append([]string(nil), users...),
		window: window,
		spec:   spec,
		log:    log.With(zap.String("module", "scheduler")),
		cron:   cron.New(),
		Now:    time.Now,
	}
	s.notify = s.logReminder
	return s, nil
}

// SetNotifier replaces the default logging notifier.
func (s *ReminderScheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		n = s.logReminder
	}
	s.notify = n
}

func (s *ReminderScheduler) logReminder(r domain.Reminder) {
	s.log.Info("Tax remittance due",
		zap.String("user", r.UserID),
		zap.String("due_date", r.DueDate.Format("2006-01-02")),
		zap.Int("days", r.Days),
		zap.String("status", r.Status))
}

// Scan checks every user once and returns the reminders it raised. A
// failure for one user is logged and does not stop the others.
func (s *ReminderScheduler) Scan(ctx context.Context) []domain.Reminder {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()

	today := s.Now()
	var raised []domain.Reminder
	for _, user := range s.users {
		if ctx.Err() != nil {
			break
		}
		due, err := s.source.DueReminders(ctx, user, today, s.window)
		if err != nil {
			s.log.Warn("Reminder scan failed", zap.String("user", user), zap.Error(err))
			continue
		}
		for _, r := range due {
			notify(r)
		}
		raised = append(raised, due...)
	}
	s.log.Debug("Reminder scan complete", zap.Int("users", len(s.users)), zap.Int("raised", len(raised)))
	return raised
}

// Run schedules Scan and blocks until ctx is done, then waits for a
// running scan to finish.
func (s *ReminderScheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Scan(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.log.Info("Reminder scheduler started",
		zap.String("schedule", s.spec),
		zap.Int("users", len(s.users)),
		zap.Int("window_days", s.window))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Reminder scheduler stopped")
	return nil
}
