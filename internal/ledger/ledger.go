// Package ledger keeps per-user tax history, remittance reminders and
// health-score profiles on top of a store.Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Calculator computes a liability for an amount. Both the tiered and the
// flat-rate calculators satisfy it.
type Calculator interface {
	Compute(amount decimal.Decimal) (*domain.Liability, error)
}

// TaxDocKey is the store key of a user's tax document.
func TaxDocKey(userID string) string { return "users/" + userID + "/tax" }

// TaxLedger records tax calculations and reminders per user.
type TaxLedger struct {
	store       store.Store
	calculators map[domain.TaxKind]Calculator
	log         *zap.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewTaxLedger creates a ledger that computes salary entries with salary
// and company entries with company.
func NewTaxLedger(s store.Store, salary, company Calculator, log *zap.Logger) *TaxLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaxLedger{
		store: s,
		calculators: map[domain.TaxKind]Calculator{
			domain.TaxKindSalary:  salary,
			domain.TaxKindCompany: company,
		},
		log:   log.With(zap.String("module", "ledger")),
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Record computes the tax for amount, appends the entry to the user's
// history and returns it.
func (l *TaxLedger) Record(ctx context.Context, userID string, kind domain.TaxKind, amount decimal.Decimal) (*domain.TaxLogEntry, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	calc, ok := l.calculators[kind]
	if !ok || calc == nil {
		return nil, &calculation.InvalidInputError{Field: "type", Value: string(kind), Reason: "must be salary or company"}
	}
	liability, err := calc.Compute(amount)
	if err != nil {
		return nil, err
	}

	now := l.Now()
	entry := domain.TaxLogEntry{
		ID:            l.NewID(),
		Kind:          kind,
		Amount:        amount,
		CalculatedTax: liability.TotalTax,
		Date:          now,
		NextDueDate:   calculation.NextDueDate(now),
	}

	rec := &domain.TaxRecord{}
	err = l.store.Update(ctx, TaxDocKey(userID), rec, func() error {
		normalise(rec)
		rec.History = append(rec.History, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save tax entry: %w", err)
	}

	l.log.Info("Tax entry recorded",
		zap.String("user", userID),
		zap.String("type", string(kind)),
		zap.String("amount", amount.String()),
		zap.String("tax", entry.CalculatedTax.String()),
		zap.Time("next_due", entry.NextDueDate))
	return &entry, nil
}

// History returns the user's entries in the order they were recorded.
func (l *TaxLedger) History(ctx context.Context, userID string) ([]domain.TaxLogEntry, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	rec, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.History, nil
}

// AddReminder stores a remittance reminder for the given day. Adding the
// same day twice is a no-op.
func (l *TaxLedger) AddReminder(ctx context.Context, userID string, due time.Time) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if due.IsZero() {
		return &calculation.InvalidInputError{Field: "date", Value: "", Reason: "is required"}
	}
	day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)

	rec := &domain.TaxRecord{}
	err := l.store.Update(ctx, TaxDocKey(userID), rec, func() error {
		normalise(rec)
		for _, r := range rec.Reminders {
			if r.Equal(day) {
				return errUnchanged
			}
		}
		rec.Reminders = append(rec.Reminders, day)
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	return nil
}

// DueReminders returns the user's reminders that fall due within window
// days after today. Reminders due today or already past are not raised.
func (l *TaxLedger) DueReminders(ctx context.Context, userID string, today time.Time, window int) ([]domain.Reminder, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	rec, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	var due []domain.Reminder
	for _, r := range rec.Reminders {
		days := calculation.DaysUntil(r, today)
		if !calculation.WithinReminderWindow(days, window) {
			continue
		}
		due = append(due, domain.Reminder{
			UserID:  userID,
			DueDate: r,
			Days:    days,
			Status:  calculation.DueStatus(days),
		})
	}
	return due, nil
}

func (l *TaxLedger) load(ctx context.Context, userID string) (*domain.TaxRecord, error) {
	rec := &domain.TaxRecord{}
	err := l.store.Get(ctx, TaxDocKey(userID), rec)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load tax record for %s: %w", userID, err)
	}
	normalise(rec)
	return rec, nil
}

// errUnchanged aborts an update that has nothing to write.
var errUnchanged = errors.New("document unchanged")

// normalise gives a missing document empty lists so it encodes as [].
func normalise(rec *domain.TaxRecord) {
	if rec.History == nil {
		rec.History = []domain.TaxLogEntry{}
	}
	if rec.Reminders == nil {
		rec.Reminders = []time.Time{}
	}
}

func validateUser(userID string) error {
	if userID == "" {
		return &calculation.InvalidInputError{Field: "user", Value: `""`, Reason: "is required"}
	}
	return nil
}
