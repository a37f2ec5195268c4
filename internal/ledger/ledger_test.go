package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*TaxLedger, *store.MemoryStore) {
	t.Helper()
	paye, err := calculation.NewTieredRateCalculator(calculation.PAYEScheduleName, calculation.DefaultPAYEBrackets())
	require.NoError(t, err)

	s := store.NewMemoryStore()
	l := NewTaxLedger(s, paye, calculation.NewCompanyTaxCalculator(), zap.NewNop())
	l.Now = func() time.Time { return fixedNow }
	ids := 0
	l.NewID = func() string {
		ids++
		return fmt.Sprintf("entry-%d", ids)
	}
	return l, s
}

func TestTaxLedger_RecordSalary(t *testing.T) {
	l, s := newTestLedger(t)
	ctx := context.Background()

	entry, err := l.Record(ctx, "u1", domain.TaxKindSalary, decimal.NewFromInt(120000))
	require.NoError(t, err)

	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, domain.TaxKindSalary, entry.Kind)
	assert.Equal(t, "22500", entry.CalculatedTax.String())
	assert.Equal(t, fixedNow, entry.Date)
	assert.Equal(t, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), entry.NextDueDate)

	var rec domain.TaxRecord
	require.NoError(t, s.Get(ctx, TaxDocKey("u1"), &rec))
	require.Len(t, rec.History, 1)
	assert.Equal(t, "22500", rec.History[0].CalculatedTax.String())
}

func TestTaxLedger_RecordCompanyAndHistoryOrder(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, "u1", domain.TaxKindSalary, decimal.NewFromInt(40000))
	require.NoError(t, err)
	_, err = l.Record(ctx, "u1", domain.TaxKindCompany, decimal.NewFromInt(1000000))
	require.NoError(t, err)

	history, err := l.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TaxKindSalary, history[0].Kind)
	assert.Equal(t, "6000", history[0].CalculatedTax.String())
	assert.Equal(t, domain.TaxKindCompany, history[1].Kind)
	assert.Equal(t, "300000", history[1].CalculatedTax.String())

	other, err := l.History(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTaxLedger_RecordRejectsBadInput(t *testing.T) {
	l, s := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, "u1", domain.TaxKindSalary, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, calculation.ErrInvalidInput)

	_, err = l.Record(ctx, "u1", domain.TaxKind("vat"), decimal.NewFromInt(100))
	var inputErr *calculation.InvalidInputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "type", inputErr.Field)

	_, err = l.Record(ctx, "", domain.TaxKindSalary, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, calculation.ErrInvalidInput)

	assert.Equal(t, 0, s.Len(), "rejected entries are not persisted")
}

func TestTaxLedger_Reminders(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	today := time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

	for _, d := range []time.Time{
		today,                   // due today: not raised
		today.AddDate(0, 0, 1),  // tomorrow
		today.AddDate(0, 0, 3),  // edge of window
		today.AddDate(0, 0, 4),  // outside window
		today.AddDate(0, 0, -2), // overdue
	} {
		require.NoError(t, l.AddReminder(ctx, "u1", d))
	}
	// Same day again is ignored.
	require.NoError(t, l.AddReminder(ctx, "u1", today.AddDate(0, 0, 1).Add(5*time.Hour)))

	due, err := l.DueReminders(ctx, "u1", today, calculation.DefaultReminderWindowDays)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, 1, due[0].Days)
	assert.Equal(t, "Due tomorrow", due[0].Status)
	assert.Equal(t, 3, due[1].Days)
	assert.Equal(t, "Due in 3 days", due[1].Status)
	assert.Equal(t, "u1", due[1].UserID)
}

func TestTaxLedger_AddReminderRequiresDate(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.AddReminder(context.Background(), "u1", time.Time{})
	assert.ErrorIs(t, err, calculation.ErrInvalidInput)
}

// slowStore widens the gap between reading and writing a document.
type slowStore struct {
	*store.MemoryStore
}

func (s slowStore) Get(ctx context.Context, key string, dst interface{}) error {
	err := s.MemoryStore.Get(ctx, key, dst)
	time.Sleep(2 * time.Millisecond)
	return err
}

func (s slowStore) Update(ctx context.Context, key string, dst interface{}, fn func() error) error {
	return s.MemoryStore.Update(ctx, key, dst, func() error {
		time.Sleep(2 * time.Millisecond)
		return fn()
	})
}

func TestTaxLedger_ConcurrentRecordsAreAllKept(t *testing.T) {
	paye, err := calculation.NewTieredRateCalculator(calculation.PAYEScheduleName, calculation.DefaultPAYEBrackets())
	require.NoError(t, err)
	l := NewTaxLedger(slowStore{store.NewMemoryStore()}, paye, calculation.NewCompanyTaxCalculator(), zap.NewNop())
	ids := atomic.NewInt64(0)
	l.NewID = func() string { return fmt.Sprintf("entry-%d", ids.Inc()) }
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Record(ctx, "u", domain.TaxKindSalary, decimal.NewFromInt(1000))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := l.History(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, history, writers)
}

func TestTaxLedger_ConcurrentRemindersAreAllKept(t *testing.T) {
	l, s := newTestLedger(t)
	l.store = slowStore{s}
	ctx := context.Background()

	var wg sync.WaitGroup
	for day := 1; day <= 10; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			assert.NoError(t, l.AddReminder(ctx, "u", time.Date(2025, time.April, day, 0, 0, 0, 0, time.UTC)))
		}(day)
	}
	wg.Wait()

	var rec domain.TaxRecord
	require.NoError(t, s.Get(ctx, TaxDocKey("u"), &rec))
	assert.Len(t, rec.Reminders, 10)
}
