package calculation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		expected time.Time
	}{
		{
			name:     "mid month",
			from:     time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC),
			expected: time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "year rollover",
			from:     time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "month overflow normalises",
			from:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(NextDueDate(tt.from)), "got %s", NextDueDate(tt.from))
		})
	}
}

func TestDaysUntilAndDueStatus(t *testing.T) {
	today := time.Date(2025, 6, 10, 18, 45, 0, 0, time.UTC)

	tests := []struct {
		due    time.Time
		days   int
		status string
	}{
		{time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), -3, "3 days overdue"},
		{time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), 0, "Due today"},
		{time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), 1, "Due tomorrow"},
		{time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), 10, "Due in 10 days"},
	}

	for _, tt := range tests {
		days := DaysUntil(tt.due, today)
		assert.Equal(t, tt.days, days)
		assert.Equal(t, tt.status, DueStatus(days))
	}
}

func TestWithinReminderWindow(t *testing.T) {
	assert.False(t, WithinReminderWindow(0, 3))
	assert.True(t, WithinReminderWindow(1, 3))
	assert.True(t, WithinReminderWindow(3, 3))
	assert.False(t, WithinReminderWindow(4, 3))
	assert.False(t, WithinReminderWindow(-1, 3))
}
