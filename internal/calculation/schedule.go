package calculation

import (
	"fmt"
	"math"
	"time"
)

// DefaultReminderWindowDays is how far ahead remittance reminders surface.
const DefaultReminderWindowDays = 3

// NextDueDate is the next remittance date: one calendar month after from.
// Month overflow normalises the way time.AddDate does (Jan 31 -> Mar 3).
func NextDueDate(from time.Time) time.Time {
	return truncateDay(from).AddDate(0, 1, 0)
}

// DaysUntil counts calendar days from today to due; negative when overdue.
func DaysUntil(due, today time.Time) int {
	d := truncateDay(due)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, d.Location())
	return int(math.Round(d.Sub(t).Hours() / 24))
}

// DueStatus renders a day count for display.
func DueStatus(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("Due in %d days", days)
	}
}

// WithinReminderWindow reports whether a reminder days away should be
// raised: strictly in the future and no more than window days out.
func WithinReminderWindow(days, window int) bool {
	return days > 0 && days <= window
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
