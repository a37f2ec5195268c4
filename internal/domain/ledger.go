package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxKind identifies which calculator produced a log entry.
type TaxKind string

const (
	TaxKindSalary  TaxKind = "salary"
	TaxKindCompany TaxKind = "company"
)

// TaxLogEntry is one saved calculation in a user's tax history.
type TaxLogEntry struct {
	ID            string          `json:"id"`
	Kind          TaxKind         `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	CalculatedTax decimal.Decimal `json:"calculatedTax"`
	Date          time.Time       `json:"date"`
	NextDueDate   time.Time       `json:"nextDueDate"`
}

// TaxRecord is the persisted tax document for one user.
type TaxRecord struct {
	History   []TaxLogEntry `json:"taxHistory"`
	Reminders []time.Time   `json:"taxReminders"`
}

// Reminder is a remittance date with its distance from today.
type Reminder struct {
	UserID  string    `json:"userId"`
	DueDate time.Time `json:"dueDate"`
	Days    int       `json:"days"`
	Status  string    `json:"status"`
}
