package domain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Bound is the inclusive upper edge of a bracket. The zero value is a
// bounded edge at 0; use Unbounded for the open-ended top bracket.
type Bound struct {
	value     decimal.Decimal
	unbounded bool
}

// Unbounded returns the sentinel used by the top bracket of a schedule.
func Unbounded() Bound {
	return Bound{unbounded: true}
}

// BoundAt returns a finite bound at v.
func BoundAt(v decimal.Decimal) Bound {
	return Bound{value: v}
}

// IsUnbounded reports whether the bound is open-ended.
func (b Bound) IsUnbounded() bool { return b.unbounded }

// Value returns the finite edge. It is zero for an unbounded edge.
func (b Bound) Value() decimal.Decimal { return b.value }

func (b Bound) String() string {
	if b.unbounded {
		return "unbounded"
	}
	return b.value.String()
}

// ParseBound parses a bound from text. Empty text and the words "inf",
// "infinity", "unbounded" and "none" denote the open-ended sentinel.
func ParseBound(s string) (Bound, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inf", "+inf", "infinity", "unbounded", "none", "∞":
		return Unbounded(), nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Bound{}, fmt.Errorf("invalid bound %q: %w", s, err)
	}
	return BoundAt(v), nil
}

// MarshalJSON encodes an unbounded edge as null.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.unbounded {
		return []byte("null"), nil
	}
	return b.value.MarshalJSON()
}

// UnmarshalJSON accepts null, a JSON number or a quoted decimal.
func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = Unbounded()
		return nil
	}
	parsed, err := ParseBound(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Bracket is one marginal tier: Rate applies to the slice of an amount
// above the previous bracket's bound, up to and including UpperBound.
type Bracket struct {
	UpperBound Bound           `json:"upperBound"`
	Rate       decimal.Decimal `json:"rate"`
}

// NewBracket builds a finite bracket.
func NewBracket(upper, rate decimal.Decimal) Bracket {
	return Bracket{UpperBound: BoundAt(upper), Rate: rate}
}

// TopBracket builds the open-ended bracket that closes a schedule.
func TopBracket(rate decimal.Decimal) Bracket {
	return Bracket{UpperBound: Unbounded(), Rate: rate}
}

// BracketSlice records how much of an amount fell into one bracket.
type BracketSlice struct {
	Bracket Bracket         `json:"bracket"`
	From    decimal.Decimal `json:"from"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
}

// Liability is the result of applying a schedule to an amount.
type Liability struct {
	Schedule      string          `json:"schedule,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	TotalTax      decimal.Decimal `json:"totalTax"`
	EffectiveRate decimal.Decimal `json:"effectiveRate"`
	Breakdown     []BracketSlice  `json:"breakdown"`
}

// NetAmount is the amount left after the liability is paid.
func (l *Liability) NetAmount() decimal.Decimal {
	return l.Amount.Sub(l.TotalTax)
}

// MarginalRate is the rate of the last bracket the amount reached.
func (l *Liability) MarginalRate() decimal.Decimal {
	if len(l.Breakdown) == 0 {
		return decimal.Zero
	}
	return l.Breakdown[len(l.Breakdown)-1].Bracket.Rate
}

// TaxSchedule is a named, ordered bracket table.
type TaxSchedule struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Brackets    []Bracket `json:"brackets"`
}

// TaxTablesMetadata describes where a set of tables came from.
type TaxTablesMetadata struct {
	DataYear    int    `json:"dataYear"`
	Authority   string `json:"authority"`
	Description string `json:"description"`
}

// TaxTables holds every schedule loaded from one tables file.
type TaxTables struct {
	Metadata        TaxTablesMetadata      `json:"metadata"`
	DefaultSchedule string                 `json:"defaultSchedule"`
	CompanyTaxRate  decimal.Decimal        `json:"companyTaxRate"`
	Schedules       map[string]TaxSchedule `json:"schedules"`
}

// Schedule looks up a schedule by name. An empty name selects the default.
func (t *TaxTables) Schedule(name string) (TaxSchedule, bool) {
	if name == "" {
		name = t.DefaultSchedule
	}
	s, ok := t.Schedules[name]
	return s, ok
}
