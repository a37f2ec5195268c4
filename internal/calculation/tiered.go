package calculation

import (
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// ValidateBrackets checks that a bracket table covers every non-negative
// amount exactly once: at least one bracket, finite bounds strictly
// ascending from zero, rates within [0, 1], and an unbounded final bracket.
func ValidateBrackets(brackets []domain.Bracket) error {
	if len(brackets) == 0 {
		return &ConfigurationError{Index: -1, Reason: "no brackets"}
	}

	one := decimal.NewFromInt(1)
	previous := decimal.Zero
	last := len(brackets) - 1
	for i, b := range brackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return &ConfigurationError{Index: i, Reason: "rate " + b.Rate.String() + " outside [0, 1]"}
		}
		if b.UpperBound.IsUnbounded() {
			if i != last {
				return &ConfigurationError{Index: i, Reason: "unbounded bracket must be last"}
			}
			continue
		}
		upper := b.UpperBound.Value()
		if upper.IsNegative() {
			return &ConfigurationError{Index: i, Reason: "negative upper bound " + upper.String()}
		}
		if !upper.GreaterThan(previous) {
			return &ConfigurationError{Index: i, Reason: "upper bound " + upper.String() + " not above " + previous.String()}
		}
		previous = upper
	}

	if !brackets[last].UpperBound.IsUnbounded() {
		return &ConfigurationError{Index: last, Reason: "final bracket must be unbounded"}
	}
	return nil
}

// ComputeLiability applies progressive (marginal) rates to amount: each
// bracket's rate is charged only on the slice of amount between the
// previous bound (exclusive) and its own bound (inclusive).
func ComputeLiability(amount decimal.Decimal, brackets []domain.Bracket) (*domain.Liability, error) {
	if amount.IsNegative() {
		return nil, &InvalidInputError{Field: "amount", Value: amount.String(), Reason: "must not be negative"}
	}
	if err := ValidateBrackets(brackets); err != nil {
		return nil, err
	}
	return allocate(amount, brackets), nil
}

// allocate assumes a validated table and a non-negative amount.
func allocate(amount decimal.Decimal, brackets []domain.Bracket) *domain.Liability {
	result := &domain.Liability{
		Amount:        amount,
		TotalTax:      decimal.Zero,
		EffectiveRate: decimal.Zero,
		Breakdown:     make([]domain.BracketSlice, 0, len(brackets)),
	}

	remaining := amount
	previous := decimal.Zero
	for _, b := range brackets {
		taxable := remaining
		if !b.UpperBound.IsUnbounded() {
			taxable = decimal.Min(remaining, b.UpperBound.Value().Sub(previous))
		}
		tax := taxable.Mul(b.Rate)

		result.Breakdown = append(result.Breakdown, domain.BracketSlice{
			Bracket: b,
			From:    previous,
			Taxable: taxable,
			Tax:     tax,
		})
		result.TotalTax = result.TotalTax.Add(tax)
		remaining = remaining.Sub(taxable)
		if !b.UpperBound.IsUnbounded() {
			previous = b.UpperBound.Value()
		}

		if !remaining.IsPositive() {
			break
		}
	}

	if amount.IsPositive() {
		result.EffectiveRate = result.TotalTax.Div(amount)
	}
	return result
}

// TieredRateCalculator applies one validated bracket table repeatedly.
// It holds no mutable state after construction and is safe for concurrent use.
type TieredRateCalculator struct {
	Name     string
	brackets []domain.Bracket
	logger   Logger
}

// NewTieredRateCalculator validates brackets once and keeps a private copy.
func NewTieredRateCalculator(name string, brackets []domain.Bracket) (*TieredRateCalculator, error) {
	if err := ValidateBrackets(brackets); err != nil {
		return nil, err
	}
	owned := make([]domain.Bracket, len(brackets))
	copy(owned, brackets)
	return &TieredRateCalculator{Name: name, brackets: owned, logger: nopLogger{}}, nil
}

// NewTieredRateCalculatorForSchedule builds a calculator from a named schedule.
func NewTieredRateCalculatorForSchedule(s domain.TaxSchedule) (*TieredRateCalculator, error) {
	return NewTieredRateCalculator(s.Name, s.Brackets)
}

// SetLogger routes debug output for each computation to l.
func (c *TieredRateCalculator) SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	c.logger = l
}

// Brackets returns a copy of the calculator's table.
func (c *TieredRateCalculator) Brackets() []domain.Bracket {
	out := make([]domain.Bracket, len(c.brackets))
	copy(out, c.brackets)
	return out
}

// Compute returns the liability for amount under the calculator's table.
func (c *TieredRateCalculator) Compute(amount decimal.Decimal) (*domain.Liability, error) {
	if amount.IsNegative() {
		return nil, &InvalidInputError{Field: "amount", Value: amount.String(), Reason: "must not be negative"}
	}
	result := allocate(amount, c.brackets)
	result.Schedule = c.Name
	for _, s := range result.Breakdown {
		c.logger.Debugf("schedule=%s bracket_from=%s upper=%s rate=%s taxable=%s tax=%s",
			c.Name, s.From, s.Bracket.UpperBound, s.Bracket.Rate, s.Taxable, s.Tax)
	}
	c.logger.Debugf("schedule=%s amount=%s total_tax=%s effective_rate=%s",
		c.Name, amount, result.TotalTax, result.EffectiveRate.StringFixed(4))
	return result, nil
}
