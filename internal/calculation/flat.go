package calculation

import (
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// FlatRateCalculator charges one rate on the whole amount, as company tax does.
type FlatRateCalculator struct {
	Name string
	Rate decimal.Decimal
}

// NewFlatRateCalculator rejects rates outside [0, 1].
func NewFlatRateCalculator(name string, rate decimal.Decimal) (*FlatRateCalculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, &ConfigurationError{Index: -1, Reason: "flat rate " + rate.String() + " outside [0, 1]"}
	}
	return &FlatRateCalculator{Name: name, Rate: rate}, nil
}

// NewCompanyTaxCalculator creates a company tax calculator at the default rate.
func NewCompanyTaxCalculator() *FlatRateCalculator {
	return &FlatRateCalculator{Name: CompanyTaxScheduleName, Rate: DefaultCompanyTaxRate}
}

// Compute returns the liability on profit. The result carries a single
// unbounded slice so it renders like a bracketed liability.
func (c *FlatRateCalculator) Compute(profit decimal.Decimal) (*domain.Liability, error) {
	if profit.IsNegative() {
		return nil, &InvalidInputError{Field: "profit", Value: profit.String(), Reason: "must not be negative"}
	}
	result := allocate(profit, []domain.Bracket{domain.TopBracket(c.Rate)})
	result.Schedule = c.Name
	return result, nil
}
