package calculation

import (
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// Built-in schedule names.
const (
	PAYEScheduleName       = "paye"
	CompanyTaxScheduleName = "company"
)

// DefaultCompanyTaxRate is the flat company tax rate (30%).
var DefaultCompanyTaxRate = decimal.NewFromFloat(0.30)

// DefaultPAYEBrackets returns the built-in monthly PAYE table (MWK, 2025):
// 15% up to 50,000; 20% to 100,000; 25% to 150,000; 30% above.
func DefaultPAYEBrackets() []domain.Bracket {
	return []domain.Bracket{
		domain.NewBracket(decimal.NewFromInt(50000), decimal.NewFromFloat(0.15)),
		domain.NewBracket(decimal.NewFromInt(100000), decimal.NewFromFloat(0.20)),
		domain.NewBracket(decimal.NewFromInt(150000), decimal.NewFromFloat(0.25)),
		domain.TopBracket(decimal.NewFromFloat(0.30)),
	}
}

// DefaultTables returns the tables used when no tables file is configured.
func DefaultTables() *domain.TaxTables {
	return &domain.TaxTables{
		Metadata: domain.TaxTablesMetadata{
			DataYear:    2025,
			Authority:   "MRA",
			Description: "Built-in PAYE and company tax rates",
		},
		DefaultSchedule: PAYEScheduleName,
		CompanyTaxRate:  DefaultCompanyTaxRate,
		Schedules: map[string]domain.TaxSchedule{
			PAYEScheduleName: {
				Name:        PAYEScheduleName,
				Description: "Pay As You Earn, monthly",
				Currency:    "MWK",
				Brackets:    DefaultPAYEBrackets(),
			},
		},
	}
}
