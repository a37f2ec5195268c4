package output

import (
	"strings"

	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// Formatter renders a liability in one output format.
type Formatter interface {
	Name() string
	Format(l *domain.Liability) ([]byte, error)
}

// GetFormatterByName returns the formatter registered under name, or nil.
func GetFormatterByName(name string) Formatter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "console", "table", "":
		return ConsoleFormatter{}
	case "json":
		return JSONFormatter{Pretty: true}
	case "csv":
		return CSVFormatter{}
	default:
		return nil
	}
}

// FormatNames lists the formats GetFormatterByName accepts.
func FormatNames() []string { return []string{"console", "json", "csv"} }

// FormatCurrency formats a money amount with two decimals and thousands
// separators, prefixed by the currency code when one is given.
func FormatCurrency(amount decimal.Decimal, currency string) string {
	s := groupThousands(amount.StringFixed(2))
	if currency == "" {
		return s
	}
	return currency + " " + s
}

// FormatPercentage formats a fractional rate (0.1875) as "18.75%".
func FormatPercentage(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
