package output

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/domain"
)

// ConsoleFormatter renders a liability as a bracket table followed by totals.
type ConsoleFormatter struct {
	Currency string
}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(l *domain.Liability) ([]byte, error) {
	var buf bytes.Buffer

	title := "TAX LIABILITY"
	if l.Schedule != "" {
		title += " (" + l.Schedule + ")"
	}
	fmt.Fprintln(&buf, title)

	table := tablewriter.NewWriter(&buf)
	if err := table.Append([]string{"From", "Up To", "Rate", "Taxable", "Tax"}); err != nil {
		return nil, fmt.Errorf("failed to append header row: %w", err)
	}
	for _, s := range l.Breakdown {
		upTo := "and above"
		if !s.Bracket.UpperBound.IsUnbounded() {
			upTo = FormatCurrency(s.Bracket.UpperBound.Value(), "")
		}
		row := []string{
			FormatCurrency(s.From, ""),
			upTo,
			FormatPercentage(s.Bracket.Rate),
			FormatCurrency(s.Taxable, ""),
			FormatCurrency(s.Tax, ""),
		}
		if err := table.Append(row); err != nil {
			return nil, fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Fprintf(&buf, "Amount:         %s\n", FormatCurrency(l.Amount, c.Currency))
	fmt.Fprintf(&buf, "Total Tax:      %s\n", FormatCurrency(l.TotalTax, c.Currency))
	fmt.Fprintf(&buf, "Net Amount:     %s\n", FormatCurrency(l.NetAmount(), c.Currency))
	fmt.Fprintf(&buf, "Effective Rate: %s\n", FormatPercentage(l.EffectiveRate))
	fmt.Fprintf(&buf, "Marginal Rate:  %s\n", FormatPercentage(l.MarginalRate()))
	return buf.Bytes(), nil
}

// JSONFormatter renders a liability as JSON.
type JSONFormatter struct {
	Pretty bool
}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(l *domain.Liability) ([]byte, error) {
	if j.Pretty {
		return codec.MarshalIndent(l, "", "  ")
	}
	return codec.Marshal(l)
}

// CSVFormatter renders one row per bracket slice.
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(l *domain.Liability) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Schedule", "From", "UpperBound", "Rate", "Taxable", "Tax"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range l.Breakdown {
		upper := ""
		if !s.Bracket.UpperBound.IsUnbounded() {
			upper = s.Bracket.UpperBound.Value().StringFixed(2)
		}
		row := []string{
			l.Schedule,
			s.From.StringFixed(2),
			upper,
			s.Bracket.Rate.String(),
			s.Taxable.StringFixed(2),
			s.Tax.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{l.Schedule, "", "", "total", l.Amount.StringFixed(2), l.TotalTax.StringFixed(2)}); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
