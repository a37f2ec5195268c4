package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/rgehrsitz/finsight/internal/domain"
)

// HealthReport is an aggregate health score with the factors behind it.
type HealthReport struct {
	Score       int                     `json:"score"`
	Level       domain.HealthLevel      `json:"level"`
	Description string                  `json:"description"`
	Change      int                     `json:"change"`
	Factors     []domain.WeightedFactor `json:"factors"`
}

// NewHealthReport scores factors and classifies the result. previous is
// the last stored score, used for the change figure.
func NewHealthReport(factors []domain.WeightedFactor, previous int) *HealthReport {
	score := calculation.Aggregate(factors)
	level := calculation.ClassifyHealth(score)
	return &HealthReport{
		Score:       score,
		Level:       level,
		Description: calculation.DescribeHealth(level),
		Change:      calculation.ScoreChange(previous, score),
		Factors:     factors,
	}
}

func levelColor(level domain.HealthLevel) *color.Color {
	switch level {
	case domain.HealthExcellent:
		return color.New(color.FgHiGreen, color.Bold)
	case domain.HealthGood:
		return color.New(color.FgGreen)
	case domain.HealthFair:
		return color.New(color.FgYellow)
	case domain.HealthPoor:
		return color.New(color.FgHiYellow, color.Bold)
	default:
		return color.New(color.FgHiRed, color.Bold)
	}
}

// FormatHealth renders a health report as console, json or csv.
func FormatHealth(format string, r *HealthReport) ([]byte, error) {
	switch format {
	case "json":
		return codec.MarshalIndent(r, "", "  ")
	case "csv":
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		_ = w.Write([]string{"Factor", "Score", "Weight"})
		for _, f := range r.Factors {
			weight := ""
			if f.Weight != nil {
				weight = strconv.FormatFloat(*f.Weight, 'f', -1, 64)
			}
			_ = w.Write([]string{f.Name, strconv.FormatFloat(f.Score, 'f', -1, 64), weight})
		}
		_ = w.Write([]string{"total", strconv.Itoa(r.Score), string(r.Level)})
		w.Flush()
		return buf.Bytes(), w.Error()
	case "console", "":
		var buf bytes.Buffer
		table := tablewriter.NewWriter(&buf)
		if err := table.Append([]string{"Factor", "Score", "Weight"}); err != nil {
			return nil, fmt.Errorf("failed to append header row: %w", err)
		}
		for _, f := range r.Factors {
			weight := "equal"
			if f.Weight != nil {
				weight = strconv.FormatFloat(*f.Weight, 'f', -1, 64)
			}
			if err := table.Append([]string{f.Name, strconv.FormatFloat(f.Score, 'f', -1, 64), weight}); err != nil {
				return nil, fmt.Errorf("failed to append row: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return nil, fmt.Errorf("failed to render table: %w", err)
		}
		fmt.Fprintf(&buf, "Health Score: %d/100 ", r.Score)
		levelColor(r.Level).Fprintf(&buf, "(%s)", r.Level)
		fmt.Fprintln(&buf)
		if r.Change != 0 {
			fmt.Fprintf(&buf, "Change: %+d\n", r.Change)
		}
		fmt.Fprintln(&buf, r.Description)
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
