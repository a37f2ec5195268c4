package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Field is a raw scalar from a form, file or request body. It accepts
// YAML scalars and JSON numbers, strings or null, and keeps the text
// for strict parsing later.
type Field string

// UnmarshalYAML keeps the scalar text; null becomes empty.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: expected a scalar at line %d", ErrInvalidRecord, node.Line)
	}
	if node.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = Field(node.Value)
	return nil
}

// UnmarshalJSON accepts a number, a string or null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("%w: expected a scalar, got %s", ErrInvalidRecord, data)
	default:
		*f = Field(data)
	}
	return nil
}

// IsEmpty reports whether the field carried no value.
func (f Field) IsEmpty() bool { return strings.TrimSpace(string(f)) == "" }

// BracketRecord is an unvalidated bracket as it arrives from outside.
// An empty upper bound denotes the open-ended top bracket.
type BracketRecord struct {
	UpperBound Field `yaml:"upper_bound" json:"upperBound"`
	Rate       Field `yaml:"rate" json:"rate"`
}

// FactorRecord is an unvalidated health factor.
type FactorRecord struct {
	Name   string `yaml:"factor" json:"factor"`
	Score  Field  `yaml:"score" json:"score"`
	Weight Field  `yaml:"weight" json:"weight"`
}

// ParseAmount parses a money amount. Thousands separators (",", "_",
// spaces) are accepted; anything else that is not a decimal is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidRecord)
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", ErrInvalidRecord, s)
	}
	return v, nil
}

// ParseRate parses a fractional rate ("0.15") or a percentage ("15%").
func ParseRate(s string) (decimal.Decimal, error) {
	text := strings.TrimSpace(s)
	percent := strings.HasSuffix(text, "%")
	text = strings.TrimSpace(strings.TrimSuffix(text, "%"))
	if text == "" {
		return decimal.Zero, fmt.Errorf("%w: empty rate", ErrInvalidRecord)
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: rate %q is not a number", ErrInvalidRecord, s)
	}
	if percent {
		v = v.Div(decimal.NewFromInt(100))
	}
	return v, nil
}

// ParseBrackets converts raw records into a validated bracket table.
// Record-level defects wrap ErrInvalidRecord; table-level defects are
// returned as *calculation.ConfigurationError.
func ParseBrackets(records []BracketRecord) ([]domain.Bracket, error) {
	brackets := make([]domain.Bracket, 0, len(records))
	for i, r := range records {
		rate, err := ParseRate(string(r.Rate))
		if err != nil {
			return nil, fmt.Errorf("bracket %d: %w", i, err)
		}
		bound := domain.Unbounded()
		if !r.UpperBound.IsEmpty() {
			if b, perr := domain.ParseBound(string(r.UpperBound)); perr == nil && b.IsUnbounded() {
				bound = b
			} else {
				v, err := ParseAmount(string(r.UpperBound))
				if err != nil {
					return nil, fmt.Errorf("bracket %d: upper bound: %w", i, err)
				}
				bound = domain.BoundAt(v)
			}
		}
		brackets = append(brackets, domain.Bracket{UpperBound: bound, Rate: rate})
	}
	if err := calculation.ValidateBrackets(brackets); err != nil {
		return nil, err
	}
	return brackets, nil
}

// ParseFactors converts raw factor records. Scores must lie in [0, 100];
// a missing weight stays nil so the aggregator assigns an equal share.
func ParseFactors(records []FactorRecord) ([]domain.WeightedFactor, error) {
	factors := make([]domain.WeightedFactor, 0, len(records))
	for i, r := range records {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = fmt.Sprintf("factor %d", i+1)
		}
		score, err := ParseScore(string(r.Score))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		f := domain.WeightedFactor{Name: name, Score: score}
		if !r.Weight.IsEmpty() {
			w, err := parseFloat(string(r.Weight))
			if err != nil {
				return nil, fmt.Errorf("%s: weight: %w", name, err)
			}
			if w < 0 {
				return nil, fmt.Errorf("%w: %s: weight %v is negative", ErrInvalidRecord, name, w)
			}
			f.Weight = &w
		}
		factors = append(factors, f)
	}
	return factors, nil
}

// ParseScore parses a factor score. NaN, infinities and values outside
// [0, 100] wrap ErrInvalidRecord.
func ParseScore(s string) (float64, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, fmt.Errorf("score: %w", err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: score %v outside [0, 100]", ErrInvalidRecord, v)
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, fmt.Errorf("%w: missing value", ErrInvalidRecord)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrInvalidRecord, s)
	}
	return v, nil
}
