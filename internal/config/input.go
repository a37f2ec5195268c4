package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// tablesFile is the on-disk shape of a tax tables file.
type tablesFile struct {
	Metadata struct {
		DataYear    int    `yaml:"data_year"`
		Authority   string `yaml:"authority"`
		Description string `yaml:"description"`
	} `yaml:"metadata"`
	DefaultSchedule string                  `yaml:"default_schedule"`
	CompanyTaxRate  Field                   `yaml:"company_tax_rate"`
	Schedules       map[string]scheduleFile `yaml:"schedules"`
}

type scheduleFile struct {
	Description string          `yaml:"description"`
	Currency    string          `yaml:"currency"`
	Brackets    []BracketRecord `yaml:"brackets"`
}

// TableParser handles parsing of tax tables files
type TableParser struct{}

// NewTableParser creates a new table parser
func NewTableParser() *TableParser {
	return &TableParser{}
}

// LoadFromFile loads tax tables from a YAML file
func (tp *TableParser) LoadFromFile(filename string) (*domain.TaxTables, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	tables, err := tp.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return tables, nil
}

// Parse decodes and validates tax tables from YAML bytes
func (tp *TableParser) Parse(data []byte) (*domain.TaxTables, error) {
	var raw tablesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(raw.Schedules) == 0 {
		return nil, fmt.Errorf("%w: at least one schedule is required", ErrInvalidTable)
	}

	tables := &domain.TaxTables{
		Metadata: domain.TaxTablesMetadata{
			DataYear:    raw.Metadata.DataYear,
			Authority:   raw.Metadata.Authority,
			Description: raw.Metadata.Description,
		},
		DefaultSchedule: strings.TrimSpace(raw.DefaultSchedule),
		CompanyTaxRate:  calculation.DefaultCompanyTaxRate,
		Schedules:       make(map[string]domain.TaxSchedule, len(raw.Schedules)),
	}

	if !raw.CompanyTaxRate.IsEmpty() {
		rate, err := ParseRate(string(raw.CompanyTaxRate))
		if err != nil {
			return nil, fmt.Errorf("company_tax_rate: %w", err)
		}
		tables.CompanyTaxRate = rate
	}

	for name, s := range raw.Schedules {
		brackets, err := ParseBrackets(s.Brackets)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", name, err)
		}
		tables.Schedules[name] = domain.TaxSchedule{
			Name:        name,
			Description: s.Description,
			Currency:    s.Currency,
			Brackets:    brackets,
		}
	}

	if tables.DefaultSchedule == "" && len(tables.Schedules) == 1 {
		for name := range tables.Schedules {
			tables.DefaultSchedule = name
		}
	}

	if err := tp.Validate(tables); err != nil {
		return nil, fmt.Errorf("tax table validation failed: %w", err)
	}
	return tables, nil
}

// Validate checks cross-schedule consistency of loaded tables
func (tp *TableParser) Validate(tables *domain.TaxTables) error {
	if tables == nil {
		return fmt.Errorf("%w: tables are required", ErrInvalidTable)
	}
	if tables.DefaultSchedule == "" {
		return fmt.Errorf("%w: default_schedule is required when more than one schedule is defined", ErrInvalidTable)
	}
	if _, ok := tables.Schedules[tables.DefaultSchedule]; !ok {
		return fmt.Errorf("%w: default schedule %q is not defined", ErrInvalidTable, tables.DefaultSchedule)
	}
	if tables.CompanyTaxRate.IsNegative() || tables.CompanyTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: company tax rate %s must be between 0 and 1", ErrInvalidTable, tables.CompanyTaxRate)
	}
	for name, s := range tables.Schedules {
		if err := calculation.ValidateBrackets(s.Brackets); err != nil {
			return fmt.Errorf("schedule %q: %w", name, err)
		}
	}
	return nil
}

// ScheduleNames returns the schedule names in sorted order
func ScheduleNames(tables *domain.TaxTables) []string {
	names := make([]string, 0, len(tables.Schedules))
	for name := range tables.Schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadTables returns the tables in filename, or the built-in tables when
// filename is empty.
func LoadTables(filename string) (*domain.TaxTables, error) {
	if filename == "" {
		return calculation.DefaultTables(), nil
	}
	return NewTableParser().LoadFromFile(filename)
}

type factorsFile struct {
	Factors []FactorRecord `yaml:"factors"`
}

// LoadFactors reads a health factors file
func LoadFactors(filename string) ([]domain.WeightedFactor, error) {
	var raw factorsFile
	if err := readYAML(filename, &raw); err != nil {
		return nil, err
	}
	factors, err := ParseFactors(raw.Factors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return factors, nil
}

// BudgetRecord is an unvalidated budget category.
type BudgetRecord struct {
	Name   string `yaml:"name" json:"name"`
	Budget Field  `yaml:"budget" json:"budget"`
	Spent  Field  `yaml:"spent" json:"spent"`
}

// GoalRecord is an unvalidated savings goal.
type GoalRecord struct {
	Name     string `yaml:"name" json:"name"`
	Target   Field  `yaml:"target" json:"target"`
	Saved    Field  `yaml:"saved" json:"saved"`
	Deadline Field  `yaml:"deadline" json:"deadline"`
}

// BudgetPlan is a parsed budget file.
type BudgetPlan struct {
	Categories []domain.BudgetCategory
	Goals      []domain.Goal
}

type budgetFile struct {
	Categories []BudgetRecord `yaml:"categories"`
	Goals      []GoalRecord   `yaml:"goals"`
}

// LoadBudget reads a budget file with categories and goals
func LoadBudget(filename string) (*BudgetPlan, error) {
	var raw budgetFile
	if err := readYAML(filename, &raw); err != nil {
		return nil, err
	}
	plan, err := ParseBudget(raw.Categories, raw.Goals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return plan, nil
}

// ParseBudget converts raw category and goal records.
func ParseBudget(categories []BudgetRecord, goals []GoalRecord) (*BudgetPlan, error) {
	plan := &BudgetPlan{}
	for i, r := range categories {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: category %d has no name", ErrInvalidRecord, i)
		}
		budget, err := ParseAmount(string(r.Budget))
		if err != nil {
			return nil, fmt.Errorf("category %q: budget: %w", name, err)
		}
		spent := decimal.Zero
		if !r.Spent.IsEmpty() {
			if spent, err = ParseAmount(string(r.Spent)); err != nil {
				return nil, fmt.Errorf("category %q: spent: %w", name, err)
			}
		}
		plan.Categories = append(plan.Categories, domain.BudgetCategory{Name: name, Budget: budget, Spent: spent})
	}
	for i, r := range goals {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: goal %d has no name", ErrInvalidRecord, i)
		}
		target, err := ParseAmount(string(r.Target))
		if err != nil {
			return nil, fmt.Errorf("goal %q: target: %w", name, err)
		}
		saved := decimal.Zero
		if !r.Saved.IsEmpty() {
			if saved, err = ParseAmount(string(r.Saved)); err != nil {
				return nil, fmt.Errorf("goal %q: saved: %w", name, err)
			}
		}
		goal := domain.Goal{Name: name, Target: target, Saved: saved}
		if !r.Deadline.IsEmpty() {
			d, err := time.Parse("2006-01-02", strings.TrimSpace(string(r.Deadline)))
			if err != nil {
				return nil, fmt.Errorf("%w: goal %q: deadline %q is not YYYY-MM-DD", ErrInvalidRecord, name, r.Deadline)
			}
			goal.Deadline = &d
		}
		plan.Goals = append(plan.Goals, goal)
	}
	return plan, nil
}

func readYAML(filename string, out interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}
