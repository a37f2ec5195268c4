package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTables = `
metadata:
  data_year: 2025
  authority: MRA
  description: Test tables
default_schedule: paye
company_tax_rate: 30%
schedules:
  paye:
    description: Monthly PAYE
    currency: MWK
    brackets:
      - upper_bound: 50,000
        rate: 15%
      - upper_bound: 100,000
        rate: 20%
      - upper_bound: 150,000
        rate: 25%
      - rate: 30%
  flat:
    brackets:
      - upper_bound: inf
        rate: 0.1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewTableParser(t *testing.T) {
	assert.NotNil(t, NewTableParser(), "Should create table parser")
}

func TestTableParser_LoadFromFile_FileNotFound(t *testing.T) {
	tables, err := NewTableParser().LoadFromFile("nonexistent.yaml")

	assert.Error(t, err, "Should error for nonexistent file")
	assert.Nil(t, tables)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestTableParser_LoadFromFile_InvalidYAML(t *testing.T) {
	path := writeFile(t, "invalid.yaml", "invalid: yaml: content: [unclosed")

	tables, err := NewTableParser().LoadFromFile(path)

	assert.Error(t, err, "Should error for invalid YAML")
	assert.Nil(t, tables)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestTableParser_LoadFromFile_ValidYAML(t *testing.T) {
	path := writeFile(t, "tables.yaml", validTables)

	tables, err := NewTableParser().LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2025, tables.Metadata.DataYear)
	assert.Equal(t, "MRA", tables.Metadata.Authority)
	assert.Equal(t, "paye", tables.DefaultSchedule)
	assert.True(t, tables.CompanyTaxRate.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, []string{"flat", "paye"}, ScheduleNames(tables))

	paye, ok := tables.Schedule("")
	require.True(t, ok, "empty name selects the default schedule")
	assert.Equal(t, "paye", paye.Name)
	assert.Equal(t, "MWK", paye.Currency)
	require.Len(t, paye.Brackets, 4)

	liability, err := calculation.ComputeLiability(decimal.NewFromInt(120000), paye.Brackets)
	require.NoError(t, err)
	assert.Equal(t, "22500", liability.TotalTax.String())
}

func TestTableParser_Parse_SingleScheduleBecomesDefault(t *testing.T) {
	tables, err := NewTableParser().Parse([]byte(`
schedules:
  only:
    brackets:
      - rate: 0.2
`))
	require.NoError(t, err)
	assert.Equal(t, "only", tables.DefaultSchedule)
	assert.True(t, tables.CompanyTaxRate.Equal(calculation.DefaultCompanyTaxRate))
}

func TestTableParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		sentinel error
	}{
		{
			name:     "no schedules",
			yaml:     "default_schedule: paye\n",
			sentinel: ErrInvalidTable,
		},
		{
			name: "unknown default",
			yaml: `
default_schedule: missing
schedules:
  paye:
    brackets:
      - rate: 0.1
`,
			sentinel: ErrInvalidTable,
		},
		{
			name: "ambiguous default",
			yaml: `
schedules:
  a:
    brackets:
      - rate: 0.1
  b:
    brackets:
      - rate: 0.2
`,
			sentinel: ErrInvalidTable,
		},
		{
			name: "bounded top bracket",
			yaml: `
schedules:
  paye:
    brackets:
      - upper_bound: 1000
        rate: 0.1
`,
			sentinel: calculation.ErrConfiguration,
		},
		{
			name: "malformed rate",
			yaml: `
schedules:
  paye:
    brackets:
      - rate: lots
`,
			sentinel: ErrInvalidRecord,
		},
		{
			name: "company rate above one",
			yaml: `
company_tax_rate: 1.5
schedules:
  paye:
    brackets:
      - rate: 0.1
`,
			sentinel: ErrInvalidTable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, err := NewTableParser().Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Nil(t, tables)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestLoadTables_DefaultsWhenNoFile(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, calculation.PAYEScheduleName, tables.DefaultSchedule)
	assert.NoError(t, NewTableParser().Validate(tables))
}

func TestLoadFactors(t *testing.T) {
	path := writeFile(t, "factors.yaml", `
factors:
  - factor: Savings Rate
    score: 70
    weight: 0.3
  - factor: Debt Ratio
    score: 50
    weight: 0.7
`)
	factors, err := LoadFactors(path)
	require.NoError(t, err)
	require.Len(t, factors, 2)
	assert.Equal(t, 56, calculation.Aggregate(factors))
}

func TestLoadFactors_RejectsBadScore(t *testing.T) {
	path := writeFile(t, "factors.yaml", "factors:\n  - factor: x\n    score: 120\n")
	_, err := LoadFactors(path)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLoadBudget(t *testing.T) {
	path := writeFile(t, "budget.yaml", `
categories:
  - name: Food
    budget: 50,000
    spent: 40,000
  - name: Transport
    budget: 20000
goals:
  - name: Emergency fund
    target: 500000
    saved: 125000
    deadline: 2026-12-31
`)
	plan, err := LoadBudget(path)
	require.NoError(t, err)
	require.Len(t, plan.Categories, 2)
	assert.Equal(t, "40000", plan.Categories[0].Spent.String())
	assert.True(t, plan.Categories[1].Spent.IsZero())

	require.Len(t, plan.Goals, 1)
	require.NotNil(t, plan.Goals[0].Deadline)
	assert.Equal(t, 2026, plan.Goals[0].Deadline.Year())
}

func TestParseBudget_Errors(t *testing.T) {
	_, err := ParseBudget([]BudgetRecord{{Budget: "100"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ParseBudget(nil, []GoalRecord{{Name: "car", Target: "100", Deadline: "next year"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ParseBudget([]BudgetRecord{{Name: "food", Budget: "a lot"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestExampleConfigs(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")

	tables, err := NewTableParser().LoadFromFile(filepath.Join(dir, "tables.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"paye", "paye-annual"}, ScheduleNames(tables))

	factors, err := LoadFactors(filepath.Join(dir, "health.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, factors, 4)
	assert.Nil(t, factors[2].Weight)

	plan, err := LoadBudget(filepath.Join(dir, "budget.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, plan.Categories, 3)
	require.Len(t, plan.Goals, 1)
	assert.NotNil(t, plan.Goals[0].Deadline)

	t.Setenv("FINSIGHT_CONFIG", "")
	settings, err := LoadSettings(filepath.Join(dir, "finsight.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, settings.Store)
	assert.Equal(t, []string{"alice", "bob"}, settings.Users())
}
