package domain

import "time"

// WeightedFactor is one scored dimension of financial health.
// A nil Weight means the factor takes an equal share.
type WeightedFactor struct {
	Name   string   `json:"factor" yaml:"factor"`
	Score  float64  `json:"score" yaml:"score"`
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// HealthLevel buckets an aggregate score for display.
type HealthLevel string

const (
	HealthExcellent HealthLevel = "excellent"
	HealthGood      HealthLevel = "good"
	HealthFair      HealthLevel = "fair"
	HealthPoor      HealthLevel = "poor"
	HealthCritical  HealthLevel = "critical"
)

// HealthProfile is the persisted health-score document for one user.
type HealthProfile struct {
	HealthFactors []WeightedFactor `json:"healthFactors"`
	HealthScore   int              `json:"healthScore"`
	PreviousScore int              `json:"previousScore"`
	LastUpdated   time.Time        `json:"lastUpdated"`
}
