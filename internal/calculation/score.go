package calculation

import (
	"math"

	"github.com/rgehrsitz/finsight/internal/domain"
)

// Aggregate blends factor scores into one whole-number score.
//
// Factors without a weight take 1/len(factors). Weights are relative: the
// weighted sum is divided by the total weight present. Empty input, or a
// total weight of zero, yields 0, which callers read as "no data".
// Negative or non-finite weights count as zero. Aggregate never fails.
func Aggregate(factors []domain.WeightedFactor) int {
	if len(factors) == 0 {
		return 0
	}

	implicit := 1 / float64(len(factors))
	var totalWeight, weightedSum float64
	for _, f := range factors {
		w := implicit
		if f.Weight != nil {
			w = *f.Weight
		}
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) || math.IsNaN(f.Score) || math.IsInf(f.Score, 0) {
			continue
		}
		totalWeight += w
		weightedSum += f.Score * w
	}

	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(weightedSum / totalWeight))
}

// ClassifyHealth maps an aggregate score to its display band.
func ClassifyHealth(score int) domain.HealthLevel {
	switch {
	case score >= 80:
		return domain.HealthExcellent
	case score >= 65:
		return domain.HealthGood
	case score >= 50:
		return domain.HealthFair
	case score >= 35:
		return domain.HealthPoor
	default:
		return domain.HealthCritical
	}
}

var healthDescriptions = map[domain.HealthLevel]string{
	domain.HealthExcellent: "Your finances are thriving! Keep up the great work.",
	domain.HealthGood:      "Your financial health is strong with room for improvement.",
	domain.HealthFair:      "Your finances need attention in some areas.",
	domain.HealthPoor:      "Focus on building stronger financial foundations.",
	domain.HealthCritical:  "Immediate attention needed for financial stability.",
}

// DescribeHealth returns the guidance line shown with a health level.
func DescribeHealth(level domain.HealthLevel) string {
	return healthDescriptions[level]
}

// ScoreChange is the movement between two aggregate scores.
func ScoreChange(previous, current int) int {
	return current - previous
}
