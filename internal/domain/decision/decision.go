// Package decision aggregates normalized criterion values into a preference
// score and derives the eligibility and ranking outcome.
package decision

import (
	"sort"

	"github.com/hematin/donoreval/internal/domain/model"
)

// Aggregate holds the weighted sums behind one preference score.
type Aggregate struct {
	BenefitSum float64
	CostSum    float64
	Preference float64 // Yi = BenefitSum - CostSum, unclamped
}

// Compute applies each criterion's weight and polarity to the normalized
// values and sums them into the preference score. Criteria without a
// normalized value contribute nothing.
func Compute(normalized map[string]float64, criteria []model.Criterion) Aggregate {
	var agg Aggregate
	for _, c := range criteria {
		weighted := c.Weight * normalized[c.Code]
		switch c.Polarity {
		case model.Benefit:
			agg.BenefitSum += weighted
		case model.Cost:
			agg.CostSum += weighted
		}
	}
	agg.Preference = agg.BenefitSum - agg.CostSum
	return agg
}

// Eligible reports whether a preference score meets the threshold. The
// boundary is inclusive: exact equality counts as eligible.
func Eligible(preference, threshold float64) bool {
	return preference >= threshold
}

// RankDescending orders results by preference score descending and assigns
// 1-based ranks in place. The sort is stable, so equal scores keep their
// input order.
func RankDescending(results []model.EvaluationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Preference > results[j].Preference
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
